// Package mcpserver serves past-response retrieval over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"rfp/internal/domain"
	"rfp/internal/index"
	"rfp/internal/retrieval"
)

// Version is the MCP server version.
const Version = "0.1.0"

const statsURI = "rfp://stats"

// ErrMissingRetriever is returned when no retrieval tool is provided.
var ErrMissingRetriever = errors.New("mcpserver: retrieval tool is required")

// Retriever is the retrieval surface exposed as a tool.
type Retriever interface {
	Passages(ctx context.Context, query string, n int, filter domain.Filter) ([]retrieval.Passage, error)
}

// StatsReader reports index statistics. Optional.
type StatsReader interface {
	Stats(ctx context.Context) (index.Stats, error)
}

// Server is the MCP server for the RFP knowledge base.
type Server struct {
	retriever Retriever
	stats     StatsReader
	server    *mcp.Server
}

// NewServer creates a server exposing the search_past_rfp_responses tool and,
// when stats is non-nil, an rfp://stats resource.
func NewServer(r Retriever, stats StatsReader) (*Server, error) {
	if r == nil {
		return nil, ErrMissingRetriever
	}
	s := &Server{
		retriever: r,
		stats:     stats,
		server:    mcp.NewServer(&mcp.Implementation{Name: "rfp", Version: Version}, nil),
	}
	s.registerTools()
	if stats != nil {
		s.registerResources()
	}
	return s, nil
}

// Run serves over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         statsURI,
		Name:        "stats",
		Description: "Knowledge base collection statistics",
		MIMEType:    "application/json",
	}, s.handleStatsResource)
}

func (s *Server) handleStatsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	st, err := s.stats.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling stats: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
