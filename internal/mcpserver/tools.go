package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"rfp/internal/domain"
	"rfp/internal/retrieval"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query    string         `json:"query" jsonschema:"the search query, e.g. cloud infrastructure technical approach"`
	NResults int            `json:"n_results,omitempty" jsonschema:"number of passages to return (default 5)"`
	Where    map[string]any `json:"where,omitempty" jsonschema:"metadata equality filter, e.g. {\"section\": \"timeline\"}"`
}

// SearchOutput is the structured output of the search tool.
type SearchOutput struct {
	Passages []retrieval.Passage `json:"passages"`
	Count    int                 `json:"count"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search_past_rfp_responses",
		Description: "Search the knowledge base for similar past RFP responses. " +
			"Use it to find relevant passages from past RFPs, proposals and company documents.",
	}, s.handleSearch)
}

// handleSearch returns the formatted passages as text content alongside the
// structured output. Search failures are reported as tool errors.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	passages, err := s.retriever.Passages(ctx, input.Query, input.NResults, domain.Filter(input.Where))
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "Error searching knowledge base: " + err.Error()}},
		}, SearchOutput{}, nil
	}
	if passages == nil {
		passages = []retrieval.Passage{}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: retrieval.Format(passages)}},
	}, SearchOutput{Passages: passages, Count: len(passages)}, nil
}
