// Package retrieval exposes index search in the shape agent tools consume:
// a ranked passage list and a plain-text rendering of it.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rfp/internal/domain"
	"rfp/internal/index"
)

// DefaultResults is the number of passages returned when the caller asks for none.
const DefaultResults = 5

const noResultsMessage = "No relevant information found in knowledge base."

// Searcher is the read side of *index.Index.
type Searcher interface {
	Search(ctx context.Context, query string, n int, filter domain.Filter) (*index.SearchResults, error)
}

// Passage is one retrieved chunk with its provenance.
type Passage struct {
	Rank      int             `json:"rank"`
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Source    string          `json:"source"`
	Section   string          `json:"section,omitempty"`
	Relevance float64         `json:"relevance"`
	Metadata  domain.Metadata `json:"metadata,omitempty"`
}

// Tool searches past RFP responses.
type Tool struct {
	searcher Searcher
	logger   *slog.Logger
}

func NewTool(s Searcher, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{searcher: s, logger: logger}
}

// Passages returns up to n passages ranked by relevance.
func (t *Tool) Passages(ctx context.Context, query string, n int, filter domain.Filter) ([]Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if n <= 0 {
		n = DefaultResults
	}
	res, err := t.searcher.Search(ctx, query, n, filter)
	if err != nil {
		return nil, err
	}
	hits := res.Results()
	out := make([]Passage, len(hits))
	for i, h := range hits {
		out[i] = Passage{
			Rank:      i + 1,
			ID:        h.ID,
			Text:      h.Text,
			Source:    sourceOf(h.Metadata),
			Section:   metaString(h.Metadata, "section"),
			Relevance: h.Relevance,
			Metadata:  h.Metadata,
		}
	}
	t.logger.Info("vector search", slog.String("query", query), slog.Int("results", len(out)))
	return out, nil
}

// Search renders the passages for query as text. Failures are reported in
// the returned text rather than as an error so tool callers always get a reply.
func (t *Tool) Search(ctx context.Context, query string, n int) string {
	passages, err := t.Passages(ctx, query, n, nil)
	if err != nil {
		t.logger.Error("error searching vector store", slog.String("error", err.Error()))
		return "Error searching knowledge base: " + err.Error()
	}
	return Format(passages)
}

// Format renders passages in the numbered "[i] Relevance:" layout.
func Format(passages []Passage) string {
	if len(passages) == 0 {
		return noResultsMessage
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant passages:\n\n", len(passages))
	for _, p := range passages {
		fmt.Fprintf(&b, "[%d] Relevance: %.2f\n", p.Rank, p.Relevance)
		b.WriteString("Source: " + p.Source)
		if p.Section != "" {
			b.WriteString(" (Section: " + p.Section + ")")
		}
		b.WriteString("\n" + p.Text + "\n\n")
	}
	return b.String()
}

func sourceOf(md domain.Metadata) string {
	if s := metaString(md, "source_file"); s != "" {
		return s
	}
	if s := metaString(md, "source"); s != "" {
		return s
	}
	return "Unknown"
}

func metaString(md domain.Metadata, key string) string {
	v, ok := md[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
