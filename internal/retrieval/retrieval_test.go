package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfp/internal/domain"
	"rfp/internal/embedding/hashing"
	"rfp/internal/index"
	"rfp/internal/vectorstore/memory"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubSearcher struct {
	res   *index.SearchResults
	err   error
	gotN  int
	gotWh domain.Filter
}

func (s *stubSearcher) Search(_ context.Context, _ string, n int, filter domain.Filter) (*index.SearchResults, error) {
	s.gotN = n
	s.gotWh = filter
	return s.res, s.err
}

func TestSearch_FormatsPassages(t *testing.T) {
	s := &stubSearcher{res: &index.SearchResults{
		IDs:       []string{"a", "b"},
		Documents: []string{"Six month timeline.", "Budget is fixed."},
		Metadatas: []domain.Metadata{
			{"source_file": "rfp.pdf", "section": "timeline"},
			{"source": "sam_gov"},
		},
		Distances: []float64{0.25, 0.5},
	}}
	tool := NewTool(s, quietLogger())

	out := tool.Search(context.Background(), "timeline", 0)

	want := "Found 2 relevant passages:\n\n" +
		"[1] Relevance: 0.75\nSource: rfp.pdf (Section: timeline)\nSix month timeline.\n\n" +
		"[2] Relevance: 0.50\nSource: sam_gov\nBudget is fixed.\n\n"
	assert.Equal(t, want, out)
	assert.Equal(t, DefaultResults, s.gotN)
}

func TestSearch_UnknownSource(t *testing.T) {
	s := &stubSearcher{res: &index.SearchResults{
		IDs: []string{"x"}, Documents: []string{"text"},
		Metadatas: []domain.Metadata{{}}, Distances: []float64{0},
	}}
	out := NewTool(s, quietLogger()).Search(context.Background(), "q", 1)
	assert.Contains(t, out, "Source: Unknown\n")
}

func TestSearch_NoResults(t *testing.T) {
	tool := NewTool(&stubSearcher{res: &index.SearchResults{}}, quietLogger())
	assert.Equal(t, "No relevant information found in knowledge base.", tool.Search(context.Background(), "q", 3))
}

func TestSearch_ErrorIsRendered(t *testing.T) {
	tool := NewTool(&stubSearcher{err: errors.New("store offline")}, quietLogger())
	assert.Equal(t, "Error searching knowledge base: store offline", tool.Search(context.Background(), "q", 3))
}

func TestPassages_RejectsEmptyQuery(t *testing.T) {
	tool := NewTool(&stubSearcher{}, quietLogger())
	_, err := tool.Passages(context.Background(), "  ", 3, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPassages_AgainstIndex(t *testing.T) {
	ix := index.New(hashing.New("", hashing.DefaultDimension), memory.NewStorage(), index.WithLogger(quietLogger()))
	ctx := context.Background()
	_, err := ix.AddDocuments(ctx,
		[]string{
			"The project requires cloud infrastructure deployment on AWS.",
			"The proposed timeline is 6 months with monthly deliverables.",
		},
		[]domain.Metadata{
			{"source_file": "a.pdf", "section": "technical"},
			{"source_file": "b.pdf", "section": "timeline"},
		},
		[]string{"a_chunk_0", "b_chunk_0"})
	require.NoError(t, err)

	tool := NewTool(ix, quietLogger())
	passages, err := tool.Passages(ctx, "What is the project timeline?", 2, nil)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "b_chunk_0", passages[0].ID)
	assert.Equal(t, 1, passages[0].Rank)
	assert.Equal(t, "timeline", passages[0].Section)
	assert.GreaterOrEqual(t, passages[0].Relevance, passages[1].Relevance)

	filtered, err := tool.Passages(ctx, "timeline", 5, domain.Filter{"section": "technical"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "a.pdf", filtered[0].Source)
}
