package index

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
	"rfp/internal/vectorstore/memory"
)

var sampleChunks = []string{
	"The project requires cloud infrastructure deployment on AWS.",
	"Our team has 10+ years of experience in software development.",
	"The proposed timeline is 6 months with monthly deliverables.",
	"Budget estimate: $500,000 including all phases of development.",
}

var sampleMetadata = []domain.Metadata{
	{"source": "test_rfp_1", "section": "technical_requirements"},
	{"source": "test_rfp_1", "section": "qualifications"},
	{"source": "test_rfp_1", "section": "timeline"},
	{"source": "test_rfp_1", "section": "budget"},
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestIndex() *Index {
	return New(hashing.New("", hashing.DefaultDimension), memory.NewStorage(), WithLogger(quietLogger()))
}

type failingEmbedder struct{ domain.Embedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("service down")
}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("service down")
}

type failingStore struct{ *memory.Storage }

func (failingStore) Upsert(context.Context, []domain.IndexEntry) error { return errors.New("disk full") }

func TestSearch_SampleCorpusRanksTimelineFirst(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	n, err := ix.AddDocuments(ctx, sampleChunks, sampleMetadata, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	res, err := ix.Search(ctx, "What is the project timeline?", 2, nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	assert.Equal(t, sampleChunks[2], res.Documents[0])
	assert.Equal(t, "timeline", res.Metadatas[0]["section"])
	assert.LessOrEqual(t, res.Distances[0], res.Distances[1])

	top := res.Results()[0]
	assert.InDelta(t, 1-top.Distance, top.Relevance, 1e-12)
}

func TestSearch_ExactPhraseRanksFirst(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()
	_, err := ix.AddDocuments(ctx, sampleChunks, nil, []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	res, err := ix.Search(ctx, "monthly deliverables", 3, nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.Len())
	assert.Equal(t, "c", res.IDs[0])
	for i := 1; i < res.Len(); i++ {
		assert.LessOrEqual(t, res.Distances[i-1], res.Distances[i])
	}
}

func TestSearch_Filter(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()
	_, err := ix.AddDocuments(ctx, sampleChunks, sampleMetadata, nil)
	require.NoError(t, err)

	res, err := ix.Search(ctx, "What is the project timeline?", 5, domain.Filter{"section": "budget"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, sampleChunks[3], res.Documents[0])
}

func TestSearch_EmptyIndex(t *testing.T) {
	res, err := newTestIndex().Search(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Empty(t, res.Results())
}

func TestAddDocuments_Empty(t *testing.T) {
	n, err := newTestIndex().AddDocuments(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddDocuments_GeneratesPositionalIDs(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	_, err := ix.AddDocuments(ctx, sampleChunks[:2], nil, nil)
	require.NoError(t, err)
	_, err = ix.AddDocuments(ctx, sampleChunks[2:], nil, nil)
	require.NoError(t, err)

	res, err := ix.Search(ctx, "Budget estimate including all phases", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "chunk_3", res.IDs[0])
	assert.Empty(t, res.Metadatas[0])
}

func TestAddDocuments_SameIDsAreIdempotent(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()
	ids := []string{"rfp_chunk_0", "rfp_chunk_1", "rfp_chunk_2", "rfp_chunk_3"}

	_, err := ix.AddDocuments(ctx, sampleChunks, sampleMetadata, ids)
	require.NoError(t, err)
	_, err = ix.AddDocuments(ctx, sampleChunks, sampleMetadata, ids)
	require.NoError(t, err)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalChunks)
}

func TestAddDocuments_LengthMismatch(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()

	_, err := ix.AddDocuments(ctx, sampleChunks, sampleMetadata[:1], nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = ix.AddDocuments(ctx, sampleChunks, nil, []string{"only-one"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAddDocuments_EmbeddingFailure(t *testing.T) {
	ix := New(failingEmbedder{hashing.New("", 8)}, memory.NewStorage(), WithLogger(quietLogger()))
	_, err := ix.AddDocuments(context.Background(), sampleChunks, nil, nil)
	assert.ErrorIs(t, err, domain.ErrEmbedding)

	_, err = ix.Search(context.Background(), "q", 1, nil)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestAddDocuments_StoreFailure(t *testing.T) {
	ix := New(hashing.New("", 8), failingStore{memory.NewStorage()}, WithLogger(quietLogger()))
	_, err := ix.AddDocuments(context.Background(), sampleChunks, nil, nil)
	assert.ErrorIs(t, err, domain.ErrIndex)
}

func TestAddDocuments_CopiesMetadata(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()
	md := []domain.Metadata{{"k": "v"}}

	_, err := ix.AddDocuments(ctx, []string{"alpha beta"}, md, []string{"x"})
	require.NoError(t, err)
	md[0]["k"] = "changed"

	res, err := ix.Search(ctx, "alpha", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", res.Metadatas[0]["k"])
}

func TestStats(t *testing.T) {
	ix := New(hashing.New("bow", 64), memory.NewStorage(),
		WithLogger(quietLogger()), WithCollection("custom"), WithStoreType("memory"))
	ctx := context.Background()
	_, err := ix.AddDocuments(ctx, sampleChunks, nil, nil)
	require.NoError(t, err)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		CollectionName:   "custom",
		TotalChunks:      4,
		PersistDirectory: "memory",
		EmbeddingModel:   "bow",
		StoreType:        "memory",
	}, stats)
}

func TestResetAndDelete(t *testing.T) {
	ix := newTestIndex()
	ctx := context.Background()
	_, err := ix.AddDocuments(ctx, sampleChunks, nil, nil)
	require.NoError(t, err)

	require.NoError(t, ix.Reset(ctx))
	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)

	_, err = ix.AddDocuments(ctx, sampleChunks, nil, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Delete(ctx))

	stats, err = ix.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
}
