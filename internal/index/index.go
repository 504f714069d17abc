// Package index pairs an embedder with a vector store to index and search text chunks.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"rfp/internal/domain"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "rfp_documents"

// Index is the single entry point for writing and querying one collection.
// Writes are serialised; searches run concurrently with each other but never
// observe a partially applied add.
type Index struct {
	embedder   domain.Embedder
	store      domain.VectorStore
	collection string
	storeType  string
	logger     *slog.Logger

	mu        sync.RWMutex
	dimension int
}

// Option customises an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(ix *Index) { ix.logger = l } }

// WithCollection sets the collection name reported by Stats.
func WithCollection(name string) Option { return func(ix *Index) { ix.collection = name } }

// WithStoreType sets the backend name reported by Stats.
func WithStoreType(name string) Option { return func(ix *Index) { ix.storeType = name } }

// New creates an Index. The store is initialised lazily on first use because
// remote embedders only learn their dimension from the first response.
func New(embedder domain.Embedder, store domain.VectorStore, opts ...Option) *Index {
	ix := &Index{
		embedder:   embedder,
		store:      store,
		collection: DefaultCollection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Stats describes the indexed collection.
type Stats struct {
	CollectionName   string `json:"collection_name"`
	TotalChunks      int    `json:"total_chunks"`
	PersistDirectory string `json:"persist_directory"`
	EmbeddingModel   string `json:"embedding_model"`
	StoreType        string `json:"store_type,omitempty"`
}

// AddDocuments embeds chunks and upserts them with their metadata.
// When ids is nil, ids are chunk_<n> counting from the current collection size,
// which is only safe for a single writer appending new content.
// When metadatas is nil every chunk gets empty metadata.
func (ix *Index) AddDocuments(ctx context.Context, chunks []string, metadatas []domain.Metadata, ids []string) (int, error) {
	if len(chunks) == 0 {
		ix.logger.Warn("no chunks to add")
		return 0, nil
	}
	if metadatas != nil && len(metadatas) != len(chunks) {
		return 0, fmt.Errorf("%w: %d metadatas for %d chunks", domain.ErrInvalidInput, len(metadatas), len(chunks))
	}
	if ids != nil && len(ids) != len(chunks) {
		return 0, fmt.Errorf("%w: %d ids for %d chunks", domain.ErrInvalidInput, len(ids), len(chunks))
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(chunks))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.ensureInit(ctx, len(vectors[0])); err != nil {
		return 0, err
	}
	if ids == nil {
		count, err := ix.store.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrIndex, err)
		}
		ix.logger.Warn("generating positional chunk ids; re-ingesting will duplicate content", slog.Int("from", count))
		ids = make([]string, len(chunks))
		for i := range chunks {
			ids[i] = fmt.Sprintf("chunk_%d", count+i)
		}
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i, text := range chunks {
		md := domain.Metadata{}
		if metadatas != nil {
			md = metadatas[i].Clone()
		}
		entries[i] = domain.IndexEntry{ID: ids[i], Text: text, Vector: vectors[i], Metadata: md}
	}
	if err := ix.store.Upsert(ctx, entries); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	ix.logger.Info("added chunks", slog.Int("count", len(entries)), slog.String("collection", ix.collection))
	return len(entries), nil
}

// Search returns up to n entries closest to query, optionally restricted by filter.
func (ix *Index) Search(ctx context.Context, query string, n int, filter domain.Filter) (*SearchResults, error) {
	if n <= 0 {
		n = 5
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}

	if err := ix.ensureReady(ctx, len(vec)); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	hits, err := ix.store.Search(ctx, vec, n, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	res := &SearchResults{
		IDs:       make([]string, len(hits)),
		Documents: make([]string, len(hits)),
		Metadatas: make([]domain.Metadata, len(hits)),
		Distances: make([]float64, len(hits)),
	}
	for i, h := range hits {
		res.IDs[i] = h.ID
		res.Documents[i] = h.Text
		res.Metadatas[i] = h.Metadata
		res.Distances[i] = h.Distance
	}
	return res, nil
}

// Stats reports the collection size and configuration.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	if dim := ix.embedder.Dimension(); dim > 0 {
		if err := ix.ensureReady(ctx, dim); err != nil {
			return Stats{}, err
		}
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n, err := ix.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	return Stats{
		CollectionName:   ix.collection,
		TotalChunks:      n,
		PersistDirectory: ix.store.Location(),
		EmbeddingModel:   ix.embedder.Name(),
		StoreType:        ix.storeType,
	}, nil
}

// Reset deletes every entry and recreates an empty collection.
func (ix *Index) Reset(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	dim := ix.dimension
	if err := ix.store.Drop(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	ix.dimension = 0
	if dim == 0 {
		dim = ix.embedder.Dimension()
	}
	if dim > 0 {
		if err := ix.ensureInit(ctx, dim); err != nil {
			return err
		}
	}
	ix.logger.Warn("collection reset", slog.String("collection", ix.collection))
	return nil
}

// Delete removes the collection entirely.
func (ix *Index) Delete(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.Drop(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	ix.dimension = 0
	ix.logger.Warn("collection deleted", slog.String("collection", ix.collection))
	return nil
}

// Close releases the underlying store.
func (ix *Index) Close() error { return ix.store.Close() }

// ensureReady initialises the store once, for readers that found it untouched.
func (ix *Index) ensureReady(ctx context.Context, dimension int) error {
	ix.mu.RLock()
	ready := ix.dimension != 0
	ix.mu.RUnlock()
	if ready {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.dimension != 0 {
		return nil
	}
	return ix.initLocked(ctx, dimension)
}

// ensureInit must be called with the write lock held.
func (ix *Index) ensureInit(ctx context.Context, dimension int) error {
	if ix.dimension == dimension {
		return nil
	}
	return ix.initLocked(ctx, dimension)
}

func (ix *Index) initLocked(ctx context.Context, dimension int) error {
	if err := ix.store.Init(ctx, dimension); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}
	ix.dimension = dimension
	return nil
}
