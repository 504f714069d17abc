// Package storetest provides behaviour checks shared by every vector store backend.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfp/internal/domain"
)

func entry(id string, vec []float32, md domain.Metadata) domain.IndexEntry {
	return domain.IndexEntry{ID: id, Text: "text " + id, Vector: vec, Metadata: md}
}

// Run exercises upsert, search, filter, count, clear and drop against a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) domain.VectorStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("upsert and search ordered by distance", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 3))
		require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{
			entry("x", []float32{1, 0, 0}, domain.Metadata{"section": "a"}),
			entry("y", []float32{0, 1, 0}, domain.Metadata{"section": "b"}),
			entry("z", []float32{0.9, 0.1, 0}, domain.Metadata{"section": "a"}),
		}))

		res, err := s.Search(ctx, []float32{1, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "x", res[0].ID)
		assert.Equal(t, "z", res[1].ID)
		assert.InDelta(t, 0.0, res[0].Distance, 1e-6)
		assert.LessOrEqual(t, res[0].Distance, res[1].Distance)
		assert.Equal(t, "text x", res[0].Text)
		assert.Equal(t, "a", res[0].Metadata["section"])
	})

	t.Run("upsert overwrites by id", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{entry("a", []float32{1, 0}, domain.Metadata{"v": "1"})}))
		require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{entry("a", []float32{0, 1}, domain.Metadata{"v": "2"})}))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		res, err := s.Search(ctx, []float32{0, 1}, 5, nil)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "2", res[0].Metadata["v"])
	})

	t.Run("filter by metadata", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{
			entry("a", []float32{1, 0}, domain.Metadata{"source": "sam_gov", "chunk_index": 0}),
			entry("b", []float32{1, 0.1}, domain.Metadata{"source": "file", "chunk_index": 1}),
		}))

		res, err := s.Search(ctx, []float32{1, 0}, 5, domain.Filter{"source": "file"})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "b", res[0].ID)

		res, err = s.Search(ctx, []float32{1, 0}, 5, domain.Filter{"chunk_index": 0})
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "a", res[0].ID)
	})

	t.Run("clear and drop", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{entry("a", []float32{1, 0}, nil)}))
		require.NoError(t, s.Clear(ctx))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{entry("b", []float32{1, 0}, nil)}))
		require.NoError(t, s.Drop(ctx))
		require.NoError(t, s.Init(ctx, 2))
		n, err = s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("empty store search", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Init(ctx, 2))
		res, err := s.Search(ctx, []float32{1, 0}, 3, nil)
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}
