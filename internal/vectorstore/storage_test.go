package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rfp/internal/domain"
)

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2.0, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
}

func TestRank(t *testing.T) {
	entries := []domain.ScoredEntry{
		{IndexEntry: domain.IndexEntry{ID: "c"}, Distance: 0.5},
		{IndexEntry: domain.IndexEntry{ID: "b"}, Distance: 0.1},
		{IndexEntry: domain.IndexEntry{ID: "a"}, Distance: 0.5},
	}
	ranked := Rank(entries, 2)
	if assert.Len(t, ranked, 2) {
		assert.Equal(t, "b", ranked[0].ID)
		assert.Equal(t, "a", ranked[1].ID)
	}
}
