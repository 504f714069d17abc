// Package vectorstore holds helpers shared by the vector store backends.
// Each backend implements domain.VectorStore.
package vectorstore

import (
	"math"
	"sort"

	"rfp/internal/domain"
)

// Storage persists vectors and supports similarity search.
type Storage = domain.VectorStore

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Rank sorts scored entries by increasing distance, breaking ties by ID,
// and truncates to topK when topK > 0.
func Rank(entries []domain.ScoredEntry, topK int) []domain.ScoredEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Distance != entries[j].Distance {
			return entries[i].Distance < entries[j].Distance
		}
		return entries[i].ID < entries[j].ID
	})
	if topK > 0 && len(entries) > topK {
		entries = entries[:topK]
	}
	return entries
}
