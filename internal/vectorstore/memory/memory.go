package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rfp/internal/domain"
	"rfp/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine distance.
// Entries are kept in insertion order and overwritten in place on upsert.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	entries   map[string]domain.IndexEntry
}

var _ domain.VectorStore = (*Storage)(nil)

func NewStorage() *Storage { return &Storage{entries: make(map[string]domain.IndexEntry)} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension && len(s.entries) > 0 {
		return fmt.Errorf("collection has dimension %d, got %d", s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, entries []domain.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; !ok {
			s.order = append(s.order, e.ID)
		}
		e.Metadata = e.Metadata.Clone()
		s.entries[e.ID] = e
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int, filter domain.Filter) ([]domain.ScoredEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	scored := make([]domain.ScoredEntry, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		if !filter.Matches(e.Metadata) {
			continue
		}
		scored = append(scored, domain.ScoredEntry{IndexEntry: e, Distance: vectorstore.CosineDistance(e.Vector, vector)})
	}
	return vectorstore.Rank(scored, topK), nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.entries = make(map[string]domain.IndexEntry)
	return nil
}

// Drop removes all entries and forgets the dimension.
func (s *Storage) Drop(ctx context.Context) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.dimension = 0
	s.mu.Unlock()
	return nil
}

func (s *Storage) Location() string { return "memory" }

func (s *Storage) Close() error { return nil }
