// Package history keeps a bounded, in-memory log of answered questions.
package history

import (
	"sync"

	"github.com/querylens/querylens/internal/pipeline"
)

const (
	DefaultCapacity  = 200
	DefaultListLimit = 50
)

// Store retains the most recent queries up to its capacity, evicting the
// oldest first. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	entries  map[string]pipeline.GeneratedQuery
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		entries:  make(map[string]pipeline.GeneratedQuery, capacity),
	}
}

func (s *Store) Record(generated pipeline.GeneratedQuery) {
	if generated.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[generated.ID]; !exists {
		s.order = append(s.order, generated.ID)
	}
	s.entries[generated.ID] = generated
	for len(s.order) > s.capacity {
		delete(s.entries, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Store) Get(id string) (pipeline.GeneratedQuery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	generated, ok := s.entries[id]
	return generated, ok
}

// List returns up to limit entries, newest first. A non-positive limit returns all.
func (s *Store) List(limit int) []pipeline.GeneratedQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]pipeline.GeneratedQuery, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[s.order[i]])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
