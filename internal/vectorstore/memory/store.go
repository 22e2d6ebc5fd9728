package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/querylens/querylens/internal/embedding"
	"github.com/querylens/querylens/internal/vectorstore"
)

// Store keeps records in process memory. Used in dev and tests.
type Store struct {
	mu      sync.RWMutex
	records map[string]vectorstore.Record
}

func New() *Store {
	return &Store{records: map[string]vectorstore.Record{}}
}

func (s *Store) Upsert(ctx context.Context, record vectorstore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	if len(record.Embedding) == 0 {
		return fmt.Errorf("embedding is required")
	}
	record.Embedding = append([]float32(nil), record.Embedding...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.TableName] = record
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	matches := make([]vectorstore.Match, 0, len(s.records))
	for _, record := range s.records {
		matches = append(matches, vectorstore.Match{Record: record, Score: embedding.Cosine(vector, record.Embedding)})
	}
	s.mu.RUnlock()

	sameLength := func(m vectorstore.Match) bool { return len(m.Record.Embedding) == len(vector) }
	sort.Slice(matches, func(i, j int) bool {
		if ci, cj := sameLength(matches[i]), sameLength(matches[j]); ci != cj {
			return ci
		}
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Record.TableName < matches[j].Record.TableName
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) List(ctx context.Context) ([]vectorstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]vectorstore.Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out, nil
}

func (s *Store) Delete(ctx context.Context, tableName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tableName)
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}
