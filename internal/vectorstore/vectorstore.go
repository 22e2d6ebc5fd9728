// Package vectorstore persists schema context vectors keyed by table name.
package vectorstore

import (
	"context"
	"errors"
	"time"

	"github.com/querylens/querylens/internal/schema"
)

var ErrUnavailable = errors.New("vector store unavailable")

// Record is the indexed form of one table. TableName is the stable key:
// at most one record exists per table.
type Record struct {
	TableName   string
	Embedding   []float32
	Description schema.Description
	EmbedderID  string
	Verified    bool
	ExtractedAt time.Time
}

type Match struct {
	Record Record
	Score  float64
}

// Store is safe for concurrent use. Upsert replaces a record atomically.
// Query ranks records by similarity; records whose embedding length differs
// from the query vector come last with a zero score so callers can detect
// them.
type Store interface {
	Upsert(ctx context.Context, record Record) error
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, tableName string) error
	HealthCheck(ctx context.Context) error
}
