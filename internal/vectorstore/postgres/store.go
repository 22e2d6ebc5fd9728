package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/querylens/querylens/internal/vectorstore"
)

const DefaultTable = "schema_context"

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store keeps schema context in a PostgreSQL table with a pgvector column.
type Store struct {
	db    *sql.DB
	table string
}

func NewStore(db *sql.DB, table string) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid vector table name %q", table)
	}
	return &Store{db: db, table: table}, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping vector db: %w: %w", vectorstore.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, record vectorstore.Record) error {
	if record.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	if len(record.Embedding) == 0 {
		return fmt.Errorf("embedding is required")
	}
	payload, err := json.Marshal(record.Description)
	if err != nil {
		return fmt.Errorf("marshal payload for %q: %w", record.TableName, err)
	}
	extractedAt := record.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = time.Now().UTC()
	}

	query := `
INSERT INTO ` + s.table + ` (table_name, embedding, dimensions, embedder_id, document, payload, verified, extracted_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, NOW())
ON CONFLICT (table_name) DO UPDATE SET
	embedding = EXCLUDED.embedding,
	dimensions = EXCLUDED.dimensions,
	embedder_id = EXCLUDED.embedder_id,
	document = EXCLUDED.document,
	payload = EXCLUDED.payload,
	verified = EXCLUDED.verified,
	extracted_at = EXCLUDED.extracted_at,
	updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, query,
		record.TableName,
		pgvector.NewVector(record.Embedding),
		len(record.Embedding),
		record.EmbedderID,
		record.Description.Document(),
		string(payload),
		record.Verified,
		extractedAt,
	); err != nil {
		return fmt.Errorf("upsert context for %q: %w", record.TableName, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	query := `
SELECT table_name, embedding, embedder_id, payload, verified, extracted_at,
	COALESCE(CASE WHEN dimensions = $2 THEN 1 - (embedding <=> $1) END, 0) AS score
FROM ` + s.table + `
ORDER BY dimensions = $2 DESC, CASE WHEN dimensions = $2 THEN embedding <=> $1 END ASC, table_name ASC
LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(vector), len(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query nearest context: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]vectorstore.Match, 0, k)
	for rows.Next() {
		var match vectorstore.Match
		record, err := scanRecord(rows, &match.Score)
		if err != nil {
			return nil, err
		}
		match.Record = record
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nearest context: %w", err)
	}
	return matches, nil
}

func (s *Store) List(ctx context.Context) ([]vectorstore.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT table_name, embedding, embedder_id, payload, verified, extracted_at
FROM `+s.table+`
ORDER BY table_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list context: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]vectorstore.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate context rows: %w", err)
	}
	return records, nil
}

func (s *Store) Delete(ctx context.Context, tableName string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE table_name = $1`, tableName); err != nil {
		return fmt.Errorf("delete context for %q: %w", tableName, err)
	}
	return nil
}

func scanRecord(rows *sql.Rows, extra ...any) (vectorstore.Record, error) {
	var (
		record  vectorstore.Record
		vector  pgvector.Vector
		payload []byte
	)
	targets := append([]any{&record.TableName, &vector, &record.EmbedderID, &payload, &record.Verified, &record.ExtractedAt}, extra...)
	if err := rows.Scan(targets...); err != nil {
		return vectorstore.Record{}, fmt.Errorf("scan context row: %w", err)
	}
	if err := json.Unmarshal(payload, &record.Description); err != nil {
		return vectorstore.Record{}, fmt.Errorf("decode payload for %q: %w", record.TableName, err)
	}
	record.Embedding = vector.Slice()
	return record, nil
}

var _ vectorstore.Store = (*Store)(nil)
