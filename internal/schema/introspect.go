package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Introspector reads catalog metadata from one database engine.
type Introspector interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]Column, error)
	// SampleRows returns up to limit rows ordered by orderBy, so unchanged
	// tables sample the same rows on every extraction.
	SampleRows(ctx context.Context, table string, orderBy []string, limit int) ([][]string, error)
}

func NewIntrospector(db *sql.DB, dialect string) (Introspector, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	switch dialect {
	case "sqlite":
		return &SQLiteIntrospector{db: db}, nil
	case "postgres":
		return &InformationSchemaIntrospector{db: db, schema: "public", quote: quoteIdent}, nil
	case "duckdb":
		return &InformationSchemaIntrospector{db: db, schema: "main", quote: quoteIdent}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

type SQLiteIntrospector struct {
	db *sql.DB
}

func (s *SQLiteIntrospector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query sqlite_master: %w", err)
	}
	return scanStrings(rows)
}

func (s *SQLiteIntrospector) ListColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(`+quoteIdent(table)+`)`)
	if err != nil {
		return nil, fmt.Errorf("table_info %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var (
			cid        int
			name       string
			typeName   string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typeName, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info %q: %w", table, err)
		}
		columns = append(columns, Column{
			Name:       name,
			Type:       strings.ToUpper(typeName),
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table_info %q: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%q: %w", table, ErrTableNotFound)
	}
	return columns, nil
}

func (s *SQLiteIntrospector) SampleRows(ctx context.Context, table string, orderBy []string, limit int) ([][]string, error) {
	return sampleRows(ctx, s.db, quoteIdent(table), orderClause(orderBy, quoteIdent), limit)
}

// InformationSchemaIntrospector serves engines exposing the SQL-standard
// information_schema views (PostgreSQL, DuckDB).
type InformationSchemaIntrospector struct {
	db     *sql.DB
	schema string
	quote  func(string) string
}

func (s *InformationSchemaIntrospector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`, s.schema)
	if err != nil {
		return nil, fmt.Errorf("query information_schema.tables: %w", err)
	}
	return scanStrings(rows)
}

func (s *InformationSchemaIntrospector) ListColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT
	c.column_name,
	c.data_type,
	c.is_nullable = 'YES',
	EXISTS (
		SELECT 1
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
			ON tc.constraint_name = k.constraint_name
			AND tc.table_schema = k.table_schema
			AND tc.table_name = k.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND k.column_name = c.column_name
	)
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`, s.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query information_schema.columns for %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.Name, &column.Type, &column.Nullable, &column.PrimaryKey); err != nil {
			return nil, fmt.Errorf("scan column for %q: %w", table, err)
		}
		column.Type = strings.ToUpper(column.Type)
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns for %q: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%q: %w", table, ErrTableNotFound)
	}
	return columns, nil
}

func (s *InformationSchemaIntrospector) SampleRows(ctx context.Context, table string, orderBy []string, limit int) ([][]string, error) {
	return sampleRows(ctx, s.db, s.quote(s.schema)+"."+s.quote(table), orderClause(orderBy, s.quote), limit)
}

func orderClause(columns []string, quote func(string) string) string {
	if len(columns) == 0 {
		return ""
	}
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = quote(column)
	}
	return " ORDER BY " + strings.Join(quoted, ", ")
}

func sampleRows(ctx context.Context, db *sql.DB, qualified, order string, limit int) ([][]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s%s LIMIT %d`, qualified, order, limit))
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", qualified, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sample columns %s: %w", qualified, err)
	}
	var out [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan sample %s: %w", qualified, err)
		}
		row := make([]string, len(values))
		for i, value := range values {
			row[i] = formatValue(value)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample %s: %w", qualified, err)
	}
	return out, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return out, nil
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(typed)
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
