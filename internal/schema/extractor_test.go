package schema

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT, created_at TIMESTAMP)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_name TEXT, total_amount REAL, status TEXT DEFAULT 'pending')`,
		`INSERT INTO users (name, email) VALUES ('Alice', 'alice@example.com'), ('Bob', 'bob@example.com'), ('Carol', NULL), ('Dan', 'dan@example.com')`,
		`INSERT INTO orders (customer_name, total_amount, status) VALUES ('Alice', 10.5, 'shipped')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Exec(%q) error = %v", stmt, err)
		}
	}
	return db
}

func TestExtractSQLite(t *testing.T) {
	db := openSQLite(t)
	introspector, err := NewIntrospector(db, "sqlite")
	if err != nil {
		t.Fatalf("NewIntrospector() error = %v", err)
	}

	descriptions, err := NewExtractor(introspector, ExtractorConfig{}, nil).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(descriptions) != 2 {
		t.Fatalf("len(descriptions) = %d", len(descriptions))
	}
	if descriptions[0].TableName != "orders" || descriptions[1].TableName != "users" {
		t.Fatalf("tables = %q, %q", descriptions[0].TableName, descriptions[1].TableName)
	}

	users := descriptions[1]
	if got := strings.Join(users.ColumnNames(), ","); got != "id,name,email,created_at" {
		t.Fatalf("ColumnNames() = %q", got)
	}
	if !users.Columns[0].PrimaryKey || users.Columns[0].Nullable {
		t.Fatalf("id column = %+v", users.Columns[0])
	}
	if users.Columns[1].Nullable {
		t.Fatalf("name column should be NOT NULL: %+v", users.Columns[1])
	}
	if !users.Columns[2].Nullable {
		t.Fatalf("email column should be nullable: %+v", users.Columns[2])
	}
	if len(users.SampleRows) != DefaultSampleRows {
		t.Fatalf("len(SampleRows) = %d", len(users.SampleRows))
	}
	if !strings.HasPrefix(users.Summary, "Table 'users' with columns: id (INTEGER, primary key, not null)") {
		t.Fatalf("Summary = %q", users.Summary)
	}
	if !strings.Contains(users.Summary, "email=NULL") {
		t.Fatalf("Summary missing NULL sample: %q", users.Summary)
	}
}

func TestExtractSamplesRowsInPrimaryKeyOrder(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	for _, stmt := range []string{
		`CREATE TABLE codes (code TEXT PRIMARY KEY, label TEXT)`,
		`INSERT INTO codes (code, label) VALUES ('d', 'four'), ('b', 'two'), ('c', 'three'), ('a', 'one')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Exec(%q) error = %v", stmt, err)
		}
	}

	introspector, _ := NewIntrospector(db, "sqlite")
	extractor := NewExtractor(introspector, ExtractorConfig{}, nil)
	first, err := extractor.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	var codes []string
	for _, row := range first[0].SampleRows {
		codes = append(codes, row[0])
	}
	if got := strings.Join(codes, ","); got != "a,b,c" {
		t.Fatalf("sampled codes = %q, want a,b,c", got)
	}

	second, err := extractor.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if first[0].Summary != second[0].Summary {
		t.Fatalf("Summary changed between extractions:\n%s\n%s", first[0].Summary, second[0].Summary)
	}
}

func TestExtractUnreachableDatabase(t *testing.T) {
	db := openSQLite(t)
	introspector, _ := NewIntrospector(db, "sqlite")
	_ = db.Close()

	_, err := NewExtractor(introspector, ExtractorConfig{}, nil).Extract(context.Background())
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("Extract() error = %v, want *ExtractionError", err)
	}
}

func TestExtractRestartsWhenTableVanishes(t *testing.T) {
	fake := &vanishingIntrospector{tables: []string{"a", "b"}, dropOnColumns: "b"}
	descriptions, err := NewExtractor(fake, ExtractorConfig{SampleRows: -1}, nil).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(descriptions) != 1 || descriptions[0].TableName != "a" {
		t.Fatalf("descriptions = %+v", descriptions)
	}
	if fake.listCalls < 2 {
		t.Fatalf("listCalls = %d, want re-enumeration", fake.listCalls)
	}
}

func TestExtractGivesUpWhenSchemaKeepsChanging(t *testing.T) {
	fake := &churningIntrospector{}
	_, err := NewExtractor(fake, ExtractorConfig{MaxAttempts: 2}, nil).Extract(context.Background())
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("Extract() error = %v, want *ExtractionError", err)
	}
}

func TestExtractSurfacesNonVanishingColumnErrors(t *testing.T) {
	boom := errors.New("permission denied")
	fake := &failingIntrospector{err: boom}
	_, err := NewExtractor(fake, ExtractorConfig{}, nil).Extract(context.Background())
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) || extractionErr.Table != "t" {
		t.Fatalf("Extract() error = %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("errors.Is(err, boom) = false: %v", err)
	}
}

type vanishingIntrospector struct {
	tables        []string
	dropOnColumns string
	listCalls     int
}

func (v *vanishingIntrospector) ListTables(context.Context) ([]string, error) {
	v.listCalls++
	return append([]string(nil), v.tables...), nil
}

func (v *vanishingIntrospector) ListColumns(_ context.Context, table string) ([]Column, error) {
	if table == v.dropOnColumns {
		v.tables = []string{"a"}
		return nil, ErrTableNotFound
	}
	return []Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}}, nil
}

func (v *vanishingIntrospector) SampleRows(context.Context, string, []string, int) ([][]string, error) {
	return nil, nil
}

type churningIntrospector struct{}

func (churningIntrospector) ListTables(context.Context) ([]string, error) { return []string{"t"}, nil }

func (churningIntrospector) ListColumns(context.Context, string) ([]Column, error) {
	return nil, ErrTableNotFound
}

func (churningIntrospector) SampleRows(context.Context, string, []string, int) ([][]string, error) {
	return nil, nil
}

type failingIntrospector struct{ err error }

func (f *failingIntrospector) ListTables(context.Context) ([]string, error) { return []string{"t"}, nil }

func (f *failingIntrospector) ListColumns(context.Context, string) ([]Column, error) {
	return nil, f.err
}

func (f *failingIntrospector) SampleRows(context.Context, string, []string, int) ([][]string, error) {
	return nil, nil
}
