package migrations

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLoadMigrationsSortsAndPairsUpDown(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_two.up.sql":   {Data: []byte("SELECT 2;")},
		"sql/000002_two.down.sql": {Data: []byte("SELECT -2;")},
		"sql/000001_one.up.sql":   {Data: []byte("SELECT 1;")},
		"sql/000001_one.down.sql": {Data: []byte("SELECT -1;")},
	}

	items, err := loadMigrations(fsys)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if items[0].Version != 1 || items[1].Version != 2 {
		t.Fatalf("unexpected migration order: %+v", items)
	}
	if items[0].Name != "one" {
		t.Fatalf("items[0].Name = %q", items[0].Name)
	}
}

func TestLoadMigrationsErrorsWhenDownMissing(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_one.up.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := loadMigrations(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "missing down SQL") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmbeddedMigrationCreatesContextTable(t *testing.T) {
	items, err := NewRunner(Vars{"vector_table": "ctx_store"}).load()
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected embedded migrations")
	}

	up := items[0].UpSQL
	requiredSnippets := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"CREATE TABLE ctx_store",
		"table_name TEXT PRIMARY KEY",
		"embedding vector NOT NULL",
		"embedder_id TEXT NOT NULL",
		"payload JSONB NOT NULL",
		"CREATE INDEX idx_ctx_store_embedder",
	}
	for _, snippet := range requiredSnippets {
		if !strings.Contains(up, snippet) {
			t.Fatalf("migration missing required snippet: %s", snippet)
		}
	}
	if strings.Contains(up, "${") || strings.Contains(items[0].DownSQL, "${") {
		t.Fatal("migration still contains unexpanded placeholders")
	}
}

func TestLoadRejectsUnsafeAndUnknownVariables(t *testing.T) {
	if _, err := NewRunner(Vars{"vector_table": "ctx; DROP TABLE x"}).load(); err == nil {
		t.Fatal("expected error for non-identifier variable")
	}

	fsys := fstest.MapFS{
		"sql/000001_one.up.sql":   {Data: []byte("CREATE TABLE ${other_table} (id INT);")},
		"sql/000001_one.down.sql": {Data: []byte("DROP TABLE ${other_table};")},
	}
	_, err := NewRunnerFS(fsys, nil).load()
	if err == nil || !strings.Contains(err.Error(), "other_table") {
		t.Fatalf("load() error = %v, want unknown variable error", err)
	}
}

func TestUpAppliesPendingMigrationsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	fsys := fstest.MapFS{
		"sql/000001_one.up.sql":   {Data: []byte("CREATE TABLE ${vector_table} (id INT)")},
		"sql/000001_one.down.sql": {Data: []byte("DROP TABLE ${vector_table}")},
		"sql/000002_two.up.sql":   {Data: []byte("CREATE INDEX idx_two ON ${vector_table} (id)")},
		"sql/000002_two.down.sql": {Data: []byte("DROP INDEX idx_two")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS querylens_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM querylens_schema_migrations ORDER BY version ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX idx_two ON schema_context (id)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO querylens_schema_migrations (version) VALUES ($1)")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := NewRunnerFS(fsys, nil).Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("Up() applied = %d, want 1", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet() error = %v", err)
	}
}

func TestStatusReportsAppliedVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS querylens_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM querylens_schema_migrations ORDER BY version ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	states, err := NewRunner(nil).Status(context.Background(), db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(states) == 0 || states[0].Version != 1 || states[0].Name != "schema_context" || states[0].Applied {
		t.Fatalf("Status() = %+v", states)
	}
}
