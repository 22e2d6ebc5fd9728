package schema

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
)

func TestCompareColumns(t *testing.T) {
	indexed := Description{TableName: "orders", Columns: []Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "status", Type: "TEXT"},
		{Name: "legacy", Type: "TEXT"},
	}}
	live := Description{TableName: "orders", Columns: []Column{
		{Name: "id", Type: "integer"},
		{Name: "status", Type: "VARCHAR"},
		{Name: "created_at", Type: "TIMESTAMP"},
	}}

	got := CompareColumns(indexed, live)
	want := ColumnDiff{Missing: []string{"created_at"}, Extra: []string{"legacy"}, Changed: []string{"status"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("CompareColumns() mismatch (-want +got):\n%s", diff)
	}
	if got.Empty() {
		t.Fatal("Empty() = true")
	}
	if !CompareColumns(live, live).Empty() {
		t.Fatal("self comparison should be empty")
	}
}

func TestDocumentFallsBackToSummarize(t *testing.T) {
	d := Description{TableName: "users", Columns: []Column{{Name: "id", Nullable: true}}}
	if got := d.Document(); got != "Table 'users' with columns: id." {
		t.Fatalf("Document() = %q", got)
	}
}

func TestInformationSchemaIntrospectorPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	introspector, err := NewIntrospector(db, "postgres")
	if err != nil {
		t.Fatalf("NewIntrospector() error = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns c")).
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "nullable", "pk"}).
			AddRow("id", "integer", false, true).
			AddRow("status", "text", true, false))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."orders" ORDER BY "id" LIMIT 3`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(int64(1), []byte("pending")))

	descriptions, err := NewExtractor(introspector, ExtractorConfig{}, nil).Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := []Description{{
		TableName: "orders",
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "status", Type: "TEXT", Nullable: true},
		},
		SampleRows: [][]string{{"1", "pending"}},
		Summary:    "Table 'orders' with columns: id (INTEGER, primary key, not null), status (TEXT). Sample data: {id=1, status=pending}",
	}}
	if diff := cmp.Diff(want, descriptions); diff != "" {
		t.Fatalf("Extract() mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSampleRowsWithoutPrimaryKeyOrdersByEveryColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	introspector, err := NewIntrospector(db, "duckdb")
	if err != nil {
		t.Fatalf("NewIntrospector() error = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).
		WithArgs("main").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("events"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns c")).
		WithArgs("main", "events").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "nullable", "pk"}).
			AddRow("kind", "varchar", true, false).
			AddRow("at", "timestamp", true, false))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "main"."events" ORDER BY "kind", "at" LIMIT 3`)).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "at"}))

	if _, err := NewExtractor(introspector, ExtractorConfig{}, nil).Extract(context.Background()); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewIntrospectorRejectsUnknownDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := NewIntrospector(db, "oracle"); err == nil {
		t.Fatal("expected error")
	}
}
