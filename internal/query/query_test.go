package query

import (
	"errors"
	"testing"
)

func TestCheckReadOnlyAcceptsQueries(t *testing.T) {
	queries := []string{
		"SELECT COUNT(*) FROM orders WHERE status = 'pending'",
		"select * from users;",
		"WITH recent AS (SELECT * FROM orders) SELECT COUNT(*) FROM recent",
		"-- top customers\nSELECT customer_name FROM orders",
		"SELECT 'DELETE FROM users; --' AS prank",
		"SELECT updated_at, created_at FROM orders",
		"(SELECT 1) UNION (SELECT 2)",
		"WITH x AS (SELECT replace(name, 'a', 'b') AS n FROM users) SELECT * FROM x",
		"WITH t AS (SELECT REPLACE (email, '@', ' at ') AS e FROM users) SELECT e FROM t",
	}
	for _, sqlText := range queries {
		if err := CheckReadOnly(sqlText); err != nil {
			t.Fatalf("CheckReadOnly(%q) error = %v", sqlText, err)
		}
	}
}

func TestCheckReadOnlyRejectsWrites(t *testing.T) {
	queries := []string{
		"DELETE FROM orders",
		"UPDATE orders SET status = 'shipped'",
		"DROP TABLE users",
		"SELECT 1; DROP TABLE users",
		"WITH gone AS (DELETE FROM orders RETURNING *) SELECT * FROM gone",
		"PRAGMA table_info(users)",
		"WITH x AS (SELECT 1 AS id) REPLACE INTO users (id) SELECT id FROM x",
		"WITH x AS (SELECT replace(name, 'a', 'b') AS n FROM users) INSERT INTO names(n) SELECT n FROM x",
	}
	for _, sqlText := range queries {
		if err := CheckReadOnly(sqlText); !errors.Is(err, ErrNotReadOnly) {
			t.Fatalf("CheckReadOnly(%q) error = %v, want ErrNotReadOnly", sqlText, err)
		}
	}
	if err := CheckReadOnly(" ; "); !errors.Is(err, ErrEmptySQL) {
		t.Fatalf("CheckReadOnly(blank) error = %v, want ErrEmptySQL", err)
	}
}

func TestExecutionErrorUnwraps(t *testing.T) {
	driverErr := errors.New("no such table: ghosts")
	err := error(&ExecutionError{SQL: "SELECT * FROM ghosts", Err: driverErr})
	if !errors.Is(err, driverErr) {
		t.Fatal("ExecutionError should unwrap to the driver error")
	}
	if err.Error() != "execute query: no such table: ghosts" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
