package sqlcompat

import "testing"

func TestNormalizeSQLite(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "extract month",
			in:   "SELECT EXTRACT(MONTH FROM created_at) AS m FROM orders",
			want: "SELECT CAST(strftime('%m', created_at) AS INTEGER) AS m FROM orders",
		},
		{
			name: "lowercase extract year",
			in:   "select extract(year from created_at) from sales",
			want: "select CAST(strftime('%Y', created_at) AS INTEGER) from sales",
		},
		{
			name: "current date",
			in:   "SELECT * FROM orders WHERE created_at >= CURRENT_DATE",
			want: "SELECT * FROM orders WHERE created_at >= date('now')",
		},
		{
			name: "current timestamp",
			in:   "SELECT CURRENT_TIMESTAMP",
			want: "SELECT datetime('now')",
		},
		{
			name: "now call",
			in:   "SELECT NOW()",
			want: "SELECT datetime('now')",
		},
		{
			name: "date format",
			in:   "SELECT DATE_FORMAT(created_at, '%Y-%m') FROM orders",
			want: "SELECT strftime('%Y-%m', created_at) FROM orders",
		},
		{
			name: "date format minutes",
			in:   "SELECT DATE_FORMAT(created_at, '%H:%i') FROM orders",
			want: "SELECT strftime('%H:%M', created_at) FROM orders",
		},
		{
			name: "year function",
			in:   "SELECT YEAR(created_at) FROM sales",
			want: "SELECT CAST(strftime('%Y', created_at) AS INTEGER) FROM sales",
		},
		{
			name: "date trunc",
			in:   "SELECT DATE_TRUNC('month', created_at) AS m FROM orders",
			want: "SELECT strftime('%Y-%m-01', created_at) AS m FROM orders",
		},
		{
			name: "nested calls",
			in:   "SELECT MONTH(DATE_FORMAT(created_at, '%Y-%m-%d')) FROM orders",
			want: "SELECT CAST(strftime('%m', strftime('%Y-%m-%d', created_at)) AS INTEGER) FROM orders",
		},
		{
			name: "ilike",
			in:   "SELECT * FROM users WHERE name ILIKE '%ann%'",
			want: "SELECT * FROM users WHERE name LIKE '%ann%'",
		},
		{
			name: "backtick identifiers",
			in:   "SELECT `order id` FROM `orders`",
			want: `SELECT "order id" FROM "orders"`,
		},
		{
			name: "string literal untouched",
			in:   "SELECT 'CURRENT_DATE and NOW()' AS label",
			want: "SELECT 'CURRENT_DATE and NOW()' AS label",
		},
		{
			name: "escaped quote literal untouched",
			in:   "SELECT 'it''s NOW()' AS label, NOW()",
			want: "SELECT 'it''s NOW()' AS label, datetime('now')",
		},
		{
			name: "comment untouched",
			in:   "SELECT 1 -- NOW()",
			want: "SELECT 1 -- NOW()",
		},
		{
			name: "qualified column untouched",
			in:   "SELECT o.current_date FROM orders o",
			want: "SELECT o.current_date FROM orders o",
		},
		{
			name: "unbalanced call untouched",
			in:   "SELECT NOW(",
			want: "SELECT NOW(",
		},
		{
			name: "unknown date trunc unit untouched",
			in:   "SELECT DATE_TRUNC('week', created_at) FROM orders",
			want: "SELECT DATE_TRUNC('week', created_at) FROM orders",
		},
		{
			name: "native sqlite untouched",
			in:   "SELECT strftime('%Y', created_at) AS y, COUNT(*) FROM orders GROUP BY y",
			want: "SELECT strftime('%Y', created_at) AS y, COUNT(*) FROM orders GROUP BY y",
		},
		{
			name: "scenario query untouched",
			in:   "SELECT COUNT(*) FROM orders WHERE status = 'pending'",
			want: "SELECT COUNT(*) FROM orders WHERE status = 'pending'",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in, DialectSQLite); got != tc.want {
				t.Fatalf("Normalize() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizePostgres(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "SELECT `name` FROM users WHERE IFNULL(age, 0) > 30",
			want: `SELECT "name" FROM users WHERE COALESCE(age, 0) > 30`,
		},
		{
			in:   "SELECT strftime('%Y-%m', created_at) FROM orders",
			want: "SELECT to_char(created_at, 'YYYY-MM') FROM orders",
		},
		{
			in:   "SELECT * FROM orders WHERE created_at > date('now') AND updated_at < datetime('now')",
			want: "SELECT * FROM orders WHERE created_at > CURRENT_DATE AND updated_at < NOW()",
		},
		{
			in:   "SELECT YEAR(created_at) FROM sales",
			want: "SELECT EXTRACT(YEAR FROM created_at) FROM sales",
		},
		{
			in:   "SELECT DATE_FORMAT(created_at, '%Y-%m-%d %H:%i') FROM orders",
			want: "SELECT to_char(created_at, 'YYYY-MM-DD HH24:MI') FROM orders",
		},
		{
			in:   "SELECT EXTRACT(YEAR FROM created_at), NOW() FROM orders WHERE created_at > CURRENT_DATE - INTERVAL '7 days'",
			want: "SELECT EXTRACT(YEAR FROM created_at), NOW() FROM orders WHERE created_at > CURRENT_DATE - INTERVAL '7 days'",
		},
		{
			in:   "SELECT DATE(created_at) FROM orders",
			want: "SELECT DATE(created_at) FROM orders",
		},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in, DialectPostgres); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeDuckDB(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			in:   "SELECT strftime('%Y', created_at) FROM sales",
			want: "SELECT strftime(created_at, '%Y') FROM sales",
		},
		{
			in:   "SELECT strftime(created_at, '%Y') FROM sales",
			want: "SELECT strftime(created_at, '%Y') FROM sales",
		},
		{
			in:   "SELECT DATE_FORMAT(created_at, '%Y-%i') FROM sales",
			want: "SELECT strftime(created_at, '%Y-%M') FROM sales",
		},
		{
			in:   "SELECT * FROM sales WHERE sale_date = date('now')",
			want: "SELECT * FROM sales WHERE sale_date = CURRENT_DATE",
		},
		{
			in:   "SELECT `region`, SUM(amount) FROM sales GROUP BY `region`",
			want: `SELECT "region", SUM(amount) FROM sales GROUP BY "region"`,
		},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in, DialectDuckDB); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeUnknownDialectPassesThrough(t *testing.T) {
	in := "SELECT NOW(), `x` FROM t WHERE d = CURRENT_DATE"
	if got := Normalize(in, "oracle"); got != in {
		t.Fatalf("Normalize() = %q, want input unchanged", got)
	}
}

func TestNormalizeIsStableOnItsOwnOutput(t *testing.T) {
	inputs := []string{
		"SELECT EXTRACT(MONTH FROM created_at), NOW() FROM orders WHERE created_at >= CURRENT_DATE",
		"SELECT DATE_FORMAT(created_at, '%Y-%m'), YEAR(created_at) FROM orders",
		"SELECT `name` FROM users WHERE name ILIKE 'a%'",
	}
	for _, dialect := range Dialects() {
		for _, in := range inputs {
			once := Normalize(in, dialect)
			if twice := Normalize(once, dialect); twice != once {
				t.Fatalf("Normalize(%s) not stable: %q then %q", dialect, once, twice)
			}
		}
	}
}
