// Package seed creates and fills the demo tables questions are asked against.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/querylens/querylens/internal/sqlcompat"
)

type Summary struct {
	Dialect string         `json:"dialect"`
	Created []string       `json:"created"`
	Skipped []string       `json:"skipped,omitempty"`
	Rows    map[string]int `json:"rows"`
}

type Seeder struct {
	db      *sql.DB
	dialect string
	cfg     Config
	log     *slog.Logger
}

func NewSeeder(db *sql.DB, dialect string, cfg Config, logger *slog.Logger) (*Seeder, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	switch dialect {
	case sqlcompat.DialectSQLite, sqlcompat.DialectPostgres, sqlcompat.DialectDuckDB:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if cfg.ExtraRows < 0 {
		return nil, fmt.Errorf("extra rows must be >= 0")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Seeder{db: db, dialect: dialect, cfg: cfg, log: logger}, nil
}

// Seed creates the demo tables and fills the ones that are empty. With Reset
// the tables are dropped first.
func (s *Seeder) Seed(ctx context.Context) (Summary, error) {
	tables := demoTables()
	s.appendGenerated(tables)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.cfg.Reset {
		for i := len(tables) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+tables[i].name); err != nil {
				return Summary{}, fmt.Errorf("drop table %s: %w", tables[i].name, err)
			}
		}
	}

	summary := Summary{Dialect: s.dialect, Rows: map[string]int{}}
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, createTableSQL(t, s.dialect)); err != nil {
			return Summary{}, fmt.Errorf("create table %s: %w", t.name, err)
		}
		var existing int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&existing); err != nil {
			return Summary{}, fmt.Errorf("count rows in %s: %w", t.name, err)
		}
		if existing > 0 {
			summary.Skipped = append(summary.Skipped, t.name)
			summary.Rows[t.name] = existing
			continue
		}

		statement := insertSQL(t, s.dialect)
		for _, row := range t.rows {
			if _, err := tx.ExecContext(ctx, statement, s.bindValues(t, row)...); err != nil {
				return Summary{}, fmt.Errorf("insert into %s: %w", t.name, err)
			}
		}
		summary.Created = append(summary.Created, t.name)
		summary.Rows[t.name] = len(t.rows)
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit seed transaction: %w", err)
	}
	s.log.Info("seeded demo tables",
		slog.String("dialect", s.dialect),
		slog.Any("created", summary.Created),
		slog.Any("skipped", summary.Skipped),
		slog.Bool("reset", s.cfg.Reset),
	)
	return summary, nil
}

func (s *Seeder) appendGenerated(tables []table) {
	if s.cfg.ExtraRows == 0 {
		return
	}
	generator := NewGenerator(s.cfg.Seed)
	for i := range tables {
		switch tables[i].name {
		case "sales":
			next := len(tables[i].rows) + 1
			for n := 0; n < s.cfg.ExtraRows; n++ {
				tables[i].rows = append(tables[i].rows, generator.NextSale(next+n))
			}
		case "orders":
			next := len(tables[i].rows) + 1
			for n := 0; n < s.cfg.ExtraRows; n++ {
				tables[i].rows = append(tables[i].rows, generator.NextOrder(next+n))
			}
		}
	}
}

// bindValues adapts dates and booleans to what each driver stores natively.
// SQLite keeps them as TEXT and INTEGER so strftime and comparisons work.
func (s *Seeder) bindValues(t table, row []any) []any {
	out := make([]any, len(row))
	for i, value := range row {
		out[i] = value
		if s.dialect != sqlcompat.DialectSQLite {
			continue
		}
		switch typed := value.(type) {
		case time.Time:
			if t.columns[i].kind == kindDate {
				out[i] = typed.Format("2006-01-02")
			} else {
				out[i] = typed.Format("2006-01-02 15:04:05")
			}
		case bool:
			if typed {
				out[i] = 1
			} else {
				out[i] = 0
			}
		}
	}
	return out
}

func createTableSQL(t table, dialect string) string {
	definitions := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		definition := c.name + " " + columnType(c.kind, dialect)
		if c.primaryKey {
			definition += " PRIMARY KEY"
		} else if c.notNull {
			definition += " NOT NULL"
		}
		definitions = append(definitions, definition)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.name, strings.Join(definitions, ", "))
}

func columnType(kind columnKind, dialect string) string {
	switch dialect {
	case sqlcompat.DialectPostgres:
		switch kind {
		case kindInteger:
			return "INTEGER"
		case kindReal:
			return "DOUBLE PRECISION"
		case kindDate:
			return "DATE"
		case kindTimestamp:
			return "TIMESTAMP"
		case kindBool:
			return "BOOLEAN"
		default:
			return "TEXT"
		}
	case sqlcompat.DialectDuckDB:
		switch kind {
		case kindInteger:
			return "INTEGER"
		case kindReal:
			return "DOUBLE"
		case kindDate:
			return "DATE"
		case kindTimestamp:
			return "TIMESTAMP"
		case kindBool:
			return "BOOLEAN"
		default:
			return "VARCHAR"
		}
	default:
		switch kind {
		case kindInteger, kindBool:
			return "INTEGER"
		case kindReal:
			return "REAL"
		default:
			return "TEXT"
		}
	}
}

func insertSQL(t table, dialect string) string {
	names := make([]string, 0, len(t.columns))
	placeholders := make([]string, 0, len(t.columns))
	for i, c := range t.columns {
		names = append(names, c.name)
		if dialect == sqlcompat.DialectPostgres {
			placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		} else {
			placeholders = append(placeholders, "?")
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(names, ", "), strings.Join(placeholders, ", "))
}
