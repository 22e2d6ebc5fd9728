package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/querylens/querylens/internal/observability"
	"github.com/querylens/querylens/internal/query"
)

type Options struct {
	// Timeout bounds each statement; zero leaves the caller's deadline in charge.
	Timeout time.Duration
	// MaxRows caps every result when the request sets no smaller limit. The
	// statement runs as written; reading stops after the cap.
	MaxRows int
}

// Engine runs statements against the configured database connection.
type Engine struct {
	db      *sql.DB
	options Options
}

func NewEngine(db *sql.DB, options Options) *Engine {
	return &Engine{db: db, options: options}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := query.StripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, query.ErrEmptySQL
	}
	if e.db == nil {
		return query.Result{}, fmt.Errorf("database is required")
	}
	if e.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.options.Timeout)
		defer cancel()
	}

	limit := e.rowLimit(request.RowLimit)

	start := time.Now()
	result, err := e.run(ctx, sqlText, limit)
	result.Duration = time.Since(start)
	if err != nil {
		observability.ObserveExecution("error", result.Duration)
		return query.Result{}, &query.ExecutionError{SQL: request.SQL, Err: err}
	}
	observability.ObserveExecution("ok", result.Duration)
	return result, nil
}

func (e *Engine) run(ctx context.Context, sqlText string, limit int) (query.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	result := query.Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if limit > 0 && len(result.Rows) == limit {
			result.Truncated = true
			// Cancel before Close so drivers abort instead of draining.
			cancel()
			return result, nil
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, err
	}
	return result, nil
}

func (e *Engine) rowLimit(requested int) int {
	switch {
	case requested > 0 && (e.options.MaxRows <= 0 || requested < e.options.MaxRows):
		return requested
	default:
		return e.options.MaxRows
	}
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.UTC().Format(time.RFC3339)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
