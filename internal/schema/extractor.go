package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

const (
	DefaultSampleRows  = 3
	DefaultMaxAttempts = 3
)

type ExtractorConfig struct {
	SampleRows  int
	MaxAttempts int
}

type Extractor struct {
	introspector Introspector
	sampleRows   int
	maxAttempts  int
	logger       *slog.Logger
}

func NewExtractor(introspector Introspector, cfg ExtractorConfig, logger *slog.Logger) *Extractor {
	if cfg.SampleRows < 0 {
		cfg.SampleRows = 0
	} else if cfg.SampleRows == 0 {
		cfg.SampleRows = DefaultSampleRows
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Extractor{
		introspector: introspector,
		sampleRows:   cfg.SampleRows,
		maxAttempts:  cfg.MaxAttempts,
		logger:       logger,
	}
}

// Extract returns one Description per user table, ordered by table name.
// A table that disappears mid-scan triggers a fresh enumeration; the result
// is never silently partial.
func (e *Extractor) Extract(ctx context.Context) ([]Description, error) {
	if e == nil || e.introspector == nil {
		return nil, &ExtractionError{Err: fmt.Errorf("introspector is not configured")}
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		descriptions, vanished, err := e.scan(ctx)
		if err != nil {
			return nil, err
		}
		if vanished == "" {
			return descriptions, nil
		}
		if e.logger != nil {
			e.logger.WarnContext(ctx, "table vanished during schema scan, restarting",
				slog.String("table", vanished),
				slog.Int("attempt", attempt),
			)
		}
	}
	return nil, &ExtractionError{Err: fmt.Errorf("schema kept changing after %d attempts", e.maxAttempts)}
}

func (e *Extractor) scan(ctx context.Context) ([]Description, string, error) {
	tables, err := e.introspector.ListTables(ctx)
	if err != nil {
		return nil, "", &ExtractionError{Err: err}
	}

	descriptions := make([]Description, 0, len(tables))
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, "", &ExtractionError{Table: table, Err: err}
		}
		description, err := e.describe(ctx, table)
		if err == nil {
			descriptions = append(descriptions, description)
			continue
		}
		gone, checkErr := e.vanished(ctx, table, err)
		if checkErr != nil {
			return nil, "", &ExtractionError{Table: table, Err: errors.Join(err, checkErr)}
		}
		if gone {
			return nil, table, nil
		}
		return nil, "", &ExtractionError{Table: table, Err: err}
	}
	return descriptions, "", nil
}

func (e *Extractor) describe(ctx context.Context, table string) (Description, error) {
	columns, err := e.introspector.ListColumns(ctx, table)
	if err != nil {
		return Description{}, err
	}
	samples, err := e.introspector.SampleRows(ctx, table, sampleOrder(columns), e.sampleRows)
	if err != nil {
		return Description{}, err
	}
	description := Description{
		TableName:  table,
		Columns:    columns,
		SampleRows: samples,
	}
	description.Summary = Summarize(description)
	return description, nil
}

// sampleOrder orders samples by the primary key, or by every column when
// the table has none.
func sampleOrder(columns []Column) []string {
	var keys, all []string
	for _, column := range columns {
		all = append(all, column.Name)
		if column.PrimaryKey {
			keys = append(keys, column.Name)
		}
	}
	if len(keys) > 0 {
		return keys
	}
	return all
}

func (e *Extractor) vanished(ctx context.Context, table string, cause error) (bool, error) {
	if errors.Is(cause, ErrTableNotFound) {
		return true, nil
	}
	tables, err := e.introspector.ListTables(ctx)
	if err != nil {
		return false, err
	}
	return !slices.Contains(tables, table), nil
}
