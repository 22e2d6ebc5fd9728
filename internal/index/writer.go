// Package index builds and verifies the schema context index.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/querylens/querylens/internal/embedding"
	"github.com/querylens/querylens/internal/observability"
	"github.com/querylens/querylens/internal/schema"
	"github.com/querylens/querylens/internal/vectorstore"
)

// WriteError reports that one table could not be indexed after all attempts.
type WriteError struct {
	TableName string
	Attempts  int
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("index table %q failed after %d attempt(s): %v", e.TableName, e.Attempts, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

type WriteSummary struct {
	Tables     int       `json:"tables"`
	Written    int       `json:"written"`
	Failed     int       `json:"failed"`
	Deleted    int       `json:"deleted"`
	FailedKeys []string  `json:"failed_tables,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type WriterConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Writer struct {
	store    vectorstore.Store
	embedder embedding.Embedder
	cfg      WriterConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewWriter(store vectorstore.Store, embedder embedding.Embedder, cfg WriterConfig, logger *slog.Logger) *Writer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return &Writer{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Write upserts one record per description. A failing table is retried with
// exponential backoff and then recorded; it never aborts the batch. The
// returned error, when non-nil, is a *multierror.Error of *WriteError.
func (w *Writer) Write(ctx context.Context, descriptions []schema.Description) (WriteSummary, error) {
	summary := WriteSummary{Tables: len(descriptions), StartedAt: w.now()}
	if w.store == nil || w.embedder == nil {
		return summary, fmt.Errorf("index writer is not configured")
	}

	var failures *multierror.Error
	for _, description := range descriptions {
		if err := w.writeOne(ctx, description); err != nil {
			summary.Failed++
			summary.FailedKeys = append(summary.FailedKeys, description.TableName)
			failures = multierror.Append(failures, err)
			observability.ObserveIndexWrite("failed")
			w.logWarn(ctx, "index write failed", slog.String("table", description.TableName), slog.String("error", err.Error()))
			continue
		}
		summary.Written++
		observability.ObserveIndexWrite("written")
	}
	summary.FinishedAt = w.now()
	return summary, failures.ErrorOrNil()
}

// Rebuild writes every description and removes records for tables that no
// longer exist, so the index mirrors the extracted schema.
func (w *Writer) Rebuild(ctx context.Context, descriptions []schema.Description) (WriteSummary, error) {
	summary, writeErr := w.Write(ctx, descriptions)
	if w.store == nil {
		return summary, writeErr
	}
	deleted, pruneErr := w.prune(ctx, descriptions)
	summary.Deleted = deleted
	summary.FinishedAt = w.now()
	if pruneErr != nil {
		return summary, multierror.Append(writeErr, pruneErr).ErrorOrNil()
	}
	return summary, writeErr
}

func (w *Writer) writeOne(ctx context.Context, description schema.Description) error {
	attempts := 0
	op := func() error {
		attempts++
		vector, err := w.embedder.Embed(ctx, description.Document())
		if err != nil {
			if errors.Is(err, embedding.ErrEmptyText) {
				return backoff.Permanent(fmt.Errorf("embed: %w", err))
			}
			return fmt.Errorf("embed: %w", err)
		}
		record := vectorstore.Record{
			TableName:   description.TableName,
			Embedding:   vector,
			Description: description,
			EmbedderID:  w.embedder.ID(),
			Verified:    true,
			ExtractedAt: w.now(),
		}
		if err := w.store.Upsert(ctx, record); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     w.cfg.InitialBackoff,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         w.cfg.MaxBackoff,
		Clock:               backoff.SystemClock,
	}, uint64(w.cfg.MaxAttempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		w.logWarn(ctx, "retrying index write",
			slog.String("table", description.TableName),
			slog.String("error", err.Error()),
			slog.String("wait", wait.String()),
		)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return &WriteError{TableName: description.TableName, Attempts: attempts, Err: err}
	}
	return nil
}

func (w *Writer) prune(ctx context.Context, descriptions []schema.Description) (int, error) {
	live := make(map[string]struct{}, len(descriptions))
	for _, description := range descriptions {
		live[description.TableName] = struct{}{}
	}
	records, err := w.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list indexed tables: %w", err)
	}

	deleted := 0
	var failures *multierror.Error
	for _, record := range records {
		if _, ok := live[record.TableName]; ok {
			continue
		}
		if err := w.store.Delete(ctx, record.TableName); err != nil {
			failures = multierror.Append(failures, fmt.Errorf("delete stale table %q: %w", record.TableName, err))
			continue
		}
		deleted++
		observability.ObserveIndexWrite("deleted")
	}
	return deleted, failures.ErrorOrNil()
}

func (w *Writer) logWarn(ctx context.Context, msg string, attrs ...slog.Attr) {
	if w.logger == nil {
		return
	}
	w.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}
