// Package indexer keeps the schema context index in step with the live database.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/querylens/querylens/internal/archive"
	"github.com/querylens/querylens/internal/index"
	"github.com/querylens/querylens/internal/schema"
)

const (
	KindRebuild = "rebuild"
	KindVerify  = "verify"

	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

var ErrRunInProgress = errors.New("an index run is already in progress")

type Extractor interface {
	Extract(ctx context.Context) ([]schema.Description, error)
}

type IndexWriter interface {
	Rebuild(ctx context.Context, descriptions []schema.Description) (index.WriteSummary, error)
}

type Verifier interface {
	Verify(ctx context.Context) (index.VerifyReport, error)
}

type Archiver interface {
	Save(ctx context.Context, descriptions []schema.Description) (archive.Snapshot, error)
}

type Config struct {
	RefreshInterval time.Duration
	VerifyInterval  time.Duration
	RebuildOnStart  bool
	CreatedBy       string
}

// Service runs rebuild and verify cycles on tickers. Runs never overlap; a
// run requested while another is active fails with ErrRunInProgress.
type Service struct {
	Extractor Extractor
	Writer    IndexWriter
	Verifier  Verifier
	// Archive is optional; when set every rebuild with a successful
	// extraction is snapshotted.
	Archive Archiver
	Config  Config
	Logger  *slog.Logger
	Clock   func() time.Time

	running sync.Mutex
}

type RebuildSummary struct {
	Status       string             `json:"status"`
	Tables       int                `json:"tables"`
	Write        index.WriteSummary `json:"write"`
	Failures     []string           `json:"failures,omitempty"`
	Snapshot     *archive.Snapshot  `json:"snapshot,omitempty"`
	ArchiveError string             `json:"archive_error,omitempty"`
	CreatedBy    string             `json:"created_by"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
}

type VerifySummary struct {
	Status     string             `json:"status"`
	Consistent bool               `json:"consistent"`
	Missing    int                `json:"missing_tables"`
	Extra      int                `json:"extra_tables"`
	Mismatched int                `json:"mismatched_tables"`
	Report     index.VerifyReport `json:"report"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	if s.Config.RebuildOnStart {
		s.rebuildCycle(ctx)
	}

	refreshTicker := time.NewTicker(s.Config.RefreshInterval)
	defer refreshTicker.Stop()
	verifyTicker := time.NewTicker(s.Config.VerifyInterval)
	defer verifyTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refreshTicker.C:
			s.rebuildCycle(ctx)
		case <-verifyTicker.C:
			summary, err := s.RunVerifyOnce(ctx)
			if err != nil {
				s.logError(ctx, "verify cycle failed", err)
				continue
			}
			if s.Logger != nil {
				s.Logger.InfoContext(ctx, "verify cycle completed",
					slog.Bool("consistent", summary.Consistent),
					slog.Int("missing_tables", summary.Missing),
					slog.Int("extra_tables", summary.Extra),
					slog.Int("mismatched_tables", summary.Mismatched),
				)
			}
		}
	}
}

func (s *Service) rebuildCycle(ctx context.Context) {
	summary, err := s.RunRebuildOnce(ctx)
	if err != nil {
		s.logError(ctx, "rebuild cycle failed", err)
		return
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "rebuild cycle completed",
			slog.String("status", summary.Status),
			slog.Int("tables", summary.Tables),
			slog.Int("written", summary.Write.Written),
			slog.Int("failed", summary.Write.Failed),
			slog.Int("deleted", summary.Write.Deleted),
		)
	}
}

// RunRebuildOnce extracts the live schema, overwrites the index with it,
// prunes vanished tables and archives the snapshot. Extraction failure is
// fatal; per-table write failures only mark the run partial.
func (s *Service) RunRebuildOnce(ctx context.Context) (RebuildSummary, error) {
	s.ensureDefaults()
	if s.Extractor == nil || s.Writer == nil {
		return RebuildSummary{}, fmt.Errorf("extractor and index writer are required")
	}
	if !s.running.TryLock() {
		return RebuildSummary{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	start := s.Clock()
	summary := RebuildSummary{CreatedBy: s.Config.CreatedBy, StartedAt: start.UTC()}
	defer func() {
		indexRunDuration.WithLabelValues(KindRebuild).Observe(s.Clock().Sub(start).Seconds())
	}()

	descriptions, err := s.Extractor.Extract(ctx)
	if err != nil {
		summary.Status = StatusFailed
		summary.FinishedAt = s.Clock().UTC()
		indexRunsTotal.WithLabelValues(KindRebuild, StatusFailed).Inc()
		return summary, err
	}
	summary.Tables = len(descriptions)

	write, writeErr := s.Writer.Rebuild(ctx, descriptions)
	summary.Write = write
	summary.Status = StatusCompleted
	if writeErr != nil {
		summary.Status = StatusPartial
		summary.Failures = flatten(writeErr)
	}
	indexedTables.Set(float64(write.Written))

	if s.Archive != nil && len(descriptions) > 0 {
		snapshot, err := s.Archive.Save(ctx, descriptions)
		if err != nil {
			summary.ArchiveError = err.Error()
			archiveSnapshotsTotal.WithLabelValues(StatusFailed).Inc()
			s.logError(ctx, "schema snapshot archive failed", err)
		} else {
			summary.Snapshot = &snapshot
			archiveSnapshotsTotal.WithLabelValues(StatusCompleted).Inc()
		}
	}

	summary.FinishedAt = s.Clock().UTC()
	indexRunsTotal.WithLabelValues(KindRebuild, summary.Status).Inc()
	return summary, nil
}

// RunVerifyOnce re-extracts the schema and diffs it against the index.
func (s *Service) RunVerifyOnce(ctx context.Context) (VerifySummary, error) {
	s.ensureDefaults()
	if s.Verifier == nil {
		return VerifySummary{}, fmt.Errorf("verifier is required")
	}
	if !s.running.TryLock() {
		return VerifySummary{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	start := s.Clock()
	defer func() {
		indexRunDuration.WithLabelValues(KindVerify).Observe(s.Clock().Sub(start).Seconds())
	}()

	report, err := s.Verifier.Verify(ctx)
	if err != nil {
		indexRunsTotal.WithLabelValues(KindVerify, StatusFailed).Inc()
		return VerifySummary{Status: StatusFailed, StartedAt: start.UTC(), FinishedAt: s.Clock().UTC()}, err
	}

	summary := VerifySummary{
		Status:     StatusCompleted,
		Consistent: report.Consistent(),
		Report:     report,
		StartedAt:  start.UTC(),
		FinishedAt: s.Clock().UTC(),
	}
	mismatched := map[string]struct{}{}
	for _, mismatch := range report.Mismatches {
		switch mismatch.Kind {
		case index.MismatchNotIndexed:
			summary.Missing++
		case index.MismatchStale:
			summary.Extra++
		default:
			mismatched[mismatch.TableName] = struct{}{}
		}
	}
	summary.Mismatched = len(mismatched)
	indexRunsTotal.WithLabelValues(KindVerify, StatusCompleted).Inc()
	return summary, nil
}

func (s *Service) ensureDefaults() {
	if s.Config.RefreshInterval <= 0 {
		s.Config.RefreshInterval = 10 * time.Minute
	}
	if s.Config.VerifyInterval <= 0 {
		s.Config.VerifyInterval = 5 * time.Minute
	}
	if s.Config.CreatedBy == "" {
		s.Config.CreatedBy = "querylens-indexer"
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
}

func (s *Service) logError(ctx context.Context, msg string, err error) {
	if s.Logger != nil {
		s.Logger.ErrorContext(ctx, msg, slog.String("error", err.Error()))
	}
}

// flatten lists the individual failures of a multierror, or the error itself.
func flatten(err error) []string {
	var multi *multierror.Error
	if errors.As(err, &multi) {
		out := make([]string, 0, len(multi.Errors))
		for _, item := range multi.Errors {
			out = append(out, item.Error())
		}
		return out
	}
	return []string{err.Error()}
}
