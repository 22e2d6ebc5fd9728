// Package archive persists schema snapshots as Parquet files in object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/querylens/querylens/internal/schema"
	"github.com/querylens/querylens/internal/storage"
)

const (
	DefaultRetain = 10

	contentType = "application/vnd.apache.parquet"
)

var ErrNoSnapshot = errors.New("no schema snapshot archived")

type Options struct {
	// Namespace is the key prefix for snapshots; empty uses "schema".
	Namespace string
	// Retain is the number of timestamped snapshots kept after each save.
	Retain int
	Logger *slog.Logger
	Now    func() time.Time
}

type Snapshot struct {
	Key       string    `json:"key"`
	TakenAt   time.Time `json:"taken_at"`
	Tables    int       `json:"tables"`
	SizeBytes int64     `json:"size_bytes"`
}

type Archive struct {
	store     storage.ObjectStore
	namespace string
	retain    int
	logger    *slog.Logger
	now       func() time.Time
}

func New(store storage.ObjectStore, options Options) *Archive {
	a := &Archive{
		store:     store,
		namespace: options.Namespace,
		retain:    options.Retain,
		logger:    options.Logger,
		now:       options.Now,
	}
	if a.namespace == "" {
		a.namespace = storage.DefaultSnapshotNamespace
	}
	if a.retain <= 0 {
		a.retain = DefaultRetain
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Save writes a timestamped snapshot, repoints latest at it and prunes
// snapshots beyond the retention count.
func (a *Archive) Save(ctx context.Context, descriptions []schema.Description) (Snapshot, error) {
	takenAt := a.now().UTC().Truncate(time.Second)
	encoded, err := EncodeDescriptions(descriptions, takenAt)
	if err != nil {
		return Snapshot{}, err
	}

	key, err := storage.BuildSnapshotPath(a.namespace, takenAt)
	if err != nil {
		return Snapshot{}, err
	}
	latestKey, err := storage.BuildLatestSnapshotPath(a.namespace)
	if err != nil {
		return Snapshot{}, err
	}

	size := int64(len(encoded.Data))
	if _, err := a.store.Put(ctx, key, bytes.NewReader(encoded.Data), size, storage.PutOptions{ContentType: contentType}); err != nil {
		return Snapshot{}, fmt.Errorf("archive snapshot: %w", err)
	}
	if _, err := a.store.Put(ctx, latestKey, bytes.NewReader(encoded.Data), size, storage.PutOptions{ContentType: contentType}); err != nil {
		return Snapshot{}, fmt.Errorf("update latest snapshot: %w", err)
	}

	if err := a.prune(ctx); err != nil {
		a.logger.WarnContext(ctx, "schema snapshot pruning failed", slog.String("error", err.Error()))
	}
	return Snapshot{Key: key, TakenAt: takenAt, Tables: encoded.TableCount, SizeBytes: size}, nil
}

// Latest loads the most recently saved snapshot.
func (a *Archive) Latest(ctx context.Context) ([]schema.Description, Snapshot, error) {
	latestKey, err := storage.BuildLatestSnapshotPath(a.namespace)
	if err != nil {
		return nil, Snapshot{}, err
	}
	reader, err := a.store.Get(ctx, latestKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, Snapshot{}, ErrNoSnapshot
		}
		return nil, Snapshot{}, fmt.Errorf("read latest snapshot: %w", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, Snapshot{}, fmt.Errorf("read latest snapshot: %w", err)
	}
	descriptions, takenAt, err := DecodeDescriptions(data)
	if err != nil {
		return nil, Snapshot{}, err
	}
	return descriptions, Snapshot{
		Key:       latestKey,
		TakenAt:   takenAt,
		Tables:    len(descriptions),
		SizeBytes: int64(len(data)),
	}, nil
}

// Corpus serves the latest snapshot as a retrieval corpus. A missing
// snapshot is an empty corpus, not an error.
func (a *Archive) Corpus(ctx context.Context) ([]schema.Description, error) {
	descriptions, _, err := a.Latest(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return nil, nil
	}
	return descriptions, err
}

// Snapshots lists the timestamped snapshots, oldest first.
func (a *Archive) Snapshots(ctx context.Context) ([]Snapshot, error) {
	objects, err := a.store.List(ctx, a.namespace)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	snapshots := make([]Snapshot, 0, len(objects))
	for _, object := range objects {
		takenAt, ok := storage.ParseSnapshotPath(object.Key)
		if !ok {
			continue
		}
		snapshots = append(snapshots, Snapshot{Key: object.Key, TakenAt: takenAt, SizeBytes: object.Size})
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].TakenAt.Before(snapshots[j].TakenAt) })
	return snapshots, nil
}

func (a *Archive) prune(ctx context.Context) error {
	snapshots, err := a.Snapshots(ctx)
	if err != nil {
		return err
	}
	for len(snapshots) > a.retain {
		if err := a.store.Delete(ctx, snapshots[0].Key); err != nil {
			return fmt.Errorf("delete snapshot %q: %w", snapshots[0].Key, err)
		}
		snapshots = snapshots[1:]
	}
	return nil
}
