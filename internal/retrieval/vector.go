package retrieval

import (
	"context"
	"log/slog"

	"github.com/querylens/querylens/internal/embedding"
	"github.com/querylens/querylens/internal/observability"
	"github.com/querylens/querylens/internal/vectorstore"
)

const (
	FallbackEmbeddingFailed  = "embedding_failed"
	FallbackStoreUnavailable = "store_unavailable"
	FallbackNoResults        = "no_results"
)

type VectorOptions struct {
	// MinScore drops matches scoring below it. Zero keeps everything.
	MinScore float64
	Logger   *slog.Logger
}

// VectorRetriever ranks by embedding similarity and degrades to its fallback
// when the store fails or nothing usable comes back.
type VectorRetriever struct {
	embedder embedding.Embedder
	store    vectorstore.Store
	fallback ContextRetriever
	opts     VectorOptions
}

func NewVectorRetriever(embedder embedding.Embedder, store vectorstore.Store, fallback ContextRetriever, opts VectorOptions) *VectorRetriever {
	return &VectorRetriever{embedder: embedder, store: store, fallback: fallback, opts: opts}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, question string, k int) (Result, error) {
	if err := validateK(k); err != nil {
		return Result{}, err
	}

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return r.degrade(ctx, question, k, FallbackEmbeddingFailed, err)
	}
	// Over-fetch so discarded records do not starve the result.
	candidates, err := r.store.Query(ctx, vector, 2*k)
	if err != nil {
		return r.degrade(ctx, question, k, FallbackStoreUnavailable, err)
	}

	matches := make([]Match, 0, k)
	seen := map[string]struct{}{}
	mismatched := 0
	for _, candidate := range candidates {
		record := candidate.Record
		if record.EmbedderID != r.embedder.ID() || len(record.Embedding) != r.embedder.Dimensions() {
			mismatched++
			continue
		}
		if candidate.Score < r.opts.MinScore {
			continue
		}
		if _, dup := seen[record.TableName]; dup {
			continue
		}
		seen[record.TableName] = struct{}{}
		matches = append(matches, Match{Description: record.Description, Score: candidate.Score})
		if len(matches) == k {
			break
		}
	}
	if mismatched > 0 {
		observability.AddEmbeddingMismatches(mismatched)
		r.log(ctx, slog.LevelWarn, "discarded records from a different embedding space",
			slog.Int("count", mismatched),
			slog.String("embedder", r.embedder.ID()),
		)
	}
	if len(matches) == 0 {
		return r.degrade(ctx, question, k, FallbackNoResults, nil)
	}

	observability.ObserveRetrieval(StrategyVector)
	return Result{Matches: matches, Strategy: StrategyVector}, nil
}

func (r *VectorRetriever) degrade(ctx context.Context, question string, k int, reason string, cause error) (Result, error) {
	attrs := []slog.Attr{slog.String("reason", reason)}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	r.log(ctx, slog.LevelWarn, "falling back to keyword retrieval", attrs...)
	observability.IncrementRetrievalFallback(reason)

	if r.fallback == nil {
		if cause != nil {
			return Result{}, cause
		}
		return Result{}, ErrNoContextAvailable
	}
	result, err := r.fallback.Retrieve(ctx, question, k)
	if err != nil {
		return Result{}, err
	}
	result.FallbackReason = reason
	return result, nil
}

func (r *VectorRetriever) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if r.opts.Logger == nil {
		return
	}
	r.opts.Logger.LogAttrs(ctx, level, msg, attrs...)
}
