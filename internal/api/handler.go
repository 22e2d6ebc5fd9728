package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querylens/querylens/internal/config"
	"github.com/querylens/querylens/internal/indexer"
	"github.com/querylens/querylens/internal/observability"
	"github.com/querylens/querylens/internal/pipeline"
	"github.com/querylens/querylens/internal/retrieval"
)

type ReadinessCheck func(ctx context.Context) error

// Asker answers questions end to end.
type Asker interface {
	Ask(ctx context.Context, question string) (pipeline.GeneratedQuery, error)
	Translate(ctx context.Context, question string) (pipeline.GeneratedQuery, error)
}

type HistoryReader interface {
	Get(id string) (pipeline.GeneratedQuery, bool)
	List(limit int) []pipeline.GeneratedQuery
}

type IndexRunner interface {
	RunRebuildOnce(ctx context.Context) (indexer.RebuildSummary, error)
	RunVerifyOnce(ctx context.Context) (indexer.VerifySummary, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Probes            []HealthProbe
	Pipeline          Asker
	Retriever         retrieval.ContextRetriever
	Corpus            retrieval.CorpusSource
	History           HistoryReader
	Indexer           IndexRunner
	DefaultTopK       int
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(cfg, deps, w, r)
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), dependencyTimeout(deps))
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/ask", func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r)
	})
	mux.HandleFunc("POST /v1/translate", func(w http.ResponseWriter, r *http.Request) {
		handleTranslate(deps, w, r)
	})
	mux.HandleFunc("POST /v1/retrieve", func(w http.ResponseWriter, r *http.Request) {
		handleRetrieve(deps, w, r)
	})
	mux.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	mux.HandleFunc("GET /v1/queries", func(w http.ResponseWriter, r *http.Request) {
		handleListQueries(deps, w, r)
	})
	mux.HandleFunc("GET /v1/queries/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetQuery(deps, w, r)
	})
	mux.HandleFunc("POST /v1/index/rebuild", func(w http.ResponseWriter, r *http.Request) {
		handleIndexRebuild(deps, w, r)
	})
	mux.HandleFunc("POST /v1/index/verify", func(w http.ResponseWriter, r *http.Request) {
		handleIndexVerify(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func dependencyTimeout(deps Dependencies) time.Duration {
	if deps.DependencyTimeout <= 0 {
		return 2 * time.Second
	}
	return deps.DependencyTimeout
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
