package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	retrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querylens_retrievals_total",
			Help: "Total number of context retrievals by strategy that produced the result.",
		},
		[]string{"strategy"},
	)
	retrievalFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querylens_retrieval_fallbacks_total",
			Help: "Total number of keyword fallbacks by reason.",
		},
		[]string{"reason"},
	)
	embeddingMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querylens_embedding_space_mismatch_total",
			Help: "Total number of indexed records discarded because their embedder differs from the query embedder.",
		},
	)
	generationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querylens_generation_attempts_total",
			Help: "Total number of SQL generation attempts by backend and status.",
		},
		[]string{"backend", "status"},
	)
	generationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querylens_generation_latency_ms",
			Help:    "End-to-end SQL generation latency including retries, in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
	)
	executionLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querylens_execution_latency_ms",
			Help:    "Generated SQL execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"status"},
	)
	indexWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querylens_index_writes_total",
			Help: "Total number of per-table context index writes by status.",
		},
		[]string{"status"},
	)
	indexMismatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querylens_index_mismatches_total",
			Help: "Total number of index records found inconsistent with the live schema, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		retrievalsTotal,
		retrievalFallbacksTotal,
		embeddingMismatchTotal,
		generationAttemptsTotal,
		generationLatencyMs,
		executionLatencyMs,
		indexWritesTotal,
		indexMismatchesTotal,
	)
}

func ObserveRetrieval(strategy string) {
	retrievalsTotal.WithLabelValues(strategy).Inc()
}

func IncrementRetrievalFallback(reason string) {
	retrievalFallbacksTotal.WithLabelValues(reason).Inc()
}

func AddEmbeddingMismatches(count int) {
	if count > 0 {
		embeddingMismatchTotal.Add(float64(count))
	}
}

func ObserveGenerationAttempt(backend, status string) {
	generationAttemptsTotal.WithLabelValues(backend, status).Inc()
}

func ObserveGenerationLatency(elapsed time.Duration) {
	generationLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveExecution(status string, elapsed time.Duration) {
	executionLatencyMs.WithLabelValues(status).Observe(float64(elapsed.Milliseconds()))
}

func ObserveIndexWrite(status string) {
	indexWritesTotal.WithLabelValues(status).Inc()
}

func AddIndexMismatches(kind string, count int) {
	if count > 0 {
		indexMismatchesTotal.WithLabelValues(kind).Add(float64(count))
	}
}
