package indexer

import "github.com/prometheus/client_golang/prometheus"

var (
	indexRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querylens_index_runs_total",
			Help: "Total number of index maintenance runs by kind and status.",
		},
		[]string{"kind", "status"},
	)
	indexRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querylens_index_run_duration_seconds",
			Help:    "Duration of index maintenance runs by kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	indexedTables = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "querylens_indexed_tables",
			Help: "Number of tables written by the last rebuild.",
		},
	)
	archiveSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querylens_archive_snapshots_total",
			Help: "Total number of schema snapshot archive attempts by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		indexRunsTotal,
		indexRunDuration,
		indexedTables,
		archiveSnapshotsTotal,
	)
}
