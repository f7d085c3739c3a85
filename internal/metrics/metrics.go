package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline Prometheus metrics.
var (
	SourceFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weeklyintel",
			Name:      "source_fetch_total",
			Help:      "Source fetch attempts by outcome",
		},
		[]string{"source", "status"},
	)

	SourceRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weeklyintel",
			Name:      "source_records_total",
			Help:      "Records returned by each source",
		},
		[]string{"source"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "weeklyintel",
			Name:      "stage_duration_seconds",
			Help:      "Workflow stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weeklyintel",
			Name:      "runs_total",
			Help:      "Workflow runs by outcome",
		},
		[]string{"outcome"},
	)

	EnrichmentFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "weeklyintel",
			Name:      "enrichment_failures_total",
			Help:      "Records whose enrichment failed",
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "weeklyintel",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var registerOnce sync.Once

// Register registers all metrics with the default registry. Call once from main.
func Register() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		SourceFetchTotal,
		SourceRecordsTotal,
		StageDuration,
		RunsTotal,
		EnrichmentFailuresTotal,
		EmbeddingCacheTotal,
		httpRequestDuration,
		httpRequestsTotal,
	)
}
