package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	DocumentsIssued      *prometheus.CounterVec
	SubmissionAttempts   *prometheus.CounterVec
	SubmissionLatency    prometheus.Histogram
	TransitionConflicts  prometheus.Counter
	TokenRefreshes       prometheus.Counter
	TokenRefreshFailures prometheus.Counter
	ContingencyQueued    prometheus.Counter
	ContingencyDrained   prometheus.Counter
	ContingencyDepth     prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DocumentsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "facturasv_documents_issued_total",
			Help: "Documents accepted into the pipeline, by DTE type.",
		}, []string{"tipo_dte"}),
		SubmissionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "facturasv_submission_attempts_total",
			Help: "MH submission attempts, by classified outcome.",
		}, []string{"outcome"}),
		SubmissionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "facturasv_submission_duration_seconds",
			Help:    "Wall time of a single MH reception exchange.",
			Buckets: prometheus.DefBuckets,
		}),
		TransitionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "facturasv_lifecycle_conflicts_total",
			Help: "Compare-and-swap transition conflicts (stale attempts defeated).",
		}),
		TokenRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "facturasv_mh_token_refreshes_total",
			Help: "Successful MH auth token refreshes.",
		}),
		TokenRefreshFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "facturasv_mh_token_refresh_failures_total",
			Help: "Failed MH auth token refreshes.",
		}),
		ContingencyQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "facturasv_contingency_enqueued_total",
			Help: "Documents routed to the contingency queue.",
		}),
		ContingencyDrained: promauto.NewCounter(prometheus.CounterOpts{
			Name: "facturasv_contingency_drained_total",
			Help: "Documents successfully replayed from the contingency queue.",
		}),
		ContingencyDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "facturasv_contingency_depth",
			Help: "Entries currently waiting in the contingency queue.",
		}),
	}
}
