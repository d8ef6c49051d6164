package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeStale    = "stale"
	OutcomeSkipped  = "skipped"
)

// Metrics holds all Prometheus metrics for the session layer
type Metrics struct {
	// Session lifecycle metrics
	SignIns   *prometheus.CounterVec
	SignOuts  *prometheus.CounterVec
	Restores  *prometheus.CounterVec
	Rotations prometheus.Counter

	// Refresh coordination metrics
	RefreshAttempts *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	QueueDepth      prometheus.Histogram
	Replays         *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		SignIns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignite_sign_ins_total",
				Help: "Total number of sign-in attempts",
			},
			[]string{"outcome"},
		),
		SignOuts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignite_sign_outs_total",
				Help: "Total number of sign-outs by reason",
			},
			[]string{"reason"},
		),
		Restores: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignite_restores_total",
				Help: "Total number of boot-time session restores by resulting state",
			},
			[]string{"state"},
		),
		Rotations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ignite_token_rotations_total",
				Help: "Total number of token pairs rotated after a refresh",
			},
		),

		RefreshAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignite_refresh_attempts_total",
				Help: "Total number of refresh calls by outcome",
			},
			[]string{"outcome"},
		),
		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ignite_refresh_duration_seconds",
				Help:    "Refresh call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
		QueueDepth: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ignite_refresh_queue_depth",
				Help:    "Number of requests drained per refresh",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
		Replays: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignite_replays_total",
				Help: "Total number of replayed requests by outcome",
			},
			[]string{"outcome"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignite_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}
