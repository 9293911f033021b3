package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Maintenance worker metrics
var (
	MaintenanceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_runs_total",
			Help:      "Maintenance passes by outcome",
		},
		[]string{"status"},
	)

	MaintenanceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "maintenance_duration_seconds",
			Help:      "Maintenance pass duration",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	DailyRowsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_rows_pruned_total",
			Help:      "Per-day usage rows removed by maintenance",
		},
	)
)

// MaintenanceStarted records the start of a maintenance pass.
func MaintenanceStarted() {
	MaintenanceRunsTotal.WithLabelValues("started").Inc()
}

// MaintenanceCompleted records a successful maintenance pass.
func MaintenanceCompleted(duration time.Duration) {
	MaintenanceRunsTotal.WithLabelValues("completed").Inc()
	MaintenanceDuration.Observe(duration.Seconds())
}

// MaintenanceFailed records a failed maintenance pass.
func MaintenanceFailed() {
	MaintenanceRunsTotal.WithLabelValues("failed").Inc()
}

// DailyRowsPruned adds to the pruned-row counter.
func DailyRowsPruned(n int64) {
	DailyRowsPrunedTotal.Add(float64(n))
}
