package metrics

import "github.com/prometheus/client_golang/prometheus"

// Migration Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecshift",
			Name:      "stage_duration_seconds",
			Help:      "Migration stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600, 14400},
		},
		[]string{"stage", "outcome"},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecshift",
			Name:      "runs_total",
			Help:      "Total migration runs by terminal state",
		},
		[]string{"state"},
	)

	CopyProgressRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vecshift",
			Name:      "copy_progress_ratio",
			Help:      "Fraction of documents copied by the running reindex task",
		},
		[]string{"run_id"},
	)

	ClusterRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecshift",
			Name:      "cluster_retries_total",
			Help:      "Total retried cluster calls",
		},
		[]string{"op"},
	)

	AuditWriteErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vecshift",
			Name:      "audit_write_errors_total",
			Help:      "Audit entries that could not be persisted",
		},
	)

	RollbackDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vecshift",
			Name:      "rollback_duration_seconds",
			Help:      "Alias rollback duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

var migrationMetricsRegistered bool

// RegisterMigrationMetrics registers Prometheus migration metrics. Must be called once from main.
func RegisterMigrationMetrics() {
	if migrationMetricsRegistered {
		return
	}
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(CopyProgressRatio)
	prometheus.MustRegister(ClusterRetriesTotal)
	prometheus.MustRegister(AuditWriteErrorsTotal)
	prometheus.MustRegister(RollbackDuration)
	migrationMetricsRegistered = true
}
