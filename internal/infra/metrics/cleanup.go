package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(cleanupRunsTotal, cleanupItemsTotal, diskFreePercent)
}

var (
	cleanupRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_runs_total",
			Help: "Retention sweeps, labeled by task and result.",
		},
		[]string{"task", "result"}, // task: 'archive', 'prune'; result: 'ok', 'error'
	)

	cleanupItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanup_items_total",
			Help: "Items moved by retention sweeps, labeled by task.",
		},
		[]string{"task"},
	)

	diskFreePercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "disk_free_percent",
			Help: "Free space on the invoice document volume, in percent.",
		},
	)
)

func IncCleanupRun(task, result string) {
	cleanupRunsTotal.WithLabelValues(norm(task), norm(result)).Inc()
}

func AddCleanupItems(task string, n int) {
	cleanupItemsTotal.WithLabelValues(norm(task)).Add(float64(n))
}

func SetDiskFreePercent(pct float64) {
	diskFreePercent.Set(pct)
}
