package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(invoiceJobsTotal, invoiceQueueDepth)
}

var (
	invoiceJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_jobs_total",
			Help: "Invoice job events, labeled by outcome (enqueued/completed/requeued/failed/retried).",
		},
		[]string{"outcome"},
	)

	invoiceQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "invoice_queue_depth",
			Help: "Current invoice queue depth by state.",
		},
		[]string{"state"}, // 'waiting', 'active', 'completed', 'failed', 'delayed'
	)
)

func IncInvoiceJob(outcome string) {
	invoiceJobsTotal.WithLabelValues(norm(outcome)).Inc()
}

func SetQueueDepth(waiting, active, completed, failed, delayed int) {
	invoiceQueueDepth.WithLabelValues("waiting").Set(float64(waiting))
	invoiceQueueDepth.WithLabelValues("active").Set(float64(active))
	invoiceQueueDepth.WithLabelValues("completed").Set(float64(completed))
	invoiceQueueDepth.WithLabelValues("failed").Set(float64(failed))
	invoiceQueueDepth.WithLabelValues("delayed").Set(float64(delayed))
}
