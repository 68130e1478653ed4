package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookEventsTotal)
}

var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook deliveries, labeled by gateway and outcome.",
	},
	[]string{"gateway", "outcome"}, // outcome: 'accepted', 'rejected', 'rate_limited'
)

func IncWebhook(gateway, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(gateway), norm(outcome)).Inc()
}
