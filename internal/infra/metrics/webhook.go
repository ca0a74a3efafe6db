package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookRequests,
		webhookCompensations,
	)
}

var (
	// outcome: redirect|not_found|bad_request|error
	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tappay_webhook_requests_total",
			Help: "Additional-action redirects handled, by outcome.",
		},
		[]string{"outcome"},
	)

	// action: refund|void|none
	webhookCompensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tappay_webhook_compensations_total",
			Help: "Refund-or-void runs after a checkout failed to complete.",
		},
		[]string{"action"},
	)
)

func IncWebhook(outcome string) {
	webhookRequests.WithLabelValues(norm(outcome)).Inc()
}

func IncCompensation(action string) {
	webhookCompensations.WithLabelValues(norm(action)).Inc()
}
