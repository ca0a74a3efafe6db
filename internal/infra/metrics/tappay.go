package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		tapCallsTotal,
		tapCallDuration,
		transactionsTotal,
	)
}

var (
	// result: ok|error (transport or decode failure)
	tapCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tappay_api_calls_total",
			Help: "Calls to the Tap Payments API by method and result.",
		},
		[]string{"method", "result"},
	)

	tapCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tappay_api_call_duration_seconds",
			Help:    "Latency of Tap Payments API calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method"},
	)

	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tappay_transactions_total",
			Help: "Gateway transactions recorded by kind and success.",
		},
		[]string{"kind", "success"},
	)
)

func ObserveTapCall(method string, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	tapCallsTotal.WithLabelValues(norm(method), result).Inc()
	tapCallDuration.WithLabelValues(norm(method)).Observe(d.Seconds())
}

func IncTransaction(kind string, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	transactionsTotal.WithLabelValues(norm(kind), s).Inc()
}
