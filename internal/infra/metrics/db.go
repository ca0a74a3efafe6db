package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns, leaseAcquire) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Connections of the Postgres pool by state.",
		},
		[]string{"state"}, // total|idle|acquired
	)

	leaseAcquire = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_lease_acquire_total",
			Help: "Attempts to take the per-payment lease, by result.",
		},
		[]string{"result"}, // ok|busy|error
	)
)

func SetDBPoolStats(total, idle, acquired int32) {
	dbPoolConns.WithLabelValues("total").Set(float64(total))
	dbPoolConns.WithLabelValues("idle").Set(float64(idle))
	dbPoolConns.WithLabelValues("acquired").Set(float64(acquired))
}

func IncLeaseAcquire(result string) {
	leaseAcquire.WithLabelValues(norm(result)).Inc()
}
