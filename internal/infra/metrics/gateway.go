package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		gatewayRequestsTotal,
		gatewayDuration,
	)
}

var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Gateway API calls by operation (create_order/fetch_order) and outcome.",
		},
		[]string{"op", "outcome"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Gateway API call latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op"},
	)
)

func ObserveGatewayCall(op string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequestsTotal.WithLabelValues(norm(op), outcome).Inc()
	gatewayDuration.WithLabelValues(norm(op)).Observe(seconds)
}
