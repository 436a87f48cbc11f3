package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		activationsTotal,
		activationRacesTotal,
		VerifyRequests,
		VerifyDuration,
	)
}

var (
	// First-writer activations by which channel committed them.
	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activations_total",
			Help: "Committed activations by confirmation source (verification-callback/broadcast).",
		},
		[]string{"source"},
	)

	// Confirmations that lost the first-writer race and were no-ops.
	activationRacesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_duplicate_confirms_total",
			Help: "Confirmations arriving after an activation record already existed.",
		},
		[]string{"source"},
	)

	// Count of verify calls grouped by result and bounded reason.
	// result: ok|pending|fail
	// reason (fail only): bad_signature|amount_mismatch|bad_state|unknown
	VerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of verify calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of the verify flow grouped by result.
	VerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of the verification flow in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)

func IncActivation(source string) {
	activationsTotal.WithLabelValues(norm(source)).Inc()
}

func IncDuplicateConfirm(source string) {
	activationRacesTotal.WithLabelValues(norm(source)).Inc()
}
