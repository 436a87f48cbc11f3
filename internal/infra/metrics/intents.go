package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		intentsTotal,
		intentTransitionsTotal,
		intentRevenueTotal,
	)
}

var (
	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_intents_total",
			Help: "Purchase intents created, labeled by target type and mode.",
		},
		[]string{"target_type", "mode"},
	)

	intentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_intent_transitions_total",
			Help: "State machine transitions, labeled by destination state.",
		},
		[]string{"to_state"},
	)

	intentRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_revenue_paise_total",
			Help: "Monetary value of activated intents in paise, by target type.",
		},
		[]string{"target_type"},
	)
)

func IncIntent(targetType, mode string) {
	intentsTotal.WithLabelValues(norm(targetType), norm(mode)).Inc()
}

func IncTransition(toState string) {
	intentTransitionsTotal.WithLabelValues(norm(toState)).Inc()
}

func AddRevenue(targetType string, paise int64) {
	intentRevenueTotal.WithLabelValues(norm(targetType)).Add(float64(paise))
}
