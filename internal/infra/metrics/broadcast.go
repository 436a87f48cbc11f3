package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		broadcastEventsTotal,
		streamClients,
	)
}

var (
	broadcastEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_broadcast_events_total",
			Help: "Activation events by direction (published/received) on the shared channel.",
		},
		[]string{"direction"},
	)

	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "activation_stream_clients",
			Help: "Currently connected websocket stream clients.",
		},
	)
)

func IncBroadcast(direction string) {
	broadcastEventsTotal.WithLabelValues(norm(direction)).Inc()
}

func StreamClientConnected()    { streamClients.Inc() }
func StreamClientDisconnected() { streamClients.Dec() }
