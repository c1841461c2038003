package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(wsSessions, wsPushesTotal, wsDroppedConns)
}

var (
	wsSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_sessions_open",
			Help: "Open push-channel connections on this instance.",
		},
	)

	wsPushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_events_total",
			Help: "Events pushed over the channel, labeled by event type.",
		},
		[]string{"type"},
	)

	wsDroppedConns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_connections_dropped_total",
			Help: "Connections removed after a failed send.",
		},
	)
)

func SessionOpened()        { wsSessions.Inc() }
func SessionClosed()        { wsSessions.Dec() }
func IncPush(evType string) { wsPushesTotal.WithLabelValues(norm(evType)).Inc() }
func IncDroppedConn()       { wsDroppedConns.Inc() }
