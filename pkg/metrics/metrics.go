package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for the live platform.
type Metrics struct {
	registry         *prometheus.Registry
	wsClients        prometheus.Gauge
	chatMessages     *prometheus.CounterVec
	chatRejections   *prometheus.CounterVec
	broadcastDrops   prometheus.Counter
	uploads          *prometheus.CounterVec
	presenceSweeps   prometheus.Counter
	presenceReclaims prometheus.Counter
}

// New creates a metrics bundle with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tiktik",
			Name:      "ws_clients",
			Help:      "Current connected WebSocket clients",
		}),
		chatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiktik",
			Name:      "chat_messages_total",
			Help:      "Chat messages accepted",
		}, []string{"kind"}),
		chatRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiktik",
			Name:      "chat_rejections_total",
			Help:      "Chat messages rejected at send time",
		}, []string{"reason"}),
		broadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tiktik",
			Name:      "broadcast_drops_total",
			Help:      "Events dropped due to slow clients",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiktik",
			Name:      "uploads_total",
			Help:      "Media uploads accepted by the gateway",
		}, []string{"kind"}),
		presenceSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tiktik",
			Name:      "presence_sweeps_total",
			Help:      "Presence sweeper runs",
		}),
		presenceReclaims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tiktik",
			Name:      "presence_reclaims_total",
			Help:      "Stale presence records reclaimed by the sweeper",
		}),
	}

	registry.MustRegister(
		m.wsClients,
		m.chatMessages,
		m.chatRejections,
		m.broadcastDrops,
		m.uploads,
		m.presenceSweeps,
		m.presenceReclaims,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncWSClients adjusts the WebSocket client gauge by delta.
func (m *Metrics) IncWSClients(delta float64) {
	if m == nil {
		return
	}
	m.wsClients.Add(delta)
}

// IncChatMessages counts an accepted message ("message" or "super_chat").
func (m *Metrics) IncChatMessages(kind string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(kind).Inc()
}

// IncChatRejections counts a rejected send by reason.
func (m *Metrics) IncChatRejections(reason string) {
	if m == nil {
		return
	}
	m.chatRejections.WithLabelValues(reason).Inc()
}

// IncBroadcastDrops increments the drop counter.
func (m *Metrics) IncBroadcastDrops() {
	if m == nil {
		return
	}
	m.broadcastDrops.Inc()
}

// IncUploads counts an accepted upload ("video", "short" or "live").
func (m *Metrics) IncUploads(kind string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(kind).Inc()
}

// IncPresenceSweeps counts a sweeper run.
func (m *Metrics) IncPresenceSweeps() {
	if m == nil {
		return
	}
	m.presenceSweeps.Inc()
}

// AddPresenceReclaims counts stale presence records reclaimed.
func (m *Metrics) AddPresenceReclaims(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.presenceReclaims.Add(float64(n))
}
