package mcp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors the HTTP server transport and
// session manager update as they operate. Grounded on
// daemon/services/api/metrics.go (package-level prometheus.New*Vec
// definitions registered into a dedicated registry, served via
// promhttp.HandlerFor on a /metrics route).
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive       prometheus.Gauge
	sessionsTotal        prometheus.Counter
	sseConnectionsActive prometheus.Gauge
	requestsDispatched   *prometheus.CounterVec
	notificationsPublished *prometheus.CounterVec
	pendingRequests      prometheus.Gauge
	dnsRebindingRejected prometheus.Counter
	replayBufferEvictions prometheus.Counter
}

// NewMetrics constructs a fresh, independently-registered Metrics instance
// (independent so tests can spin up multiple servers without colliding on
// the global prometheus default registry).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcp_sessions_active",
			Help: "Number of currently open MCP sessions.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcp_sessions_total",
			Help: "Total MCP sessions created since startup.",
		}),
		sseConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcp_sse_connections_active",
			Help: "Number of currently open SSE GET streams.",
		}),
		requestsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_requests_dispatched_total",
			Help: "Inbound requests dispatched, by method.",
		}, []string{"method"}),
		notificationsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_notifications_published_total",
			Help: "Inbound notifications published to handlers, by method.",
		}, []string{"method"}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcp_pending_requests",
			Help: "Outbound requests awaiting a response across all peers.",
		}),
		dnsRebindingRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcp_dns_rebinding_rejections_total",
			Help: "HTTP requests rejected by Host/Origin validation.",
		}),
		replayBufferEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcp_sse_replay_evictions_total",
			Help: "Events aged out of a session's SSE replay buffer by newer events.",
		}),
	}
	reg.MustRegister(m.sessionsActive, m.sessionsTotal, m.sseConnectionsActive,
		m.requestsDispatched, m.notificationsPublished, m.pendingRequests,
		m.dnsRebindingRejected, m.replayBufferEvictions)
	return m
}

// Handler returns the promhttp handler serving this registry's exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// DispatchHook returns a function suitable for Peer.SetDispatchHook.
func (m *Metrics) DispatchHook() func(method, kind string) {
	return func(method, kind string) {
		switch kind {
		case "request":
			m.requestsDispatched.WithLabelValues(method).Inc()
		case "notification":
			m.notificationsPublished.WithLabelValues(method).Inc()
		}
	}
}
