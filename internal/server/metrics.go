package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics uses a private registry so several servers can coexist in one process.
type metrics struct {
	registry          *prometheus.Registry
	sessionsActive    prometheus.Gauge
	broadcasts        prometheus.Counter
	deliveries        prometheus.Counter
	dropped           *prometheus.CounterVec
	evicted           prometheus.Counter
	handshakeFailures prometheus.Counter
	rateLimited       prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tcpchat_sessions_active",
			Help: "Sessions currently registered with the router.",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpchat_messages_broadcast_total",
			Help: "Messages fanned out by the router.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpchat_deliveries_total",
			Help: "Frames queued for delivery to recipients.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcpchat_deliveries_dropped_total",
			Help: "Frames dropped because a recipient queue was full.",
		}, []string{"policy"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpchat_sessions_evicted_total",
			Help: "Sessions removed because delivery to them failed.",
		}),
		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpchat_handshake_failures_total",
			Help: "Connections dropped before completing the NICK handshake.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcpchat_frames_rate_limited_total",
			Help: "Inbound frames discarded by the per-session rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.sessionsActive,
		m.broadcasts,
		m.deliveries,
		m.dropped,
		m.evicted,
		m.handshakeFailures,
		m.rateLimited,
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
