package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

// Metrics holds the server's Prometheus collectors. Each Metrics owns its
// registry so several servers can run in one process (tests do).
type Metrics struct {
	registry *prometheus.Registry

	OpsTotal      *prometheus.CounterVec
	OpDuration    *prometheus.HistogramVec
	InflightOps   prometheus.Gauge
	WSConnections prometheus.Gauge
}

// NewMetrics creates and registers the collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		OpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_total",
			Help:      "Bench operations served, by op and outcome",
		}, []string{"op", "outcome"}),
		OpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "op_duration_seconds",
			Help:      "Bench operation latency including induced delay",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		InflightOps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_ops",
			Help:      "Bench operations currently waiting on the database",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open WebSocket connections across /ws/chat and /ws/events",
		}),
	}
}

// Observe records a finished operation. outcome is "ok" or the error kind.
func (m *Metrics) Observe(rec recorder.OpRecord) {
	outcome := rec.Kind
	if outcome == "" {
		outcome = "ok"
	}
	m.OpsTotal.WithLabelValues(string(rec.Op), outcome).Inc()
	m.OpDuration.WithLabelValues(string(rec.Op)).Observe(rec.Latency.Seconds())
}

// track bumps the inflight gauge and returns the func that drops it.
func (m *Metrics) track() func() {
	m.InflightOps.Inc()
	return m.InflightOps.Dec
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
