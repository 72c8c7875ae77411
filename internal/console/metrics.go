package console

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's Prometheus collectors. Each instance has its
// own registry so tests can create servers freely.
type Metrics struct {
	registry *prometheus.Registry

	Sessions      prometheus.Gauge
	Messages      *prometheus.CounterVec
	Frames        prometheus.Counter
	FramesDropped prometheus.Counter
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	DataReloads   prometheus.Counter
}

// NewMetrics creates and registers the console collectors.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open console sessions",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound websocket messages by type",
		}, []string{"type"}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Display list frames queued to clients",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames skipped by rate limiting or a full send buffer",
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Graph queries by kind and outcome",
		}, []string{"kind", "status"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Graph query latency",
			Buckets:   prometheus.DefBuckets,
		}),
		DataReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_reloads_total",
			Help:      "Times the shared result set was replaced",
		}),
	}

	m.registry.MustRegister(
		m.Sessions,
		m.Messages,
		m.Frames,
		m.FramesDropped,
		m.Queries,
		m.QueryDuration,
		m.DataReloads,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
