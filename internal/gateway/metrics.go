package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	messages   *prometheus.CounterVec
	intents    *prometheus.CounterVec
	replies    *prometheus.CounterVec
	runs       *prometheus.CounterVec
	activeRuns prometheus.Gauge
	latency    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lago_messages_total",
			Help: "Inbound messages by channel and kind (text, voice).",
		}, []string{"channel", "kind"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lago_intents_total",
			Help: "Classified intents and commands.",
		}, []string{"intent"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lago_handler_results_total",
			Help: "Handler outcomes by handler and result.",
		}, []string{"handler", "result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lago_planner_runs_total",
			Help: "Finished planning runs by final state.",
		}, []string{"state"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lago_planner_runs_active",
			Help: "Planning runs in progress.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lago_handle_duration_seconds",
			Help:    "Time to produce the synchronous reply to a message.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"channel"}),
	}
	m.registry.MustRegister(
		m.messages, m.intents, m.replies, m.runs, m.activeRuns, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
