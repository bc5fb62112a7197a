// Package metrics provides Prometheus metrics for the resolution engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolverMetrics collects and exposes resolution Prometheus metrics on a
// private registry, so tests and embedders never fight over the global one.
type ResolverMetrics struct {
	registry *prometheus.Registry

	// Provider fan-out
	ProviderRequests       *prometheus.CounterVec
	ProviderRequestSeconds *prometheus.HistogramVec
	BreakerTransitions     *prometheus.CounterVec

	// Resolutions
	ResolutionsTotal     *prometheus.CounterVec
	ResolutionSeconds    *prometheus.HistogramVec
	ResolutionConfidence prometheus.Histogram
	StageSeconds         *prometheus.HistogramVec

	// Advisor
	LLMCalls *prometheus.CounterVec

	// Streaming
	WSClients prometheus.Gauge
}

// New creates a resolver metrics collector with its own registry.
func New() *ResolverMetrics {
	registry := prometheus.NewRegistry()

	m := &ResolverMetrics{
		registry: registry,

		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsresolve_provider_requests_total",
				Help: "Provider envelopes produced, by final status",
			},
			[]string{"provider", "status"},
		),
		ProviderRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sportsresolve_provider_request_seconds",
				Help:    "Provider fetch latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"provider"},
		),
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsresolve_breaker_transitions_total",
				Help: "Circuit breaker state transitions per host",
			},
			[]string{"host", "to"},
		),

		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsresolve_resolutions_total",
				Help: "Resolutions served, by pipeline and outcome class",
			},
			[]string{"pipeline", "outcome"},
		),
		ResolutionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sportsresolve_resolution_seconds",
				Help:    "End-to-end resolution latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
			},
			[]string{"pipeline"},
		),
		ResolutionConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sportsresolve_resolution_confidence",
				Help:    "Final confidence of served resolutions (0-1)",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		StageSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sportsresolve_stage_seconds",
				Help:    "Individual pipeline stage latency",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
			},
			[]string{"stage"},
		),

		LLMCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsresolve_llm_calls_total",
				Help: "Advisor calls, by provider and status",
			},
			[]string{"provider", "status"},
		),

		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sportsresolve_ws_clients",
				Help: "Currently connected websocket clients",
			},
		),
	}

	m.registerAll()
	return m
}

func (m *ResolverMetrics) registerAll() {
	m.registry.MustRegister(
		m.ProviderRequests,
		m.ProviderRequestSeconds,
		m.BreakerTransitions,
		m.ResolutionsTotal,
		m.ResolutionSeconds,
		m.ResolutionConfidence,
		m.StageSeconds,
		m.LLMCalls,
		m.WSClients,
	)
}

// Registry returns the prometheus registry for promhttp.
func (m *ResolverMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordProviderRequest records one provider envelope.
func (m *ResolverMetrics) RecordProviderRequest(provider, status string, seconds float64) {
	m.ProviderRequests.WithLabelValues(provider, status).Inc()
	if seconds > 0 {
		m.ProviderRequestSeconds.WithLabelValues(provider).Observe(seconds)
	}
}

// RecordBreakerTransition records a breaker state change.
func (m *ResolverMetrics) RecordBreakerTransition(host, to string) {
	m.BreakerTransitions.WithLabelValues(host, to).Inc()
}

// RecordResolution records one served resolution.
func (m *ResolverMetrics) RecordResolution(pipeline, outcome string, seconds, confidence float64) {
	m.ResolutionsTotal.WithLabelValues(pipeline, outcome).Inc()
	if seconds > 0 {
		m.ResolutionSeconds.WithLabelValues(pipeline).Observe(seconds)
	}
	m.ResolutionConfidence.Observe(confidence)
}

// RecordStage records a pipeline stage execution.
func (m *ResolverMetrics) RecordStage(stage string, seconds float64) {
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordLLMCall records an advisor call.
func (m *ResolverMetrics) RecordLLMCall(provider, status string) {
	m.LLMCalls.WithLabelValues(provider, status).Inc()
}

// SetWSClients updates the connected client gauge.
func (m *ResolverMetrics) SetWSClients(count int) {
	m.WSClients.Set(float64(count))
}

// Global instance for convenience
var defaultMetrics *ResolverMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *ResolverMetrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}
