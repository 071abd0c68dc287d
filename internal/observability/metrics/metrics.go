// Package metrics exposes application-level Prometheus instruments. The
// registry is served by the HTTP server on /metrics.
package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the domain counters and histograms.
type Metrics struct {
	aiRuns          *prometheus.CounterVec
	ledgerEntries   *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	rateLimitHits   *prometheus.CounterVec
	toolInvocations *prometheus.CounterVec
	httpRequests    *prometheus.HistogramVec
}

// New registers the instruments on the given registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		aiRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appdraft_ai_runs_total",
			Help: "AI runs by terminal status.",
		}, []string{"status", "model"}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appdraft_ledger_entries_total",
			Help: "Credit ledger entries appended, by entry type.",
		}, []string{"entry_type"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appdraft_provider_calls_total",
			Help: "Upstream model provider calls by outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "appdraft_provider_latency_seconds",
			Help:    "Upstream model provider call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appdraft_rate_limit_decisions_total",
			Help: "Rate limit decisions by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appdraft_tool_invocations_total",
			Help: "Agent tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "appdraft_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120},
		}, []string{"method", "route", "status"}),
	}

	collectors := []prometheus.Collector{
		m.aiRuns,
		m.ledgerEntries,
		m.providerCalls,
		m.providerLatency,
		m.rateLimitHits,
		m.toolInvocations,
		m.httpRequests,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordAIRun increments the run counter for a terminal run status.
func (m *Metrics) RecordAIRun(_ context.Context, status, model string) {
	if m == nil {
		return
	}
	m.aiRuns.WithLabelValues(normalize(status), normalize(model)).Inc()
}

// RecordLedgerEntry increments the ledger entry counter.
func (m *Metrics) RecordLedgerEntry(_ context.Context, entryType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(normalize(entryType)).Inc()
}

// RecordProviderCall records one upstream call and its latency.
func (m *Metrics) RecordProviderCall(_ context.Context, provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(normalize(provider), normalize(outcome)).Inc()
	m.providerLatency.WithLabelValues(normalize(provider)).Observe(elapsed.Seconds())
}

// RecordRateLimitAllowed increments the allow counter for an endpoint.
func (m *Metrics) RecordRateLimitAllowed(_ context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitHits.WithLabelValues(normalize(endpoint), "allowed").Inc()
}

// RecordRateLimitDenied increments the deny counter for an endpoint.
func (m *Metrics) RecordRateLimitDenied(_ context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitHits.WithLabelValues(normalize(endpoint), "denied").Inc()
}

// RecordToolInvocation increments the tool invocation counter.
func (m *Metrics) RecordToolInvocation(_ context.Context, tool, outcome string) {
	if m == nil {
		return
	}
	m.toolInvocations.WithLabelValues(normalize(tool), normalize(outcome)).Inc()
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
