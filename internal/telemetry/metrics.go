package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments describing pipeline request and
// node execution behavior.
type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	nodeExecutions   *prometheus.CounterVec
	nodeDuration     *prometheus.HistogramVec
	hopCount         prometheus.Histogram
	hookFailures     *prometheus.CounterVec
	secretsResolved  prometheus.Gauge

	Registry *prometheus.Registry
}

// NewMetrics builds and registers a fresh Metrics instance.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polis_requests_total",
				Help: "Total number of pipeline requests by outcome",
			},
			[]string{"composition", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polis_request_duration_seconds",
				Help:    "End-to-end pipeline request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"composition"},
		),
		nodeExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polis_node_executions_total",
				Help: "Node executions by node name and outcome",
			},
			[]string{"node", "adapter", "outcome"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polis_node_duration_seconds",
				Help:    "Per-node adapter call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"node", "adapter"},
		),
		hopCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "polis_request_hop_count",
				Help:    "Number of nodes visited per request",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 24, 32},
			},
		),
		hookFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polis_hook_failures_total",
				Help: "Hook invocation failures by mode and on_failure disposition",
			},
			[]string{"function", "mode", "on_failure"},
		),
		secretsResolved: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "polis_secrets_resolved",
				Help: "Number of secret variables currently held in the credential store",
			},
		),
		Registry: registry,
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.nodeExecutions,
		m.nodeDuration,
		m.hopCount,
		m.hookFailures,
		m.secretsResolved,
	)
	return m
}

// ObserveRequest records one completed pipeline request.
func (m *Metrics) ObserveRequest(composition, outcome string, seconds float64, hops int) {
	m.requestsTotal.WithLabelValues(composition, outcome).Inc()
	m.requestDuration.WithLabelValues(composition).Observe(seconds)
	m.hopCount.Observe(float64(hops))
}

// ObserveNode records one node's adapter invocation.
func (m *Metrics) ObserveNode(node, adapter, outcome string, seconds float64) {
	m.nodeExecutions.WithLabelValues(node, adapter, outcome).Inc()
	m.nodeDuration.WithLabelValues(node, adapter).Observe(seconds)
}

// ObserveHookFailure records a failed hook invocation.
func (m *Metrics) ObserveHookFailure(function, mode, onFailure string) {
	m.hookFailures.WithLabelValues(function, mode, onFailure).Inc()
}

// SetSecretsResolved records the size of the loaded credential table.
func (m *Metrics) SetSecretsResolved(n int) {
	m.secretsResolved.Set(float64(n))
}
