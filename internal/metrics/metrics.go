// Package metrics provides Prometheus metrics for the integration pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "avatar_backend"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Inbound
	WebhooksReceived *prometheus.CounterVec
	ProspectsTotal   *prometheus.CounterVec

	// Pipeline
	TranscriptsProcessed *prometheus.CounterVec
	AnalysesTotal        *prometheus.CounterVec
	PainPoints           *prometheus.CounterVec
	ToolCalls            *prometheus.CounterVec

	// Downstream
	DownstreamRequests *prometheus.CounterVec
	DownstreamLatency  *prometheus.HistogramVec

	// Storage
	MappingOps *prometheus.CounterVec
}

// DefaultMetrics is registered on the default Prometheus registry.
var DefaultMetrics = New(prometheus.DefaultRegisterer)

// New creates all metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WebhooksReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Webhook callbacks received, by kind",
		}, []string{"kind"}),
		ProspectsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prospects_total",
			Help:      "Prospect submissions, by result",
		}, []string{"result"}),

		TranscriptsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_processed_total",
			Help:      "Transcripts run through the pipeline, by outcome status",
		}, []string{"status"}),
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Conversation analyses, by analyzer mode",
		}, []string{"mode"}),
		PainPoints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pain_points_total",
			Help:      "Canonical pain points written to the CRM",
		}, []string{"pain_point"}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Agent tool calls handled, by tool and result",
		}, []string{"tool", "result"}),

		DownstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downstream_requests_total",
			Help:      "Calls to external APIs, by service, operation and result code",
		}, []string{"service", "operation", "code"}),
		DownstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "downstream_latency_seconds",
			Help:      "Latency of external API calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"service", "operation"}),

		MappingOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapping_operations_total",
			Help:      "Conversation mapping store operations, by operation and result",
		}, []string{"operation", "result"}),
	}
}

// ObserveDownstream records one external call. code is empty on success.
func (m *Metrics) ObserveDownstream(service, operation, code string, started time.Time) {
	if code == "" {
		code = "OK"
	}
	m.DownstreamRequests.WithLabelValues(service, operation, code).Inc()
	m.DownstreamLatency.WithLabelValues(service, operation).Observe(time.Since(started).Seconds())
}

// Result turns a bool outcome into a label value.
func Result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
