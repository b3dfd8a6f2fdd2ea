// Package observability provides Prometheus metrics, HTTP middleware and
// OpenTelemetry tracing for the nxgate gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nxgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nxgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of active SSE streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nxgate_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ProviderRequestsTotal counts requests sent to upstream providers.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nxgate_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records upstream provider latency in seconds, up to
	// the first byte of output for streams.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nxgate_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts estimated tokens by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nxgate_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// FunctionCallsTotal counts emulated function calls decoded from
	// upstream text, by delivery mode (stream/complete).
	FunctionCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nxgate_function_calls_total",
			Help: "Decoded function calls",
		},
		[]string{"model", "mode"},
	)

	// ReasoningExtractedTotal counts responses whose reasoning segment was
	// split out, by delivery mode.
	ReasoningExtractedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nxgate_reasoning_extracted_total",
			Help: "Responses with extracted reasoning",
		},
		[]string{"model", "mode"},
	)

	// AuthRejectedTotal counts requests rejected by bearer authentication.
	AuthRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nxgate_auth_rejected_total",
			Help: "Authentication rejections",
		},
		[]string{"code"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		FunctionCallsTotal,
		ReasoningExtractedTotal,
		AuthRejectedTotal,
	)
}
