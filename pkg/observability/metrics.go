// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the modelgate gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and model.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "model"},
	)

	// RequestDuration records HTTP request duration in seconds by method and model.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "model"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "modelgate_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// TranslationsTotal counts request/response translations by provider,
	// direction (parse/transform), and outcome.
	TranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_translations_total",
			Help: "Protocol translations",
		},
		[]string{"provider", "direction", "status"},
	)

	// UpstreamRequestsTotal counts requests sent to upstream providers.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"provider", "model", "status"},
	)

	// UpstreamLatency records upstream provider latency in seconds.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelgate_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// TokensTotal counts tokens processed by direction (input/output/thinking).
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// StreamFramesTotal counts stream frames by decode outcome
	// (decoded/dropped).
	StreamFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_stream_frames_total",
			Help: "Stream frames by decode outcome",
		},
		[]string{"provider", "outcome"},
	)

	// CooldownRejectedTotal counts requests rejected because the target
	// model is cooling down after upstream failures.
	CooldownRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelgate_cooldown_rejected_total",
			Help: "Cooldown rejections",
		},
		[]string{"provider", "model"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		TranslationsTotal,
		UpstreamRequestsTotal,
		UpstreamLatency,
		TokensTotal,
		StreamFramesTotal,
		CooldownRejectedTotal,
	)
}
