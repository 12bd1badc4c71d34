package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckrca_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckrca_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckrca_tool_calls_total",
			Help: "Total number of tool invocations by outcome.",
		},
		[]string{"tool", "outcome"},
	)

	toolCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckrca_tool_call_duration_seconds",
			Help:    "Tool invocation latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)

	tokenBudgetExceededTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckrca_token_budget_exceeded_total",
			Help: "Total number of payloads replaced by a token budget report.",
		},
		[]string{"context"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		toolCallsTotal,
		toolCallDurationSeconds,
		tokenBudgetExceededTotal,
	)
}

// ObserveToolCall records one tool invocation. Outcome is "ok" or an error kind.
func ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = "ok"
	}
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolCallDurationSeconds.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func IncrementTokenBudgetExceeded(context string) {
	tokenBudgetExceededTotal.WithLabelValues(context).Inc()
}
