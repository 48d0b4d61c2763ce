package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiCallsTotal,
		aiCallsLatencyMs,
		aiRateLimitedTotal,
	)
}

var (
	aiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "Calls to the document service per provider/operation/outcome.",
		},
		[]string{"provider", "op", "success"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 20000, 40000, 80000},
		},
		[]string{"provider", "op", "success"},
	)

	aiRateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_rate_limited_total",
			Help: "Rate-limit signals received from the document service.",
		},
		[]string{"provider"},
	)
)

// ObserveCall records one upload/generate call. op: upload|generate|generate_text
func ObserveCall(provider, op string, latencyMs int64, success bool) {
	s := strconv.FormatBool(success)
	aiCallsTotal.WithLabelValues(norm(provider), norm(op), s).Inc()
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(op), s).Observe(float64(latencyMs))
}

func IncRateLimited(provider string) {
	aiRateLimitedTotal.WithLabelValues(norm(provider)).Inc()
}
