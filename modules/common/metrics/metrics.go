package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry - process-local registry, kept out of prometheus.DefaultRegisterer
var Registry = prometheus.NewRegistry()

var (
	AIRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "admachine_ai_requests_total",
			Help: "Total number of calls to the generative AI service, by operation and status.",
		},
		[]string{"operation", "status"},
	)
	AIRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admachine_ai_request_duration_seconds",
			Help:    "Latency of calls to the generative AI service.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. 64s
		},
		[]string{"operation"},
	)
	EditsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "admachine_nano_edits_total",
			Help: "Nano-edit submissions, by outcome.",
		},
		[]string{"outcome"},
	)
	CompositionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "admachine_compositions_total",
			Help: "Overlay compositions, by encoding and status.",
		},
		[]string{"encoding", "status"},
	)
	ActiveWorkspaces = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "admachine_active_workspaces",
			Help: "Number of live client workspaces.",
		},
	)
	WebSocketClients = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "admachine_websocket_clients",
			Help: "Number of connected WebSocket clients.",
		},
	)
	QuotaRejections = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "admachine_quota_rejections_total",
			Help: "Requests refused because the client exhausted its generation quota.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler - /metrics endpoint for Registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
