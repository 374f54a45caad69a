package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaiwa_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaiwa_messages_sent_total",
			Help: "Total messages persisted",
		},
		[]string{"kind"},
	)

	TranslationRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kaiwa_translation_requests_total",
			Help: "Total translation backend calls",
		},
	)

	TranslationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaiwa_translation_failures_total",
			Help: "Total failed translation backend calls",
		},
		[]string{"reason"}, // "timeout", "backend", "malformed"
	)

	TranslationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kaiwa_translation_latency_seconds",
			Help:    "Translation backend call latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
		},
	)

	TranslationsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kaiwa_translations_merged_total",
			Help: "Total translation merges applied to messages",
		},
	)

	// Infrastructure metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kaiwa_ws_connections",
			Help: "Currently connected WebSocket clients",
		},
	)
)
