// Package metrics provides Prometheus metrics for the VitalSentry backend
// (RED + ingest pipeline + WebSocket). Scrapeable at /metrics; dashboards and
// runbooks can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vitalsentry"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// SamplesIngestedTotal counts telemetry samples accepted by the pipeline.
	SamplesIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_ingested_total",
			Help:      "Total number of vital samples accepted by the ingest pipeline.",
		},
	)

	// SamplesRejectedTotal counts samples dropped at validation.
	SamplesRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_rejected_total",
			Help:      "Total number of inbound samples rejected as malformed.",
		},
	)

	// AnomaliesDetectedTotal counts raised anomalies by severity and detector kind.
	AnomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Total number of anomalies raised, by severity and detector.",
		},
		[]string{"severity", "detector"},
	)

	// BaselineUpdatesTotal counts successful online baseline updates.
	BaselineUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "baseline_updates_total",
			Help:      "Total number of per-parameter baseline updates persisted.",
		},
	)

	// IngestErrorsTotal counts pipeline failures by stage.
	IngestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_errors_total",
			Help:      "Total number of ingest pipeline errors by stage.",
		},
		[]string{"stage"},
	)

	// DBQueryDurationSeconds is database query latency by operation.
	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2.5, 10),
		},
		[]string{"operation"},
	)

	// WebSocketConnectionsActive is current number of WebSocket clients.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections.",
		},
	)

	// TrendCacheHitsTotal counts trend cache hits.
	TrendCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trend_cache_hits_total",
			Help:      "Total number of trend cache hits.",
		},
	)

	// TrendCacheMissesTotal counts trend cache misses.
	TrendCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trend_cache_misses_total",
			Help:      "Total number of trend cache misses.",
		},
	)
)
