package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recompute runs by level (task / project) and outcome (updated / unchanged / skipped / error)
	RecomputeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_recompute_total",
			Help: "Total number of progress recomputations",
		},
		[]string{"level", "outcome"},
	)

	RecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "progress_recompute_duration_seconds",
			Help:    "Duration of a single-level progress recomputation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"level"},
	)

	// Cascade deletions by entity and outcome
	CascadeDeleteCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cascade_delete_total",
			Help: "Total number of cascading deletions",
		},
		[]string{"entity", "outcome"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"sql"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	CacheLookupCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_cache_lookup_total",
			Help: "Project cache lookups by result (hit / miss / error)",
		},
		[]string{"result"},
	)

	EventPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_total",
			Help: "Published events by routing key and status (success / failed / rejected)",
		},
		[]string{"routing_key", "status"},
	)
)

func RecordRecompute(level, outcome string, duration time.Duration) {
	RecomputeCount.WithLabelValues(level, outcome).Inc()
	RecomputeDuration.WithLabelValues(level).Observe(duration.Seconds())
}

func IncrementCascadeDelete(entity, outcome string) {
	CascadeDeleteCount.WithLabelValues(entity, outcome).Inc()
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
	RecordDBQueryDuration("slow", "unknown", duration)
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementCacheLookup(result string) {
	CacheLookupCount.WithLabelValues(result).Inc()
}

func IncrementEventPublish(routingKey, status string) {
	EventPublishCount.WithLabelValues(routingKey, status).Inc()
}
