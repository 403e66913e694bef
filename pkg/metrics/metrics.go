package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 生成式模型调用延迟（毫秒）
	AICallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_call_latency_ms",
			Help:    "Generative model call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"flow", "status"},
	)

	// AI 结果缓存命中
	AICacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_cache_hits_total",
			Help: "Total number of AI flow results served from cache",
		},
		[]string{"flow"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 告警触发计数
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_raised_total",
			Help: "Total number of alerts produced by rule evaluation",
		},
		[]string{"metric"},
	)

	// 通知转发计数
	NotificationsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_forwarded_total",
			Help: "Total number of notifications handled by the forwarder",
		},
		[]string{"channel", "status"}, // status: sent, skipped, failed
	)

	// 慢查询计数
	SlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Total number of database queries over the slow threshold",
		},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)
)

// RecordAICallLatency 记录生成式模型调用延迟
func RecordAICallLatency(flow, status string, duration time.Duration) {
	AICallLatency.WithLabelValues(flow, status).Observe(float64(duration.Milliseconds()))
}

// IncrementAICacheHit 增加缓存命中计数
func IncrementAICacheHit(flow string) {
	AICacheHits.WithLabelValues(flow).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// AddAlertsRaised 增加告警计数
func AddAlertsRaised(metric string, n int) {
	AlertsRaised.WithLabelValues(metric).Add(float64(n))
}

// IncrementNotificationForwarded 增加通知转发计数
func IncrementNotificationForwarded(channel, status string) {
	NotificationsForwarded.WithLabelValues(channel, status).Inc()
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueries.Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}
