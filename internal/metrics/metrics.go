// Package metrics 评论服务的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "comment_service"

// 操作结果标签
const (
	ResultSuccess  = "success"
	ResultInvalid  = "invalid"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 评论操作，标签 operation 为 create/edit/toggle_like/delete/list
	CommentOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "comments",
			Name:      "operations_total",
			Help:      "Total number of comment operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	CommentOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "comments",
			Name:      "operation_duration_seconds",
			Help:      "Comment operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	CascadeDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "comments",
			Name:      "cascade_deleted_total",
			Help:      "Total number of comment records removed by cascade deletes, roots included",
		},
	)

	WebSocketSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "sessions",
			Help:      "Number of currently registered websocket sessions",
		},
	)

	BroadcastMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "messages_total",
			Help:      "Total number of events published by event type",
		},
		[]string{"type"},
	)

	BroadcastDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "dropped_total",
			Help:      "Total number of deliveries dropped because a session send queue was full",
		},
	)
)

// RecordOperation 记录一次评论操作的结果和耗时
func RecordOperation(operation, result string, seconds float64) {
	CommentOperationsTotal.WithLabelValues(operation, result).Inc()
	CommentOperationDuration.WithLabelValues(operation).Observe(seconds)
}
