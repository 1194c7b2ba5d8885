package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayRequests counts remote collection requests by method and outcome.
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postsync_gateway_requests_total",
		Help: "Total number of remote collection requests by method and status class",
	}, []string{"method", "status"})

	// GatewayLatency records remote collection latency by method.
	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postsync_gateway_latency_seconds",
		Help:    "Remote collection request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// StorageErrors counts swallowed local storage failures by concern and operation.
	StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postsync_storage_errors_total",
		Help: "Total number of local storage errors by concern and operation",
	}, []string{"concern", "operation"})

	// RedisErrors counts Redis command failures by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postsync_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// FeedOperations counts engine operations by name and result.
	FeedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postsync_feed_operations_total",
		Help: "Total number of feed operations by operation and result",
	}, []string{"operation", "result"})

	// FeedPosts is the number of posts currently held by the engine.
	FeedPosts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "postsync_feed_posts",
		Help: "Number of posts in the in-memory feed",
	})

	// BusDeliveries counts change notifications delivered to subscribers by source.
	BusDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postsync_bus_deliveries_total",
		Help: "Total number of storage change notifications delivered by source",
	}, []string{"source"})
)

// TrackGateway returns a function that records request latency when called (e.g. defer).
func TrackGateway(method string) func() {
	start := time.Now()
	return func() {
		GatewayLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

// StatusClass buckets an HTTP status into 2xx/3xx/4xx/5xx, or "error" for transport failures.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "error"
	}
}
