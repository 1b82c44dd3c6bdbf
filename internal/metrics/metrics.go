package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RelayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections",
		Help: "Current number of open relay connections",
	})
	RelayInboundTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_inbound_events_total",
		Help: "Client events received by the relay, by event name",
	}, []string{"event"})
	RelayEmitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_emits_total",
		Help: "Room emits, by event name",
	}, []string{"event"})
	RelayDeliveriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_deliveries_total",
		Help: "Frames queued to individual connections",
	})
	RelayEmptyRoomTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_empty_room_emits_total",
		Help: "Emits that found no connection in the target room",
	})
	RelaySlowConsumerTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_slow_consumer_drops_total",
		Help: "Connections dropped because their send buffer was full",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		RelayConnections,
		RelayInboundTotal,
		RelayEmitsTotal,
		RelayDeliveriesTotal,
		RelayEmptyRoomTotal,
		RelaySlowConsumerTotal,
		HttpRequestsTotal,
		HttpRequestDuration,
	)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
