// Package observe file: internal/observe/metric.go
// Package observe 暴露 Prometheus 指标
package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinelgate_dispatch_total",
		Help: "查询调度总数",
	}, []string{"connector", "status"})

	dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinelgate_dispatch_duration_seconds",
		Help:    "查询调度耗时分布",
		Buckets: prometheus.DefBuckets,
	}, []string{"connector"})

	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinelgate_cache_hits_total",
		Help: "缓存命中数",
	}, []string{"kind"})

	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinelgate_cache_misses_total",
		Help: "缓存未命中数",
	}, []string{"kind"})

	UpstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinelgate_upstream_errors_total",
		Help: "按错误分类统计的上游调用失败数",
	}, []string{"connector", "kind"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinelgate_http_request_duration_seconds",
		Help:    "HTTP 请求耗时分布",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(
		DispatchTotal,
		dispatchDuration,
		CacheHits,
		CacheMisses,
		UpstreamErrors,
		httpRequestDuration,
	)
}

// ObserveDispatch 记录一次调度的结果与耗时
func ObserveDispatch(connector, status string, elapsed time.Duration) {
	DispatchTotal.WithLabelValues(connector, status).Inc()
	dispatchDuration.WithLabelValues(connector).Observe(elapsed.Seconds())
}

// MetricsMiddleware 以 gin 中间件形式采集 HTTP 层指标
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 /metrics 的 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }
