// Package middleware file: internal/transport/http/middleware/ratelimit.go
package middleware

import (
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"SentinelGate/internal/core/domain"
)

// ConnectorRateLimiter 把连接器描述符上的建议限速落地为令牌桶。
// 核心调度器不做限速；此组件位于调度边界（HTTP 层），按连接器分桶。
// 不活跃的桶由 go-cache 的 TTL 自动回收。
type ConnectorRateLimiter struct {
	buckets *gocache.Cache
}

// NewConnectorRateLimiter 创建限速器
func NewConnectorRateLimiter() *ConnectorRateLimiter {
	return &ConnectorRateLimiter{
		buckets: gocache.New(30*time.Minute, 10*time.Minute),
	}
}

// Allow 判断对指定连接器的一次调度是否放行。
// 描述符未给出限速建议（速率<=0）时恒放行。
func (l *ConnectorRateLimiter) Allow(connectorName string, hint domain.RateLimitHint) bool {
	if hint.RequestsPerMinute <= 0 {
		return true
	}

	var limiter *rate.Limiter
	if entry, ok := l.buckets.Get(connectorName); ok {
		limiter = entry.(*rate.Limiter)
	} else {
		burst := hint.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(hint.RequestsPerMinute/60.0), burst)
		l.buckets.SetDefault(connectorName, limiter)
		slog.Info("已为连接器创建限速桶",
			"connector", connectorName,
			"requests_per_minute", hint.RequestsPerMinute,
			"burst", burst)
	}

	return limiter.Allow()
}
