// Package cache file: internal/cache/cache.go
// Package cache 提供连接健康与查询结果两类带 TTL 的缓存。
// 读取时惰性判断过期，底层 janitor 周期性清除过期条目以约束内存。
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"SentinelGate/internal/observe"
)

// 默认 TTL：连接健康缓存较长，查询结果缓存较短
const (
	DefaultConnectionTTL = 10 * time.Minute
	DefaultResultTTL     = 5 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// Stats 是缓存的统计快照
type Stats struct {
	ConnectionCount int `json:"connectionCount"`
	ResultCount     int `json:"resultCount"`
	Total           int `json:"total"`
}

// ResponseCache 管理两个互相独立的缓存映射。
// 键的形式为 connector:instance，结果条目再追加 :queryID:parameterFingerprint。
type ResponseCache struct {
	connections *gocache.Cache
	results     *gocache.Cache
	resultTTL   time.Duration
}

// New 创建缓存。ttl/sweep 传零值时使用默认配置。
func New(connectionTTL, resultTTL, sweepInterval time.Duration) *ResponseCache {
	if connectionTTL <= 0 {
		connectionTTL = DefaultConnectionTTL
	}
	if resultTTL <= 0 {
		resultTTL = DefaultResultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &ResponseCache{
		connections: gocache.New(connectionTTL, sweepInterval),
		results:     gocache.New(resultTTL, sweepInterval),
		resultTTL:   resultTTL,
	}
}

// ConnectionKey 生成连接健康缓存的键
func ConnectionKey(connector, instance string) string {
	return connector + ":" + instance
}

// ResultKey 生成查询结果缓存的键。
// 参数指纹按键名排序后做 sha256，保证同一组参数的键稳定。
func ResultKey(connector, instance, queryID string, params map[string]string) string {
	return fmt.Sprintf("%s:%s:%s:%s", connector, instance, queryID, Fingerprint(params))
}

// Fingerprint 计算参数集合的稳定指纹
func Fingerprint(params map[string]string) string {
	if len(params) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
		sb.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:8])
}

// GetConnection 读取连接健康条目
func (c *ResponseCache) GetConnection(key string) (any, bool) {
	v, ok := c.connections.Get(key)
	if ok {
		observe.CacheHits.WithLabelValues("connection").Inc()
	} else {
		observe.CacheMisses.WithLabelValues("connection").Inc()
	}
	return v, ok
}

// SetConnection 写入连接健康条目（使用默认 TTL）
func (c *ResponseCache) SetConnection(key string, value any) {
	c.connections.SetDefault(key, value)
}

// GetResult 读取查询结果条目
func (c *ResponseCache) GetResult(key string) (any, bool) {
	v, ok := c.results.Get(key)
	if ok {
		observe.CacheHits.WithLabelValues("result").Inc()
	} else {
		observe.CacheMisses.WithLabelValues("result").Inc()
	}
	return v, ok
}

// SetResult 写入查询结果条目。ttl<=0 时使用默认结果 TTL。
func (c *ResponseCache) SetResult(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.resultTTL
	}
	c.results.Set(key, value, ttl)
}

// Invalidate 按前缀清除条目。instance 为空时清除整个连接器的条目。
func (c *ResponseCache) Invalidate(connector, instance string) int {
	prefix := connector + ":"
	if instance != "" {
		prefix = connector + ":" + instance
	}
	removed := 0
	for _, store := range []*gocache.Cache{c.connections, c.results} {
		for key := range store.Items() {
			if strings.HasPrefix(key, prefix) {
				store.Delete(key)
				removed++
			}
		}
	}
	return removed
}

// ClearAll 清空两个缓存
func (c *ResponseCache) ClearAll() {
	c.connections.Flush()
	c.results.Flush()
}

// Sweep 立即清除已过期条目。janitor 会周期性做同样的事，
// 这里额外暴露以便管理接口和测试主动触发。
func (c *ResponseCache) Sweep() {
	c.connections.DeleteExpired()
	c.results.DeleteExpired()
}

// GetStats 返回当前缓存规模
func (c *ResponseCache) GetStats() Stats {
	cc := c.connections.ItemCount()
	rc := c.results.ItemCount()
	return Stats{ConnectionCount: cc, ResultCount: rc, Total: cc + rc}
}
