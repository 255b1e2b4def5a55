// Package health file: internal/health/health.go
// Package health 对所有连接器的所有实例做并发健康巡检。
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"SentinelGate/internal/cache"
	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
	"SentinelGate/internal/registry"
)

// maxConcurrentProbes 巡检的并发上限，避免一次打爆所有上游
const maxConcurrentProbes = 8

// Summary 是一次巡检的汇总：逐实例结论 + 按状态计数
type Summary struct {
	Results []domain.HealthStatus `json:"results"`
	Counts  map[string]int        `json:"counts"`
}

// Checker 健康巡检器
type Checker struct {
	registry *registry.Registry
	cache    *cache.ResponseCache
	timeout  time.Duration
}

// New 创建巡检器。timeout 是单实例探测的上限。
func New(reg *registry.Registry, c *cache.ResponseCache, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Checker{registry: reg, cache: c, timeout: timeout}
}

// CheckAll 巡检全部实例。
// 单实例失败只记入该实例的结论，绝不让整次巡检失败；
// 结论写入连接健康缓存，后续读取在 TTL 内直接复用。
func (c *Checker) CheckAll(ctx context.Context) *Summary {
	entries := c.registry.ListInstances()
	results := make([]domain.HealthStatus, len(entries))

	var mu sync.Mutex
	g, probeCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			status := c.probe(probeCtx, entry)
			mu.Lock()
			results[i] = status
			mu.Unlock()
			return nil // 单实例失败不传播
		})
	}
	_ = g.Wait()

	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return &Summary{Results: results, Counts: counts}
}

// probe 探测单个实例
func (c *Checker) probe(ctx context.Context, entry registry.InstanceEntry) domain.HealthStatus {
	status := domain.HealthStatus{
		Connector:    entry.Connector,
		InstanceID:   entry.Instance.ID,
		InstanceName: entry.Instance.Name,
		Status:       "unknown",
	}

	if !entry.Instance.Active {
		status.Status = "inactive"
		status.Message = "实例已停用，跳过探测"
		return status
	}

	key := cache.ConnectionKey(entry.Connector, entry.Instance.ID)
	if cached, ok := c.cache.GetConnection(key); ok {
		if s, ok := cached.(domain.HealthStatus); ok {
			return s
		}
	}

	conn, ok := c.registry.Get(entry.Connector)
	if !ok {
		status.Status = "error"
		status.Message = "连接器未注册"
		return status
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := conn.HealthCheck(probeCtx, entry.Instance.ID)
	status.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		status.Status = "error"
		status.Message = port.UserMessage(err)
	} else {
		status.Status = "healthy"
	}

	c.cache.SetConnection(key, status)
	return status
}
