// Package dispatch file: internal/dispatch/dispatcher.go
// Package dispatch 编排一次查询的完整流水线：
// 参数解析 → 过滤编译 →（可选）链式前置查找 → 连接器调用 →
// 查询后过滤兜底 → 结果缓存 → 统一信封。
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SentinelGate/internal/cache"
	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
	"SentinelGate/internal/observe"
	"SentinelGate/internal/postfilter"
	"SentinelGate/internal/querylang"
	"SentinelGate/internal/registry"
	"SentinelGate/internal/resolver"
)

// DefaultUpstreamTimeout 单次上游调用的默认超时
const DefaultUpstreamTimeout = 30 * time.Second

// Dispatcher 持有流水线各环节的依赖
type Dispatcher struct {
	registry *registry.Registry
	resolver *resolver.Resolver
	cache    *cache.ResponseCache
	timeout  time.Duration
}

// New 创建调度器。timeout<=0 时使用默认上游超时。
func New(reg *registry.Registry, res *resolver.Resolver, c *cache.ResponseCache, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	return &Dispatcher{registry: reg, resolver: res, cache: c, timeout: timeout}
}

// Dispatch 执行一次完整调度。
// 并发调度之间互不排序；同一实例的并发请求也不做串行化，
// 连接器级限速是建议值，由 HTTP 边界按需强制。
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.QueryRequest, qctx *domain.QueryContext) (*domain.DispatchResult, error) {
	start := time.Now()

	conn, ok := d.registry.Get(req.Connector)
	if !ok {
		observe.ObserveDispatch(req.Connector, "rejected", time.Since(start))
		return nil, fmt.Errorf("连接器 '%s': %w", req.Connector, port.ErrConnectorNotFound)
	}
	desc := conn.Descriptor()

	originalQuery := req.Query

	// 1. 参数解析与占位符替换
	resolved := d.resolver.ResolveAll(ctx, req.Parameters, qctx)
	query := resolver.Substitute(req.Query, resolved)

	// 咨询性检查：只记录告警，绝不阻断
	if warnings := querylang.Validate(query, desc.Dialect); len(warnings) > 0 {
		slog.Debug("查询检查产生告警", "connector", desc.Name, "warnings", len(warnings))
	}

	// 2. 过滤编译：上游支持服务端过滤时编译进查询，
	//    编译不进该方言的条件与整体不支持的情况都转入查询后过滤
	var applied, deferred []domain.FilterSpec
	if desc.SupportsServerFilter {
		query, applied, deferred = querylang.Compile(query, req.Filters, desc.Dialect)
	} else {
		for _, f := range req.Filters {
			if f.IsEnabled() {
				deferred = append(deferred, f)
			}
		}
	}

	// 3. 链式前置查找（严格串行：主查询依赖查找结果）
	options := req.Options
	if req.ChainedQuery != nil && req.ChainedQuery.Enabled {
		query, options = d.runChainedLookup(ctx, conn, req, query, options, qctx)
	}

	// 4. 结果缓存（显式开启才读写；refresh 选项强制穿透）
	queryID := optionString(options, "query_id")
	useCache := optionBool(options, "cache") && queryID != ""
	cacheKey := ""
	if useCache {
		cacheKey = cache.ResultKey(desc.Name, req.Instance, queryID, resolved)
		if !optionBool(options, "refresh") {
			if cached, ok := d.cache.GetResult(cacheKey); ok {
				// 缓存体在落缓存前已做过查询后过滤，
				// 兜底过滤同样计入已应用过滤；命中也是一次完整调度
				observe.ObserveDispatch(desc.Name, "cache_hit", time.Since(start))
				return d.envelope(desc, req, cached, originalQuery, query, resolved, append(applied, deferred...), start), nil
			}
		}
	}

	// 5. 连接器调用（有界超时，调用方断开时可取消）
	execCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	result, err := conn.Execute(execCtx, port.ExecRequest{
		Query:      query,
		Method:     req.Method,
		InstanceID: req.Instance,
		Options:    options,
	})
	if err != nil {
		observe.UpstreamErrors.WithLabelValues(desc.Name, port.ErrorKind(err)).Inc()
		observe.ObserveDispatch(desc.Name, "error", time.Since(start))
		return nil, err
	}

	// 6. 查询后过滤兜底
	body := result.Body
	if len(deferred) > 0 {
		body, _ = postfilter.Apply(body, deferred)
		applied = append(applied, deferred...)
	}

	if useCache {
		d.cache.SetResult(cacheKey, body, 0)
	}

	observe.ObserveDispatch(desc.Name, "success", time.Since(start))
	return d.envelope(desc, req, body, originalQuery, query, resolved, applied, start), nil
}

func (d *Dispatcher) envelope(desc *domain.ConnectorDescriptor, req domain.QueryRequest, body any,
	originalQuery, query string, resolved map[string]string, applied []domain.FilterSpec, start time.Time) *domain.DispatchResult {

	var recordCount *int
	if records, ok := postfilter.Records(body); ok {
		n := len(records)
		recordCount = &n
	}

	instRef := domain.InstanceRef{ID: req.Instance}
	if inst := desc.FindInstance(req.Instance); inst != nil {
		instRef.Name = inst.Name
	}

	method := req.Method
	if method == "" {
		method = "GET"
	}

	return &domain.DispatchResult{
		Success: true,
		Data:    body,
		Metadata: domain.DispatchMetadata{
			Query:              query,
			OriginalQuery:      originalQuery,
			ResolvedParameters: resolved,
			AppliedFilters:     applied,
			Method:             method,
			ResponseTimeMs:     time.Since(start).Milliseconds(),
			RecordCount:        recordCount,
			Instance:           instRef,
		},
		Timestamp: time.Now(),
	}
}

func optionString(options map[string]any, key string) string {
	if options == nil {
		return ""
	}
	if s, ok := options[key].(string); ok {
		return s
	}
	return ""
}

func optionBool(options map[string]any, key string) bool {
	if options == nil {
		return false
	}
	b, _ := options[key].(bool)
	return b
}
