// file: internal/dispatch/dispatcher_test.go

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"SentinelGate/internal/cache"
	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
	"SentinelGate/internal/querylang"
	"SentinelGate/internal/registry"
	"SentinelGate/internal/resolver"
)

// ============================================================================
//  测试替身 (Test Doubles)
// ============================================================================

// fakeConnector 记录每次 Execute 调用，便于断言流水线行为
type fakeConnector struct {
	desc     *domain.ConnectorDescriptor
	ExecFunc func(ctx context.Context, req port.ExecRequest) (*port.ExecResult, error)
	calls    []port.ExecRequest
}

func (f *fakeConnector) Execute(ctx context.Context, req port.ExecRequest) (*port.ExecResult, error) {
	f.calls = append(f.calls, req)
	if f.ExecFunc != nil {
		return f.ExecFunc(ctx, req)
	}
	return &port.ExecResult{Status: 200, Body: []any{}, Timestamp: time.Now()}, nil
}
func (f *fakeConnector) Descriptor() *domain.ConnectorDescriptor { return f.desc }
func (f *fakeConnector) HealthCheck(context.Context, string) error {
	return nil
}
func (f *fakeConnector) Type() string { return f.desc.Name }

func newFake(name, dialect string, serverFilter bool) *fakeConnector {
	return &fakeConnector{desc: &domain.ConnectorDescriptor{
		Name:                 name,
		Dialect:              dialect,
		SupportsServerFilter: serverFilter,
		Instances:            []domain.Instance{{ID: "i1", Name: "主实例", Active: true}},
	}}
}

func newDispatcher(conns ...port.Connector) (*Dispatcher, *registry.Registry) {
	reg := registry.New(nil)
	for _, c := range conns {
		reg.Register(c)
	}
	d := New(reg, resolver.New(nil), cache.New(0, 0, 0), time.Second)
	return d, reg
}

// ===============================
// 流水线
// ===============================

func TestDispatch_UnknownConnector(t *testing.T) {
	d, _ := newDispatcher()
	_, err := d.Dispatch(context.Background(), domain.QueryRequest{Connector: "ghost", Instance: "i1", Query: "x"}, nil)
	if !errors.Is(err, port.ErrConnectorNotFound) {
		t.Fatalf("未注册连接器应返回 ErrConnectorNotFound: %v", err)
	}
}

func TestDispatch_ResolvesAndCompiles(t *testing.T) {
	fake := newFake("sql", querylang.DialectSQL, true)
	d, _ := newDispatcher(fake)

	res, err := d.Dispatch(context.Background(), domain.QueryRequest{
		Connector: "sql",
		Instance:  "i1",
		Query:     "SELECT * FROM tickets WHERE client = '${client_short_name}'",
		Parameters: map[string]domain.ParameterSpec{
			"client_short_name": {Source: domain.ParamContext, Variable: "client_short_name"},
		},
		Filters: []domain.FilterSpec{
			{Field: "status", Operator: domain.OpEquals, Value: "open"},
		},
	}, &domain.QueryContext{ClientShortName: "acme"})
	if err != nil {
		t.Fatalf("调度失败: %v", err)
	}

	want := "SELECT * FROM tickets WHERE client = 'acme' AND status = 'open'"
	if fake.calls[0].Query != want {
		t.Fatalf("下发的查询不符: got %q, want %q", fake.calls[0].Query, want)
	}

	// 元数据：原始模板、最终查询、解析值、已应用过滤都要回显
	meta := res.Metadata
	if meta.OriginalQuery == meta.Query {
		t.Fatal("元数据应同时保留原始模板与最终查询")
	}
	if meta.ResolvedParameters["client_short_name"] != "acme" {
		t.Fatalf("解析后的参数未回显: %+v", meta.ResolvedParameters)
	}
	if len(meta.AppliedFilters) != 1 {
		t.Fatalf("已应用过滤条数不符: %+v", meta.AppliedFilters)
	}
}

func TestDispatch_PostFilterFallback(t *testing.T) {
	// 不支持服务端过滤的连接器：过滤全部转入查询后兜底
	fake := newFake("edr", querylang.DialectSQL, false)
	fake.ExecFunc = func(context.Context, port.ExecRequest) (*port.ExecResult, error) {
		return &port.ExecResult{Status: 200, Body: []any{
			map[string]any{"host": "fw01", "severity": float64(9)},
			map[string]any{"host": "fw02", "severity": float64(2)},
		}}, nil
	}
	d, _ := newDispatcher(fake)

	res, err := d.Dispatch(context.Background(), domain.QueryRequest{
		Connector: "edr",
		Instance:  "i1",
		Query:     "/api/v1/alerts",
		Filters: []domain.FilterSpec{
			{Field: "severity", Operator: domain.OpGreaterEqual, Value: float64(5)},
		},
	}, nil)
	if err != nil {
		t.Fatalf("调度失败: %v", err)
	}

	// 查询文本不应被过滤编译污染
	if fake.calls[0].Query != "/api/v1/alerts" {
		t.Fatalf("无服务端过滤时查询文本应保持原样: %q", fake.calls[0].Query)
	}
	if res.Metadata.RecordCount == nil || *res.Metadata.RecordCount != 1 {
		t.Fatalf("查询后过滤应剩1条: %+v", res.Metadata.RecordCount)
	}
	if len(res.Metadata.AppliedFilters) != 1 {
		t.Fatal("兜底过滤也应计入已应用过滤")
	}
}

func TestDispatch_UpstreamErrorPropagates(t *testing.T) {
	fake := newFake("rest", querylang.DialectSQL, false)
	fake.ExecFunc = func(context.Context, port.ExecRequest) (*port.ExecResult, error) {
		return nil, port.NewUpstreamError(503, "service down")
	}
	d, _ := newDispatcher(fake)

	_, err := d.Dispatch(context.Background(), domain.QueryRequest{Connector: "rest", Instance: "i1", Query: "/x"}, nil)
	var ue *port.UpstreamError
	if !errors.As(err, &ue) || ue.Status != 503 {
		t.Fatalf("上游错误应原样向上传播: %v", err)
	}
}

// ===============================
// 结果缓存
// ===============================

func TestDispatch_CacheOptIn(t *testing.T) {
	fake := newFake("siem", querylang.DialectSPL, true)
	fake.ExecFunc = func(context.Context, port.ExecRequest) (*port.ExecResult, error) {
		return &port.ExecResult{Status: 200, Body: []any{map[string]any{"n": float64(1)}}}, nil
	}
	d, _ := newDispatcher(fake)
	ctx := context.Background()

	req := domain.QueryRequest{
		Connector: "siem",
		Instance:  "i1",
		Query:     "search index=fw",
		Options:   map[string]any{"cache": true, "query_id": "fw_events"},
	}

	if _, err := d.Dispatch(ctx, req, nil); err != nil {
		t.Fatalf("首次调度失败: %v", err)
	}
	if _, err := d.Dispatch(ctx, req, nil); err != nil {
		t.Fatalf("二次调度失败: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("二次调度应命中缓存, 实际上游调用 %d 次", len(fake.calls))
	}

	// refresh 强制穿透
	req.Options = map[string]any{"cache": true, "query_id": "fw_events", "refresh": true}
	if _, err := d.Dispatch(ctx, req, nil); err != nil {
		t.Fatalf("refresh 调度失败: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("refresh 应绕过缓存, 实际上游调用 %d 次", len(fake.calls))
	}
}

func TestDispatch_NoCacheByDefault(t *testing.T) {
	fake := newFake("siem", querylang.DialectSPL, true)
	d, _ := newDispatcher(fake)
	ctx := context.Background()

	req := domain.QueryRequest{Connector: "siem", Instance: "i1", Query: "search index=fw"}
	_, _ = d.Dispatch(ctx, req, nil)
	_, _ = d.Dispatch(ctx, req, nil)
	if len(fake.calls) != 2 {
		t.Fatalf("未显式开启缓存时每次都应打上游, 实际 %d 次", len(fake.calls))
	}
}

// 命中缓存的信封与首次调度的信封语义一致：
// 兜底过滤同样回显在已应用过滤里，记录数来自已过滤的缓存体
func TestDispatch_CacheHitKeepsDeferredFilters(t *testing.T) {
	fake := newFake("edr", querylang.DialectSQL, false)
	fake.ExecFunc = func(context.Context, port.ExecRequest) (*port.ExecResult, error) {
		return &port.ExecResult{Status: 200, Body: []any{
			map[string]any{"host": "fw01", "severity": float64(9)},
			map[string]any{"host": "fw02", "severity": float64(2)},
		}}, nil
	}
	d, _ := newDispatcher(fake)
	ctx := context.Background()

	req := domain.QueryRequest{
		Connector: "edr",
		Instance:  "i1",
		Query:     "/api/v1/alerts",
		Filters: []domain.FilterSpec{
			{Field: "severity", Operator: domain.OpGreaterEqual, Value: float64(5)},
		},
		Options: map[string]any{"cache": true, "query_id": "high_alerts"},
	}

	first, err := d.Dispatch(ctx, req, nil)
	if err != nil {
		t.Fatalf("首次调度失败: %v", err)
	}
	second, err := d.Dispatch(ctx, req, nil)
	if err != nil {
		t.Fatalf("二次调度失败: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("二次调度应命中缓存, 实际上游调用 %d 次", len(fake.calls))
	}

	if len(first.Metadata.AppliedFilters) != 1 || len(second.Metadata.AppliedFilters) != 1 {
		t.Fatalf("命中缓存时兜底过滤也应回显: 首次 %d 条, 命中 %d 条",
			len(first.Metadata.AppliedFilters), len(second.Metadata.AppliedFilters))
	}
	if second.Metadata.RecordCount == nil || *second.Metadata.RecordCount != 1 {
		t.Fatalf("命中缓存的记录数应来自已过滤的缓存体: %+v", second.Metadata.RecordCount)
	}
}

// 缺少 query_id 时缓存选项不生效
func TestDispatch_CacheRequiresQueryID(t *testing.T) {
	fake := newFake("siem", querylang.DialectSPL, true)
	d, _ := newDispatcher(fake)
	ctx := context.Background()

	req := domain.QueryRequest{
		Connector: "siem", Instance: "i1", Query: "search index=fw",
		Options: map[string]any{"cache": true},
	}
	_, _ = d.Dispatch(ctx, req, nil)
	_, _ = d.Dispatch(ctx, req, nil)
	if len(fake.calls) != 2 {
		t.Fatalf("无 query_id 时不应读写缓存, 实际 %d 次", len(fake.calls))
	}
}

// ===============================
// 链式查询
// ===============================

func chainedSpec() *domain.ChainedQuerySpec {
	return &domain.ChainedQuerySpec{
		Enabled:     true,
		LookupQuery: "/api/clients",
		MatchField:  "short_name",
		LookupField: "external_id",
		TargetField: "filter.client_ids",
	}
}

func TestDispatch_ChainedLookupRewritesBody(t *testing.T) {
	fake := newFake("docsearch", querylang.DialectESDSL, true)
	fake.ExecFunc = func(_ context.Context, req port.ExecRequest) (*port.ExecResult, error) {
		if req.Query == "/api/clients" {
			return &port.ExecResult{Status: 200, Body: []any{
				map[string]any{"short_name": "other", "external_id": "x-1"},
				map[string]any{"short_name": "ACME", "external_id": "x-42"},
			}}, nil
		}
		return &port.ExecResult{Status: 200, Body: []any{}}, nil
	}
	d, _ := newDispatcher(fake)

	// 目标位置原值为数组：整体替换为单元素数组
	_, err := d.Dispatch(context.Background(), domain.QueryRequest{
		Connector:    "docsearch",
		Instance:     "i1",
		Query:        "/search",
		ChainedQuery: chainedSpec(),
		Options:      map[string]any{"body": `{"filter":{"client_ids":["a","b","c"]}}`},
	}, &domain.QueryContext{ClientShortName: "acme"})
	if err != nil {
		t.Fatalf("调度失败: %v", err)
	}

	if len(fake.calls) != 2 {
		t.Fatalf("应先查找后执行主查询, 实际调用 %d 次", len(fake.calls))
	}
	var rewritten map[string]any
	if err := json.Unmarshal([]byte(fake.calls[1].Options["body"].(string)), &rewritten); err != nil {
		t.Fatalf("改写后的请求体不是合法 JSON: %v", err)
	}
	ids := rewritten["filter"].(map[string]any)["client_ids"].([]any)
	if len(ids) != 1 || ids[0] != "x-42" {
		t.Fatalf("数组目标应整体替换为单元素数组: %+v", ids)
	}
}

func TestDispatch_ChainedLookupFailureFallsThrough(t *testing.T) {
	fake := newFake("docsearch", querylang.DialectESDSL, true)
	fake.ExecFunc = func(_ context.Context, req port.ExecRequest) (*port.ExecResult, error) {
		if req.Query == "/api/clients" {
			return nil, port.NewUpstreamError(500, "lookup broken")
		}
		return &port.ExecResult{Status: 200, Body: []any{}}, nil
	}
	d, _ := newDispatcher(fake)

	originalBody := `{"filter":{"client_ids":["keep"]}}`
	_, err := d.Dispatch(context.Background(), domain.QueryRequest{
		Connector:    "docsearch",
		Instance:     "i1",
		Query:        "/search",
		ChainedQuery: chainedSpec(),
		Options:      map[string]any{"body": originalBody},
	}, &domain.QueryContext{ClientShortName: "acme"})
	if err != nil {
		t.Fatalf("查找失败不应中断主查询: %v", err)
	}

	// 主查询携带原始请求体照常执行
	last := fake.calls[len(fake.calls)-1]
	if last.Options["body"].(string) != originalBody {
		t.Fatalf("查找失败后请求体应保持原样: %q", last.Options["body"])
	}
}

// 简称无匹配记录同样算查找失败
func TestDispatch_ChainedLookupNoMatch(t *testing.T) {
	fake := newFake("docsearch", querylang.DialectESDSL, true)
	fake.ExecFunc = func(_ context.Context, req port.ExecRequest) (*port.ExecResult, error) {
		if req.Query == "/api/clients" {
			return &port.ExecResult{Status: 200, Body: []any{
				map[string]any{"short_name": "other", "external_id": "x-1"},
			}}, nil
		}
		return &port.ExecResult{Status: 200, Body: []any{}}, nil
	}
	d, _ := newDispatcher(fake)

	originalBody := `{"filter":{"client_ids":[]}}`
	_, err := d.Dispatch(context.Background(), domain.QueryRequest{
		Connector:    "docsearch",
		Instance:     "i1",
		Query:        "/search",
		ChainedQuery: chainedSpec(),
		Options:      map[string]any{"body": originalBody},
	}, &domain.QueryContext{ClientShortName: "acme"})
	if err != nil {
		t.Fatalf("无匹配不应中断主查询: %v", err)
	}
	last := fake.calls[len(fake.calls)-1]
	if last.Options["body"].(string) != originalBody {
		t.Fatalf("无匹配时请求体应保持原样: %q", last.Options["body"])
	}
}

// ===============================
// rewriteTarget
// ===============================

func TestRewriteTarget(t *testing.T) {
	// 标量目标直接覆盖
	out, err := rewriteTarget(`{"a":{"b":"old"}}`, "a.b", "new")
	if err != nil {
		t.Fatalf("改写失败: %v", err)
	}
	if out != `{"a":{"b":"new"}}` {
		t.Fatalf("标量目标改写不符: %q", out)
	}

	// 缺失的中间层按需创建
	out, err = rewriteTarget(`{}`, "x.y.z", float64(7))
	if err != nil {
		t.Fatalf("改写失败: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal([]byte(out), &m)
	if m["x"].(map[string]any)["y"].(map[string]any)["z"] != float64(7) {
		t.Fatalf("中间层未创建: %q", out)
	}

	// 非法 JSON 返回错误
	if _, err := rewriteTarget(`not json`, "a", 1); err == nil {
		t.Fatal("非法 JSON 应返回错误")
	}
}
