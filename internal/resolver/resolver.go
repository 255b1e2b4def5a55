// Package resolver file: internal/resolver/resolver.go
// Package resolver 负责把命名参数解析为运行时值并替换进查询模板。
// 取值来源有三类：静态字面量、请求上下文变量、外部记录的窄读。
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
)

// lookupRule 描述 database 来源允许访问的一张表
type lookupRule struct {
	columns     map[string]bool
	keyColumn   string // 以上下文客户 ID 做主键读；为空表示无直接键
	orderColumn string // 无直接键时按此列取最新一条
}

// allowedLookups 是 database 来源的固定允许列表。
// 列表之外的表/列一律拒绝，解析降级为空字符串。
var allowedLookups = map[string]lookupRule{
	"clients": {
		columns:   map[string]bool{"id": true, "short_name": true, "company_name": true, "crm_number": true},
		keyColumn: "id",
	},
	"contracts": {
		columns:     map[string]bool{"id": true, "contract_number": true, "client_id": true},
		keyColumn:   "client_id",
		orderColumn: "signed_at",
	},
	"licenses": {
		columns:     map[string]bool{"id": true, "license_key": true, "seats": true},
		keyColumn:   "client_id",
		orderColumn: "expires_at",
	},
	"parent_companies": {
		columns:   map[string]bool{"id": true, "name": true},
		keyColumn: "id",
	},
}

// Resolver 按 ParameterSpec 解析参数值。
// database 来源的读结果在短 TTL 的 LRU 中做记忆化，避免同一请求集反复打库。
type Resolver struct {
	reader      port.ContextReader
	lookupCache *lru.LRU[string, string]
}

// New 创建解析器。reader 为 nil 时 database 来源恒解析为空字符串。
func New(reader port.ContextReader) *Resolver {
	return &Resolver{
		reader:      reader,
		lookupCache: lru.NewLRU[string, string](256, nil, time.Minute),
	}
}

// Resolve 解析单个参数。任何查找失败都不会中断整体请求，
// 只把替换值降级为空字符串。
func (r *Resolver) Resolve(ctx context.Context, spec domain.ParameterSpec, qctx *domain.QueryContext) string {
	switch spec.Source {
	case domain.ParamStatic:
		return stringify(spec.Value)
	case domain.ParamContext:
		return r.contextValue(spec.Variable, qctx)
	case domain.ParamDatabase:
		return r.databaseValue(ctx, spec, qctx)
	default:
		slog.Warn("未知的参数来源，解析为空", "source", spec.Source)
		return ""
	}
}

// ResolveAll 解析整组参数并返回名称到值的映射
func (r *Resolver) ResolveAll(ctx context.Context, specs map[string]domain.ParameterSpec, qctx *domain.QueryContext) map[string]string {
	if len(specs) == 0 {
		return nil
	}
	r.Enrich(ctx, qctx)
	values := make(map[string]string, len(specs))
	for name, spec := range specs {
		values[name] = r.Resolve(ctx, spec, qctx)
	}
	return values
}

// Enrich 在上下文携带上级公司 ID 但缺少其冗余展示字段时，
// 执行一次补充读取。上限是每次请求一次额外查找，不构成 N+1 风险。
func (r *Resolver) Enrich(ctx context.Context, qctx *domain.QueryContext) {
	if qctx == nil || r.reader == nil {
		return
	}
	if qctx.ParentCompanyID == "" || qctx.ParentCompanyName != "" {
		return
	}
	name, err := r.reader.ReadColumn(ctx, "parent_companies", "name", "id", qctx.ParentCompanyID)
	if err != nil {
		slog.Warn("补充读取上级公司名称失败", "parent_company_id", qctx.ParentCompanyID, "error", err)
		return
	}
	qctx.ParentCompanyName = name
}

// contextValue 上下文变量是固定枚举集，未设置时返回空字符串
func (r *Resolver) contextValue(variable string, qctx *domain.QueryContext) string {
	if qctx == nil {
		return ""
	}
	switch variable {
	case "client_id":
		return qctx.ClientID
	case "client_short_name":
		return qctx.ClientShortName
	case "parent_company_id":
		return qctx.ParentCompanyID
	case "parent_company_name":
		return qctx.ParentCompanyName
	case "user_id":
		return qctx.UserID
	default:
		slog.Debug("请求了未枚举的上下文变量", "variable", variable)
		return ""
	}
}

func (r *Resolver) databaseValue(ctx context.Context, spec domain.ParameterSpec, qctx *domain.QueryContext) string {
	if r.reader == nil {
		return ""
	}
	rule, ok := allowedLookups[spec.Table]
	if !ok || !rule.columns[spec.Column] {
		slog.Warn("database 参数访问了允许列表之外的表或列", "table", spec.Table, "column", spec.Column)
		return ""
	}

	keyValue := ""
	if qctx != nil {
		if spec.Table == "parent_companies" {
			keyValue = qctx.ParentCompanyID
		} else {
			keyValue = qctx.ClientID
		}
	}

	cacheKey := spec.Table + ":" + spec.Column + ":" + keyValue
	if v, ok := r.lookupCache.Get(cacheKey); ok {
		return v
	}

	var value string
	var err error
	if keyValue != "" {
		value, err = r.reader.ReadColumn(ctx, spec.Table, spec.Column, rule.keyColumn, keyValue)
	} else if rule.orderColumn != "" {
		value, err = r.reader.ReadLatestColumn(ctx, spec.Table, spec.Column)
	} else {
		err = fmt.Errorf("缺少主键上下文且表 '%s' 无自然排序列", spec.Table)
	}
	if err != nil {
		slog.Warn("database 参数查找失败，降级为空值", "table", spec.Table, "column", spec.Column, "error", err)
		return ""
	}

	r.lookupCache.Add(cacheKey, value)
	return value
}

// Substitute 把解析好的值按精确占位符（${name}）替换进查询模板。
// 未匹配到参数的占位符原样保留：保证占位符与参数集合一致是调用方的责任。
func Substitute(query string, values map[string]string) string {
	for name, value := range values {
		query = strings.ReplaceAll(query, "${"+name+"}", value)
	}
	return query
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
