// Package domain file: internal/core/domain/query_models.go
package domain

import "time"

// ParameterSource 枚举了参数值的三种来源
type ParameterSource string

const (
	ParamStatic   ParameterSource = "static"
	ParamContext  ParameterSource = "context"
	ParamDatabase ParameterSource = "database"
)

// ParameterSpec 描述一个命名参数如何取值。
// static 直接使用 Value；context 从请求上下文取 Variable；
// database 对允许列表中的表/列做一次窄读。
type ParameterSpec struct {
	Source   ParameterSource `json:"source"`
	Value    any             `json:"value,omitempty"`
	Variable string          `json:"variable,omitempty"`
	Table    string          `json:"table,omitempty"`
	Column   string          `json:"column,omitempty"`
}

// FilterOperator 是过滤条件支持的操作符全集。
// 此集合即全部契约，方言编译器不得推断此外的操作符。
type FilterOperator string

const (
	OpEquals       FilterOperator = "equals"
	OpNotEquals    FilterOperator = "not_equals"
	OpContains     FilterOperator = "contains"
	OpNotContains  FilterOperator = "not_contains"
	OpStartsWith   FilterOperator = "starts_with"
	OpEndsWith     FilterOperator = "ends_with"
	OpGreaterThan  FilterOperator = "greater_than"
	OpGreaterEqual FilterOperator = "greater_equal"
	OpLessThan     FilterOperator = "less_than"
	OpLessEqual    FilterOperator = "less_equal"
	OpBetween      FilterOperator = "between"
	OpIn           FilterOperator = "in"
	OpNotIn        FilterOperator = "not_in"
	OpIsNull       FilterOperator = "is_null"
	OpIsNotNull    FilterOperator = "is_not_null"
)

// FilterSpec 是一条结构化过滤条件。
// 多条过滤条件之间恒为 AND 组合，不支持 OR 分组与嵌套（这是文档化的限制）。
type FilterSpec struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value,omitempty"`
	Value2   any            `json:"value2,omitempty"`
	Type     string         `json:"type,omitempty"` // string|number|boolean|date
	Enabled  *bool          `json:"enabled,omitempty"`
}

// IsEnabled 未显式置 false 的过滤条件一律视为启用
func (f FilterSpec) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// ChainedQuerySpec 描述两步查询：先执行 LookupQuery，
// 在其结果中找到 MatchField 与上下文标识相符的第一条记录，
// 取出 LookupField 的值，写入主查询 JSON 体中 TargetField 指向的位置。
type ChainedQuerySpec struct {
	Enabled          bool                     `json:"enabled"`
	LookupQuery      string                   `json:"lookup_query"`
	LookupMethod     string                   `json:"lookup_method,omitempty"`
	LookupParameters map[string]ParameterSpec `json:"lookup_parameters,omitempty"`
	MatchField       string                   `json:"match_field"`
	LookupField      string                   `json:"lookup_field"`
	TargetField      string                   `json:"target_field"`
}

// QueryRequest 是一次调度的完整输入，仅存活于单次调度期间，不做持久化
type QueryRequest struct {
	Connector    string                   `json:"connector"`
	Instance     string                   `json:"instance"`
	Query        string                   `json:"query"`
	Method       string                   `json:"method,omitempty"`
	Parameters   map[string]ParameterSpec `json:"parameters,omitempty"`
	Filters      []FilterSpec             `json:"filters,omitempty"`
	ChainedQuery *ChainedQuerySpec        `json:"chained_query,omitempty"`
	Options      map[string]any           `json:"options,omitempty"`
}

// QueryContext 携带调度时可供 context 来源参数取用的请求上下文变量。
// 变量集合是固定枚举的：当前客户 ID/简称、上级公司 ID/名称、操作用户 ID。
type QueryContext struct {
	ClientID          string
	ClientShortName   string
	ParentCompanyID   string
	ParentCompanyName string
	UserID            string
}

// InstanceRef 在响应元数据中标识实际执行查询的实例
type InstanceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DispatchMetadata 是响应信封的 metadata 部分
type DispatchMetadata struct {
	Query              string            `json:"query"`
	OriginalQuery      string            `json:"originalQuery"`
	ResolvedParameters map[string]string `json:"resolvedParameters,omitempty"`
	AppliedFilters     []FilterSpec      `json:"appliedFilters,omitempty"`
	Method             string            `json:"method"`
	ResponseTimeMs     int64             `json:"responseTimeMs"`
	RecordCount        *int              `json:"recordCount"`
	Instance           InstanceRef       `json:"instance"`
}

// DispatchResult 是统一的成功响应信封
type DispatchResult struct {
	Success   bool             `json:"success"`
	Data      any              `json:"data"`
	Metadata  DispatchMetadata `json:"metadata"`
	Timestamp time.Time        `json:"timestamp"`
}

// HealthStatus 是单个实例的健康检查结论
type HealthStatus struct {
	Connector      string `json:"connector"`
	InstanceID     string `json:"instanceId"`
	InstanceName   string `json:"instanceName"`
	Status         string `json:"status"` // healthy|error|inactive|unknown
	ResponseTimeMs int64  `json:"responseTimeMs,omitempty"`
	Message        string `json:"message,omitempty"`
}
