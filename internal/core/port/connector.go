// Package port file: internal/core/port/connector.go
package port

import (
	"context"
	"time"

	"SentinelGate/internal/core/domain"
)

// ExecRequest 是连接器执行一次查询所需的最小输入。
// Query 已完成参数替换与过滤子句拼接，连接器只负责发出请求。
type ExecRequest struct {
	Query      string
	Method     string
	InstanceID string
	Options    map[string]any
}

// ExecResult 是连接器返回的统一信封。
// Body 在上游 Content-Type 指示 JSON 时为解码后的结构，否则为原始文本。
type ExecResult struct {
	Status    int
	Headers   map[string]string
	Body      any
	Timestamp time.Time
}

// Connector 是所有连接器必须实现的统一契约
type Connector interface {
	// Execute 对指定实例执行一次查询
	Execute(ctx context.Context, req ExecRequest) (*ExecResult, error)

	// Descriptor 返回连接器的描述符（身份、实例列表、默认查询目录）
	Descriptor() *domain.ConnectorDescriptor

	// HealthCheck 对指定实例做一次连通性探测
	HealthCheck(ctx context.Context, instanceID string) error

	// Type 返回连接器的类型标识符
	Type() string
}

// ConfigPersister 是实例配置的外部持久化协作方。
// 每次成功的实例增删改之后都必须调用 PersistConnectorConfig，
// 本核心不规定存储格式，只保证调用发生。
type ConfigPersister interface {
	PersistConnectorConfig(ctx context.Context, connectorName string, descriptor *domain.ConnectorDescriptor) error
	LoadConnectorInstances(ctx context.Context) (map[string][]domain.Instance, error)
}

// ContextReader 由参数解析器用于 database 来源的窄读。
// 实现只允许访问固定允许列表中的表/列。
type ContextReader interface {
	ReadColumn(ctx context.Context, table, column, keyColumn, keyValue string) (string, error)
	ReadLatestColumn(ctx context.Context, table, column string) (string, error)
}
