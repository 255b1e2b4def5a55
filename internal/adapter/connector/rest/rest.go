// Package rest file: internal/adapter/connector/rest/rest.go
// Package rest 是通用 REST 连接器：查询文本即 API 路径，
// 请求方法与请求体透传。没有原生过滤方言，过滤一律走查询后过滤。
package rest

import (
	"context"
	"net/http"

	"SentinelGate/internal/adapter/connector/restclient"
	"SentinelGate/internal/adapter/connector/restconn"
	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
	"SentinelGate/internal/querylang"
)

// 编译期断言，确保 Connector 实现了 port.Connector 接口
var _ port.Connector = (*Connector)(nil)

// Connector 通用 REST 连接器
type Connector struct {
	restconn.Base
}

// New 创建通用 REST 连接器
func New(client *restclient.Client) *Connector {
	return &Connector{Base: restconn.Base{
		Client: client,
		Desc: &domain.ConnectorDescriptor{
			Name:                 "rest",
			Description:          "通用 REST 端点，过滤由查询后过滤施加",
			Dialect:              querylang.DialectSQL,
			SupportsServerFilter: false,
			RateLimit:            domain.RateLimitHint{RequestsPerMinute: 120, Burst: 20},
			DefaultQueries: []domain.QueryDefinition{
				{ID: "root", Method: http.MethodGet, Path: "/", Description: "根路径（连通性探测）"},
			},
			Instances: []domain.Instance{},
		},
	}}
}

// Execute 按请求方法把查询路径直接转发到实例
func (c *Connector) Execute(ctx context.Context, req port.ExecRequest) (*port.ExecResult, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return c.DoRequest(ctx, req.InstanceID, method, req.Query, restconn.BodyOption(req.Options))
}
