// Package edr file: internal/adapter/connector/edr/edr.go
// Package edr 对接终端检测与响应平台。
// 该类 API 不支持服务端过滤，过滤语义由调度器在取回响应后施加。
package edr

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

// Connector 终端检测与响应连接器
type Connector struct {
	restconn.Base
}

// New 创建 EDR 连接器
func New(client *restclient.Client) *Connector {
	return &Connector{Base: restconn.Base{
		Client: client,
		Desc: &domain.ConnectorDescriptor{
			Name:                 "edr",
			Description:          "终端检测与响应平台，不支持服务端过滤（查询后过滤兜底）",
			Dialect:              querylang.DialectSQL,
			SupportsServerFilter: false,
			RateLimit:            domain.RateLimitHint{RequestsPerMinute: 30, Burst: 5},
			DefaultQueries: []domain.QueryDefinition{
				{ID: "sensors", Method: http.MethodGet, Path: "/api/v1/sensors?limit=1", Description: "传感器列表（连通性探测）"},
				{ID: "open_detections", Method: http.MethodGet, Path: "/api/v1/detections?status=open", Description: "未处置检出"},
			},
			Instances: []domain.Instance{},
		},
	}}
}

// Execute 查询文本即 API 路径（可含查询串），按请求方法直接转发
func (c *Connector) Execute(ctx context.Context, req port.ExecRequest) (*port.ExecResult, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return c.DoRequest(ctx, req.InstanceID, method, req.Query, restconn.BodyOption(req.Options))
}
