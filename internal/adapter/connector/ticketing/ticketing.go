// Package ticketing file: internal/adapter/connector/ticketing/ticketing.go
// Package ticketing 对接 JQL 风格的工单系统（Jira 系）。
// 查询文本即 JQL，过滤子句由编译器在调度前拼入，此处只负责发出请求。
package ticketing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"SentinelGate/internal/adapter/connector/restclient"
	"SentinelGate/internal/adapter/connector/restconn"
	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
	"SentinelGate/internal/querylang"
)

// 编译期断言，确保 Connector 实现了 port.Connector 接口
var _ port.Connector = (*Connector)(nil)

const searchPath = "/rest/api/2/search"

// Connector 工单系统连接器
type Connector struct {
	restconn.Base
}

// New 创建工单连接器
func New(client *restclient.Client) *Connector {
	return &Connector{Base: restconn.Base{
		Client: client,
		Desc: &domain.ConnectorDescriptor{
			Name:                 "ticketing",
			Description:          "工单系统 (JQL 方言)，支持服务端过滤",
			Dialect:              querylang.DialectJQL,
			SupportsServerFilter: true,
			RateLimit:            domain.RateLimitHint{RequestsPerMinute: 120, Burst: 20},
			DefaultQueries: []domain.QueryDefinition{
				{ID: "open_tickets", Method: http.MethodGet, Path: searchPath + "?jql=status%20!%3D%20Closed&maxResults=1", Description: "未关闭工单（连通性探测）"},
				{ID: "recent_incidents", Method: http.MethodGet, Path: searchPath + "?jql=type%20%3D%20Incident%20ORDER%20BY%20created%20DESC", Description: "最近安全事件工单"},
			},
			Instances: []domain.Instance{},
		},
	}}
}

// Execute 把 JQL 查询发往搜索端点。
// 携带请求体（链式查询改写过的 JSON）时走 POST，否则 GET 并对 JQL 做 URL 编码。
func (c *Connector) Execute(ctx context.Context, req port.ExecRequest) (*port.ExecResult, error) {
	if body := restconn.BodyOption(req.Options); body != "" {
		return c.DoRequest(ctx, req.InstanceID, http.MethodPost, searchPath, body)
	}
	path := fmt.Sprintf("%s?jql=%s", searchPath, url.QueryEscape(req.Query))
	return c.DoRequest(ctx, req.InstanceID, http.MethodGet, path, "")
}
