// Package docsearch file: internal/adapter/connector/docsearch/docsearch.go
// Package docsearch 对接 Elasticsearch DSL 风格的文档检索引擎。
// 过滤编译器产出的 term/wildcard/range 片段以逗号并列，
// 此处负责把它们包装为完整的 bool 过滤查询体。
package docsearch

import (
	"context"
	"net/http"
	"strings"

	"SentinelGate/internal/adapter/connector/restclient"
	"SentinelGate/internal/adapter/connector/restconn"
	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
	"SentinelGate/internal/querylang"
)

// 编译期断言，确保 Connector 实现了 port.Connector 接口
var _ port.Connector = (*Connector)(nil)

const searchPath = "/_search"

// Connector 文档检索连接器
type Connector struct {
	restconn.Base
}

// New 创建文档检索连接器
func New(client *restclient.Client) *Connector {
	return &Connector{Base: restconn.Base{
		Client: client,
		Desc: &domain.ConnectorDescriptor{
			Name:                 "docsearch",
			Description:          "文档检索引擎 (Elasticsearch DSL 方言)，支持服务端过滤",
			Dialect:              querylang.DialectESDSL,
			SupportsServerFilter: true,
			RateLimit:            domain.RateLimitHint{RequestsPerMinute: 120, Burst: 30},
			DefaultQueries: []domain.QueryDefinition{
				{ID: "cluster_health", Method: http.MethodGet, Path: "/_cluster/health", Description: "集群健康（连通性探测）"},
				{ID: "compliance_docs", Method: http.MethodPost, Path: "/compliance/_search", Description: "合规文档全量检索"},
			},
			Instances: []domain.Instance{},
		},
	}}
}

// Execute 提交检索请求。
// 查询已是完整 JSON 对象时原样作为请求体；
// 否则视为并列的 DSL 片段，包装进 bool.filter 数组。
func (c *Connector) Execute(ctx context.Context, req port.ExecRequest) (*port.ExecResult, error) {
	if body := restconn.BodyOption(req.Options); body != "" {
		return c.DoRequest(ctx, req.InstanceID, http.MethodPost, searchPath, body)
	}

	body := strings.TrimSpace(req.Query)
	switch {
	case body == "":
		body = `{"query":{"match_all":{}}}`
	case !strings.HasPrefix(body, "{"):
		body = `{"query":{"bool":{"filter":[` + body + `]}}}`
	case !strings.Contains(body, `"query"`):
		body = `{"query":{"bool":{"filter":[` + body + `]}}}`
	}
	return c.DoRequest(ctx, req.InstanceID, http.MethodPost, searchPath, body)
}
