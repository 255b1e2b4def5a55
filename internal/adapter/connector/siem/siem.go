// Package siem file: internal/adapter/connector/siem/siem.go
// Package siem 对接 SPL 风格的日志检索平台（Splunk 系）。
package siem

import (
	"context"
	"encoding/json"
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

const exportPath = "/services/search/jobs/export"

// Connector 日志检索连接器
type Connector struct {
	restconn.Base
}

// New 创建 SIEM 连接器
func New(client *restclient.Client) *Connector {
	return &Connector{Base: restconn.Base{
		Client: client,
		Desc: &domain.ConnectorDescriptor{
			Name:                 "siem",
			Description:          "日志检索平台 (SPL 方言)，支持服务端过滤",
			Dialect:              querylang.DialectSPL,
			SupportsServerFilter: true,
			RateLimit:            domain.RateLimitHint{RequestsPerMinute: 60, Burst: 10},
			DefaultQueries: []domain.QueryDefinition{
				{ID: "ping", Method: http.MethodGet, Path: "/services/server/info", Description: "服务信息（连通性探测）"},
				{ID: "recent_alerts", Method: http.MethodPost, Path: exportPath, Description: "近一小时告警事件"},
			},
			Instances: []domain.Instance{},
		},
	}}
}

// Execute 把 SPL 查询以导出作业形式提交。
// 查询未以 search 开头时补全前缀，这是 SPL 提交接口的要求。
func (c *Connector) Execute(ctx context.Context, req port.ExecRequest) (*port.ExecResult, error) {
	if body := restconn.BodyOption(req.Options); body != "" {
		return c.DoRequest(ctx, req.InstanceID, http.MethodPost, exportPath, body)
	}

	search := strings.TrimSpace(req.Query)
	if search != "" && !strings.HasPrefix(strings.ToLower(search), "search ") && !strings.HasPrefix(search, "|") {
		search = "search " + search
	}
	payload, err := json.Marshal(map[string]string{
		"search":      search,
		"output_mode": "json",
	})
	if err != nil {
		return nil, err
	}
	return c.DoRequest(ctx, req.InstanceID, http.MethodPost, exportPath, string(payload))
}
