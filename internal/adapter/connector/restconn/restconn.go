// Package restconn file: internal/adapter/connector/restconn/restconn.go
// Package restconn 是 REST 族连接器的公共骨架：
// 实例校验（存在性、启停状态）先于任何网络调用，请求经共享客户端发出。
package restconn

import (
	"context"
	"fmt"
	"net/http"

	"SentinelGate/internal/adapter/connector/restclient"
	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
)

// Base 供具体 REST 连接器嵌入
type Base struct {
	Desc   *domain.ConnectorDescriptor
	Client *restclient.Client
}

// Descriptor 返回连接器描述符
func (b *Base) Descriptor() *domain.ConnectorDescriptor { return b.Desc }

// Type 返回连接器类型标识
func (b *Base) Type() string { return b.Desc.Name }

// Instance 校验并返回目标实例。
// 实例不存在返回 ErrInstanceNotFound；已停用返回 ErrInstanceInactive。
// 两类失败都发生在任何网络调用之前。
func (b *Base) Instance(id string) (*domain.Instance, error) {
	inst := b.Desc.FindInstance(id)
	if inst == nil {
		return nil, fmt.Errorf("连接器 '%s' 下无实例 '%s': %w", b.Desc.Name, id, port.ErrInstanceNotFound)
	}
	if !inst.Active {
		return nil, fmt.Errorf("实例 '%s' (%s): %w", inst.Name, inst.ID, port.ErrInstanceInactive)
	}
	return inst, nil
}

// DoRequest 对实例发出一次请求
func (b *Base) DoRequest(ctx context.Context, instanceID, method, path, body string) (*port.ExecResult, error) {
	inst, err := b.Instance(instanceID)
	if err != nil {
		return nil, err
	}
	return b.Client.Do(ctx, inst, method, path, body)
}

// HealthCheck 以目录中的第一条默认查询做连通性探测；
// 目录为空时退化为对基地址的 GET。
func (b *Base) HealthCheck(ctx context.Context, instanceID string) error {
	probe := domain.QueryDefinition{Method: http.MethodGet, Path: ""}
	if len(b.Desc.DefaultQueries) > 0 {
		probe = b.Desc.DefaultQueries[0]
	}
	_, err := b.DoRequest(ctx, instanceID, probe.Method, probe.Path, "")
	return err
}

// BodyOption 从执行选项中取出字符串请求体
func BodyOption(options map[string]any) string {
	if options == nil {
		return ""
	}
	if s, ok := options["body"].(string); ok {
		return s
	}
	return ""
}
