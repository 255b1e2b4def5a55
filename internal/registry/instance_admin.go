// Package registry file: internal/registry/instance_admin.go
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
)

// CreateInstanceParams 是创建实例的入参
type CreateInstanceParams struct {
	Name     string            `json:"name" binding:"required"`
	BaseURL  string            `json:"base_url" binding:"required"`
	AuthType domain.AuthType   `json:"auth_type" binding:"required,oneof=none basic bearer api_key"`
	Auth     domain.AuthConfig `json:"auth_config"`
	Tags     []string          `json:"tags"`
}

// InstancePatch 是更新实例的入参。
// 指针字段便于区分"未传"与"传了零值"，实现部分更新；ID 不可变更。
type InstancePatch struct {
	Name     *string            `json:"name"`
	BaseURL  *string            `json:"base_url"`
	AuthType *domain.AuthType   `json:"auth_type"`
	Auth     *domain.AuthConfig `json:"auth_config"`
	Active   *bool              `json:"active"`
	Tags     *[]string          `json:"tags"`
}

// CreateInstance 在指定连接器下新建实例（ID 由系统生成），成功后持久化
func (r *Registry) CreateInstance(ctx context.Context, connectorName string, params CreateInstanceParams) (*domain.Instance, error) {
	c, ok := r.Get(connectorName)
	if !ok {
		return nil, port.ErrConnectorNotFound
	}
	desc := c.Descriptor()

	lock := r.lockFor(desc.Name)
	lock.Lock()
	defer lock.Unlock()

	inst := domain.Instance{
		ID:       uuid.NewString(),
		Name:     params.Name,
		BaseURL:  params.BaseURL,
		AuthType: params.AuthType,
		Auth:     params.Auth,
		Active:   true,
		Tags:     params.Tags,
	}
	desc.Instances = append(desc.Instances, inst)

	if err := r.persist(ctx, desc); err != nil {
		return nil, err
	}
	slog.Info("已创建连接器实例", "connector", desc.Name, "instance", inst.ID, "name", inst.Name)
	return &inst, nil
}

// UpdateInstance 对实例做部分更新，成功后持久化
func (r *Registry) UpdateInstance(ctx context.Context, connectorName, instanceID string, patch InstancePatch) (*domain.Instance, error) {
	c, ok := r.Get(connectorName)
	if !ok {
		return nil, port.ErrConnectorNotFound
	}
	desc := c.Descriptor()

	lock := r.lockFor(desc.Name)
	lock.Lock()
	defer lock.Unlock()

	inst := desc.FindInstance(instanceID)
	if inst == nil {
		return nil, port.ErrInstanceNotFound
	}

	if patch.Name != nil {
		inst.Name = *patch.Name
	}
	if patch.BaseURL != nil {
		inst.BaseURL = *patch.BaseURL
	}
	if patch.AuthType != nil {
		inst.AuthType = *patch.AuthType
	}
	if patch.Auth != nil {
		inst.Auth = *patch.Auth
	}
	if patch.Active != nil {
		inst.Active = *patch.Active
	}
	if patch.Tags != nil {
		inst.Tags = *patch.Tags
	}

	if err := r.persist(ctx, desc); err != nil {
		return nil, err
	}
	slog.Info("已更新连接器实例", "connector", desc.Name, "instance", instanceID)
	out := *inst
	return &out, nil
}

// DeleteInstance 硬删除实例（不保留墓碑），成功后持久化
func (r *Registry) DeleteInstance(ctx context.Context, connectorName, instanceID string) error {
	c, ok := r.Get(connectorName)
	if !ok {
		return port.ErrConnectorNotFound
	}
	desc := c.Descriptor()

	lock := r.lockFor(desc.Name)
	lock.Lock()
	defer lock.Unlock()

	idx := -1
	for i := range desc.Instances {
		if desc.Instances[i].ID == instanceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return port.ErrInstanceNotFound
	}
	desc.Instances = append(desc.Instances[:idx], desc.Instances[idx+1:]...)

	if err := r.persist(ctx, desc); err != nil {
		return err
	}
	slog.Info("已删除连接器实例", "connector", desc.Name, "instance", instanceID)
	return nil
}

// ToggleInstance 切换实例的启停状态，成功后持久化
func (r *Registry) ToggleInstance(ctx context.Context, connectorName, instanceID string, active bool) (*domain.Instance, error) {
	return r.UpdateInstance(ctx, connectorName, instanceID, InstancePatch{Active: &active})
}

func (r *Registry) persist(ctx context.Context, desc *domain.ConnectorDescriptor) error {
	if r.persister == nil {
		return nil
	}
	if err := r.persister.PersistConnectorConfig(ctx, desc.Name, desc); err != nil {
		return fmt.Errorf("持久化连接器 '%s' 配置失败: %w", desc.Name, err)
	}
	return nil
}
