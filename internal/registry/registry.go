// Package registry file: internal/registry/registry.go
// Package registry 维护进程级的连接器注册表。
// 生命周期：启动时（对外服务之前）完成注册，正常运行期间不清空；
// 实例列表的运行期变更由每连接器一把的写锁串行化。
package registry

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
)

// InstanceEntry 把实例与其所属连接器一并列出
type InstanceEntry struct {
	Connector string          `json:"connector"`
	Instance  domain.Instance `json:"instance"`
}

// Registry 是所有连接器的唯一注册表
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]port.Connector

	writeLocks sync.Map // connectorName -> *sync.Mutex

	persister port.ConfigPersister
}

// New 创建注册表。persister 为 nil 时实例变更不持久化（仅测试用）。
func New(persister port.ConfigPersister) *Registry {
	return &Registry{
		connectors: make(map[string]port.Connector),
		persister:  persister,
	}
}

// Register 注册一个连接器。
// 名称归一化为小写键；描述符的实例列表与默认查询目录保证非 nil，
// 避免所有下游消费方的空指针处理。同名重复注册按后写覆盖并告警，
// 这是显式的设计选择而非静默忽略。
func (r *Registry) Register(c port.Connector) {
	desc := c.Descriptor()
	name := strings.ToLower(strings.TrimSpace(desc.Name))
	desc.Name = name
	if desc.Instances == nil {
		desc.Instances = []domain.Instance{}
	}
	if desc.DefaultQueries == nil {
		desc.DefaultQueries = []domain.QueryDefinition{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connectors[name]; exists {
		slog.Warn("连接器重复注册，后写覆盖先前的注册", "connector", name)
	}
	r.connectors[name] = c
}

// Get 按名称取连接器（大小写不敏感）
func (r *Registry) Get(name string) (port.Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// ListAll 返回全部连接器描述符
func (r *Registry) ListAll() []*domain.ConnectorDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ConnectorDescriptor, 0, len(r.connectors))
	for _, c := range r.connectors {
		out = append(out, c.Descriptor())
	}
	return out
}

// ListInstances 展平列出所有连接器的所有实例
func (r *Registry) ListInstances() []InstanceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InstanceEntry, 0)
	for name, c := range r.connectors {
		for _, inst := range c.Descriptor().Instances {
			out = append(out, InstanceEntry{Connector: name, Instance: inst})
		}
	}
	return out
}

// lockFor 返回指定连接器的写锁
func (r *Registry) lockFor(name string) *sync.Mutex {
	actual, _ := r.writeLocks.LoadOrStore(name, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// LoadPersisted 启动时把持久化的实例配置装载进已注册的描述符
func (r *Registry) LoadPersisted(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	stored, err := r.persister.LoadConnectorInstances(ctx)
	if err != nil {
		return err
	}
	for name, instances := range stored {
		c, ok := r.Get(name)
		if !ok {
			slog.Warn("持久化配置中的连接器未注册，跳过", "connector", name)
			continue
		}
		lock := r.lockFor(name)
		lock.Lock()
		c.Descriptor().Instances = instances
		lock.Unlock()
		slog.Info("已装载连接器实例配置", "connector", name, "instances", len(instances))
	}
	return nil
}
