// file: internal/registry/registry_test.go

package registry

import (
	"context"
	"errors"
	"testing"

	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
)

// ============================================================================
//  测试替身 (Test Doubles)
// ============================================================================

// stubConnector 是 port.Connector 的最小测试替身
type stubConnector struct {
	desc *domain.ConnectorDescriptor
}

func newStubConnector(name string) *stubConnector {
	return &stubConnector{desc: &domain.ConnectorDescriptor{Name: name}}
}

func (s *stubConnector) Execute(context.Context, port.ExecRequest) (*port.ExecResult, error) {
	return &port.ExecResult{Status: 200}, nil
}
func (s *stubConnector) Descriptor() *domain.ConnectorDescriptor { return s.desc }
func (s *stubConnector) HealthCheck(context.Context, string) error {
	return nil
}
func (s *stubConnector) Type() string { return s.desc.Name }

// mockPersister 记录持久化调用
type mockPersister struct {
	persisted map[string]int
	loadData  map[string][]domain.Instance
	failNext  error
}

func newMockPersister() *mockPersister {
	return &mockPersister{persisted: make(map[string]int)}
}

func (m *mockPersister) PersistConnectorConfig(_ context.Context, name string, _ *domain.ConnectorDescriptor) error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.persisted[name]++
	return nil
}

func (m *mockPersister) LoadConnectorInstances(context.Context) (map[string][]domain.Instance, error) {
	return m.loadData, nil
}

// ===============================
// 注册与查找
// ===============================

func TestRegister_NormalizesAndDefaults(t *testing.T) {
	r := New(nil)
	r.Register(newStubConnector("  SIEM "))

	c, ok := r.Get("siem")
	if !ok {
		t.Fatal("按小写名称应能取到连接器")
	}
	if _, ok := r.Get("SIEM"); !ok {
		t.Fatal("查找应大小写不敏感")
	}
	// 描述符的列表字段保证非 nil
	if c.Descriptor().Instances == nil || c.Descriptor().DefaultQueries == nil {
		t.Fatal("注册后实例列表与默认查询目录必须非 nil")
	}
}

func TestRegister_LastWriterWins(t *testing.T) {
	r := New(nil)
	first := newStubConnector("rest")
	second := newStubConnector("rest")
	r.Register(first)
	r.Register(second)

	got, _ := r.Get("rest")
	if got != port.Connector(second) {
		t.Fatal("同名重复注册应后写覆盖")
	}
	if len(r.ListAll()) != 1 {
		t.Fatalf("注册表中应只有1个连接器, 实际 %d", len(r.ListAll()))
	}
}

func TestListInstances_Flattened(t *testing.T) {
	r := New(nil)
	a := newStubConnector("a")
	a.desc.Instances = []domain.Instance{{ID: "a1"}, {ID: "a2"}}
	b := newStubConnector("b")
	b.desc.Instances = []domain.Instance{{ID: "b1"}}
	r.Register(a)
	r.Register(b)

	entries := r.ListInstances()
	if len(entries) != 3 {
		t.Fatalf("展平后应有3个实例, 实际 %d", len(entries))
	}
}

// ===============================
// 实例生命周期
// ===============================

func TestInstanceLifecycle(t *testing.T) {
	p := newMockPersister()
	r := New(p)
	r.Register(newStubConnector("edr"))
	ctx := context.Background()

	// 创建：ID 由系统生成，默认启用
	inst, err := r.CreateInstance(ctx, "edr", CreateInstanceParams{
		Name:     "生产环境",
		BaseURL:  "https://edr.example.com",
		AuthType: domain.AuthBearer,
		Auth:     domain.AuthConfig{Token: "tok"},
	})
	if err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}
	if inst.ID == "" || !inst.Active {
		t.Fatalf("新实例应有系统生成的 ID 且默认启用: %+v", inst)
	}
	if p.persisted["edr"] != 1 {
		t.Fatalf("创建后应持久化1次, 实际 %d", p.persisted["edr"])
	}

	// 部分更新：只改名称，其余字段不动
	newName := "生产环境-主"
	updated, err := r.UpdateInstance(ctx, "edr", inst.ID, InstancePatch{Name: &newName})
	if err != nil {
		t.Fatalf("更新实例失败: %v", err)
	}
	if updated.Name != newName || updated.BaseURL != inst.BaseURL || updated.ID != inst.ID {
		t.Fatalf("部分更新语义不符: %+v", updated)
	}

	// 停用
	toggled, err := r.ToggleInstance(ctx, "edr", inst.ID, false)
	if err != nil {
		t.Fatalf("切换实例状态失败: %v", err)
	}
	if toggled.Active {
		t.Fatal("停用后 Active 应为 false")
	}

	// 删除：硬删除，不保留墓碑
	if err := r.DeleteInstance(ctx, "edr", inst.ID); err != nil {
		t.Fatalf("删除实例失败: %v", err)
	}
	c, _ := r.Get("edr")
	if len(c.Descriptor().Instances) != 0 {
		t.Fatal("删除后实例列表应为空")
	}
	if p.persisted["edr"] != 4 {
		t.Fatalf("每次变更都应持久化, 实际 %d 次", p.persisted["edr"])
	}
}

func TestInstanceAdmin_Errors(t *testing.T) {
	r := New(newMockPersister())
	r.Register(newStubConnector("edr"))
	ctx := context.Background()

	if _, err := r.CreateInstance(ctx, "ghost", CreateInstanceParams{}); !errors.Is(err, port.ErrConnectorNotFound) {
		t.Fatalf("未知连接器应返回 ErrConnectorNotFound: %v", err)
	}
	if _, err := r.UpdateInstance(ctx, "edr", "nope", InstancePatch{}); !errors.Is(err, port.ErrInstanceNotFound) {
		t.Fatalf("未知实例应返回 ErrInstanceNotFound: %v", err)
	}
	if err := r.DeleteInstance(ctx, "edr", "nope"); !errors.Is(err, port.ErrInstanceNotFound) {
		t.Fatalf("删除未知实例应返回 ErrInstanceNotFound: %v", err)
	}
}

// ===============================
// 持久化装载
// ===============================

func TestLoadPersisted(t *testing.T) {
	p := newMockPersister()
	p.loadData = map[string][]domain.Instance{
		"siem":  {{ID: "s1", Name: "恢复的实例", Active: true}},
		"ghost": {{ID: "g1"}}, // 未注册的连接器应被跳过
	}
	r := New(p)
	r.Register(newStubConnector("siem"))

	if err := r.LoadPersisted(context.Background()); err != nil {
		t.Fatalf("装载持久化配置失败: %v", err)
	}
	c, _ := r.Get("siem")
	if len(c.Descriptor().Instances) != 1 || c.Descriptor().Instances[0].ID != "s1" {
		t.Fatalf("持久化实例未装载: %+v", c.Descriptor().Instances)
	}
}
