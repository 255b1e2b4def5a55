// Package sqlexec file: internal/adapter/connector/sqlexec/sqlexec.go
// Package sqlexec 是 SQL 后端连接器。
// 实例的 BaseURL 即数据库 DSN；执行前必须通过只读安全闸。
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
	"SentinelGate/internal/querylang"
)

// 编译期断言，确保 Connector 实现了 port.Connector 接口
var _ port.Connector = (*Connector)(nil)

// Connector SQL 执行连接器。
// 每个实例对应一个惰性打开的连接池，进程退出时统一关闭。
type Connector struct {
	desc *domain.ConnectorDescriptor

	mu    sync.Mutex
	pools map[string]poolEntry
}

// poolEntry 记录建池时的 DSN，管理端改掉实例地址后旧池即作废
type poolEntry struct {
	dsn string
	db  *sql.DB
}

// New 创建 SQL 连接器
func New() *Connector {
	return &Connector{
		desc: &domain.ConnectorDescriptor{
			Name:                 "sql",
			Description:          "只读 SQL 查询执行器（通用 SQL 方言）",
			Dialect:              querylang.DialectSQL,
			SupportsServerFilter: true,
			RateLimit:            domain.RateLimitHint{RequestsPerMinute: 300, Burst: 50},
			DefaultQueries: []domain.QueryDefinition{
				{ID: "health", Method: "QUERY", Path: SentinelHealthCheck, Description: "连通性探测"},
				{ID: "client_count", Method: "QUERY", Path: "SELECT COUNT(*) as value FROM clients", Description: "客户总数"},
			},
			Instances: []domain.Instance{},
		},
		pools: make(map[string]poolEntry),
	}
}

// Descriptor 返回连接器描述符
func (c *Connector) Descriptor() *domain.ConnectorDescriptor { return c.desc }

// Type 返回连接器类型标识
func (c *Connector) Type() string { return c.desc.Name }

// instance 校验实例：先存在性，再启停状态，都在打开连接之前
func (c *Connector) instance(id string) (*domain.Instance, error) {
	inst := c.desc.FindInstance(id)
	if inst == nil {
		return nil, fmt.Errorf("连接器 '%s' 下无实例 '%s': %w", c.desc.Name, id, port.ErrInstanceNotFound)
	}
	if !inst.Active {
		return nil, fmt.Errorf("实例 '%s' (%s): %w", inst.Name, inst.ID, port.ErrInstanceInactive)
	}
	return inst, nil
}

// pool 返回实例的连接池，首次使用时打开。
// 实例的 DSN 与建池时不一致说明配置已被更新，旧池关闭后重建。
func (c *Connector) pool(inst *domain.Instance) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.pools[inst.ID]; ok {
		if entry.dsn == inst.BaseURL {
			return entry.db, nil
		}
		if err := entry.db.Close(); err != nil {
			slog.Warn("关闭过期连接池失败", "instance", inst.ID, "error", err)
		}
		delete(c.pools, inst.ID)
	}
	db, err := sql.Open("sqlite", inst.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("打开实例 '%s' 的数据库失败: %w", inst.Name, err)
	}
	db.SetMaxOpenConns(4)
	c.pools[inst.ID] = poolEntry{dsn: inst.BaseURL, db: db}
	return db, nil
}

// Execute 执行一条只读查询，返回 {rows, rowCount} 形式的结果体
func (c *Connector) Execute(ctx context.Context, req port.ExecRequest) (*port.ExecResult, error) {
	inst, err := c.instance(req.InstanceID)
	if err != nil {
		return nil, err
	}

	// 哨兵查询短路为连通性探测，不作为 SQL 执行
	if IsSentinel(req.Query) {
		if err := c.ping(ctx, inst); err != nil {
			return nil, err
		}
		return &port.ExecResult{
			Status:    http.StatusOK,
			Body:      map[string]any{"healthy": true},
			Timestamp: time.Now(),
		}, nil
	}

	if err := CheckReadOnly(req.Query); err != nil {
		return nil, err
	}

	db, err := c.pool(inst)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("实例 '%s' 查询执行失败: %w", inst.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		scanDest := make([]any, len(columns))
		scanDestPtrs := make([]any, len(columns))
		for i := range scanDest {
			scanDestPtrs[i] = &scanDest[i]
		}
		if err := rows.Scan(scanDestPtrs...); err != nil {
			return nil, fmt.Errorf("扫描行数据失败: %w", err)
		}
		rowData := make(map[string]any, len(columns))
		for i, colName := range columns {
			if bytes, ok := scanDest[i].([]byte); ok {
				rowData[colName] = string(bytes)
			} else {
				rowData[colName] = scanDest[i]
			}
		}
		results = append(results, rowData)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("迭代行数据时发生错误: %w", err)
	}

	return &port.ExecResult{
		Status: http.StatusOK,
		Body: map[string]any{
			"rows":     results,
			"rowCount": len(results),
		},
		Timestamp: time.Now(),
	}, nil
}

// HealthCheck 对实例做一次 Ping
func (c *Connector) HealthCheck(ctx context.Context, instanceID string) error {
	inst, err := c.instance(instanceID)
	if err != nil {
		return err
	}
	return c.ping(ctx, inst)
}

func (c *Connector) ping(ctx context.Context, inst *domain.Instance) error {
	db, err := c.pool(inst)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return &port.UpstreamUnreachable{Host: inst.BaseURL, Err: err}
	}
	return nil
}

// Close 关闭全部实例连接池
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for id, entry := range c.pools {
		if err := entry.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.pools, id)
	}
	return firstErr
}
