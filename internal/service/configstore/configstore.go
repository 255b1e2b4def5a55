// Package configstore file: internal/service/configstore/configstore.go
// Package configstore 把连接器实例配置持久化到系统 sqlite 库，
// 每个连接器一行 JSON，进程重启后由注册表装载。
package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
)

// 编译期断言，确保 Store 实现了 port.ConfigPersister 接口
var _ port.ConfigPersister = (*Store)(nil)

// Store 基于系统库的实例配置存储
type Store struct {
	db *sql.DB
}

// New 创建存储并确保表结构存在
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("configstore 初始化失败: db 实例不能为 nil")
	}
	const schema = `CREATE TABLE IF NOT EXISTS connector_instances (
        connector_name TEXT PRIMARY KEY,
        config_json    TEXT NOT NULL,
        updated_at     TIMESTAMP NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("初始化 connector_instances 表失败: %w", err)
	}
	return &Store{db: db}, nil
}

// PersistConnectorConfig 以 upsert 方式落盘单个连接器的实例列表
func (s *Store) PersistConnectorConfig(ctx context.Context, connectorName string, descriptor *domain.ConnectorDescriptor) error {
	blob, err := json.Marshal(descriptor.Instances)
	if err != nil {
		return fmt.Errorf("序列化连接器 '%s' 实例列表失败: %w", connectorName, err)
	}
	const upsert = `INSERT INTO connector_instances (connector_name, config_json, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(connector_name) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at;`
	if _, err := s.db.ExecContext(ctx, upsert, connectorName, string(blob), time.Now().UTC()); err != nil {
		return fmt.Errorf("写入连接器 '%s' 配置失败: %w", connectorName, err)
	}
	return nil
}

// LoadConnectorInstances 读出全部连接器的实例列表
func (s *Store) LoadConnectorInstances(ctx context.Context) (map[string][]domain.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT connector_name, config_json FROM connector_instances`)
	if err != nil {
		return nil, fmt.Errorf("读取连接器配置失败: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Instance)
	for rows.Next() {
		var name, blob string
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, err
		}
		var instances []domain.Instance
		if err := json.Unmarshal([]byte(blob), &instances); err != nil {
			return nil, fmt.Errorf("解析连接器 '%s' 配置失败: %w", name, err)
		}
		if instances == nil {
			instances = []domain.Instance{}
		}
		out[name] = instances
	}
	return out, rows.Err()
}
