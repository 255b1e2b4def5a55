// Package resolver file: internal/resolver/dbreader.go
package resolver

import (
	"context"
	"database/sql"
	"fmt"

	"SentinelGate/internal/core/port"
)

// 编译期断言，确保 SQLReader 实现了 port.ContextReader 接口
var _ port.ContextReader = (*SQLReader)(nil)

// SQLReader 基于业务库连接实现窄读。
// 表名/列名均来自解析器的允许列表，此处仍统一加引号。
type SQLReader struct {
	db *sql.DB
}

// NewSQLReader 创建业务库读取器
func NewSQLReader(db *sql.DB) *SQLReader {
	return &SQLReader{db: db}
}

// ReadColumn 按主键读取单列单行
func (r *SQLReader) ReadColumn(ctx context.Context, table, column, keyColumn, keyValue string) (string, error) {
	query := fmt.Sprintf(`SELECT %q FROM %q WHERE %q = ? LIMIT 1`, column, table, keyColumn)
	var value sql.NullString
	if err := r.db.QueryRowContext(ctx, query, keyValue).Scan(&value); err != nil {
		return "", fmt.Errorf("读取 %s.%s 失败: %w", table, column, err)
	}
	return value.String, nil
}

// ReadLatestColumn 无直接键时，按自然排序列取最新一行
func (r *SQLReader) ReadLatestColumn(ctx context.Context, table, column string) (string, error) {
	rule, ok := allowedLookups[table]
	if !ok || rule.orderColumn == "" {
		return "", fmt.Errorf("表 '%s' 不支持最新记录读取", table)
	}
	query := fmt.Sprintf(`SELECT %q FROM %q ORDER BY %q DESC LIMIT 1`, column, table, rule.orderColumn)
	var value sql.NullString
	if err := r.db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return "", fmt.Errorf("读取 %s.%s 最新记录失败: %w", table, column, err)
	}
	return value.String, nil
}
