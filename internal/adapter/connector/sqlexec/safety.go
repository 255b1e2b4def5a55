// Package sqlexec file: internal/adapter/connector/sqlexec/safety.go
package sqlexec

import (
	"fmt"
	"regexp"
	"strings"

	"SentinelGate/internal/core/port"
)

// 健康检查哨兵查询：短路为连通性探测，绝不作为 SQL 执行
const (
	SentinelHealthCheck = "__health_check__"
	SentinelTest        = "test"
)

var (
	// 语句首 token（词边界匹配，created_at 这类复合标识符不会误中）
	leadingTokenRe = regexp.MustCompile(`^\s*([A-Za-z_]+)\b`)

	// 除 CREATE 外的写操作关键字
	forbiddenKeywords = map[string]bool{
		"DELETE": true, "DROP": true, "TRUNCATE": true, "UPDATE": true,
		"INSERT": true, "ALTER": true, "EXEC": true, "EXECUTE": true,
	}

	// CREATE 只有紧跟对象关键字时才构成写操作，
	// 单纯的字母组合（如列名 created_at）不在此列
	createObjectRe = regexp.MustCompile(`(?i)^CREATE\s+(TABLE|DATABASE|INDEX|VIEW|PROCEDURE|FUNCTION)\b`)
)

// CheckReadOnly 是 SQL 连接器的只读安全闸。
// 规则：整条查询必须以 SELECT 或 WITH 开头（大小写不敏感）；
// 任何语句（以分号分隔）的起始位置出现写操作关键字即拒绝。
// 关键字按独立 SQL 词匹配——朴素的子串检查会在 created_at 这类列名上误报。
func CheckReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("查询为空: %w", port.ErrUnsafeQuery)
	}

	first := leadingToken(trimmed)
	if first != "SELECT" && first != "WITH" {
		return fmt.Errorf("查询必须以 SELECT 或 WITH 开头（实际为 %s）: %w", first, port.ErrUnsafeQuery)
	}

	// 逐条语句检查：写操作关键字只可能出现在语句起始或分隔符之后
	for _, stmt := range strings.Split(trimmed, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		token := leadingToken(stmt)
		if forbiddenKeywords[token] {
			return fmt.Errorf("查询包含写操作关键字 %s: %w", token, port.ErrUnsafeQuery)
		}
		if token == "CREATE" && createObjectRe.MatchString(stmt) {
			return fmt.Errorf("查询包含对象创建语句: %w", port.ErrUnsafeQuery)
		}
	}
	return nil
}

// IsSentinel 判断是否为健康检查哨兵查询
func IsSentinel(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return q == SentinelHealthCheck || q == SentinelTest
}

func leadingToken(s string) string {
	m := leadingTokenRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
