// Package querylang file: internal/querylang/append.go
package querylang

import (
	"strings"

	"SentinelGate/internal/core/domain"
)

// AppendFilter 把一条已生成的子句拼接进现有查询文本。
// 各方言的拼接规则不同：JQL 在尾部 ORDER BY 之前 AND 追加；
// SQL 注入或扩展 WHERE 子句；SPL 以管道追加 search 阶段；
// ESDSL 片段以逗号并列，由调用方嵌入最终查询串。
func AppendFilter(query, clause, dialect string) string {
	if clause == "" {
		return query
	}
	switch dialect {
	case DialectJQL:
		return appendJQL(query, clause)
	case DialectSPL:
		return appendSPL(query, clause)
	case DialectESDSL:
		return appendESDSL(query, clause)
	default:
		return appendSQL(query, clause)
	}
}

// Compile 依次把启用的过滤条件编译并拼入查询。
// 多条过滤条件从左到右逐条追加，全部 AND 组合，因此没有优先级歧义。
// 无法编译到该方言的条件原样返回，交由调用方做查询后过滤。
func Compile(query string, filters []domain.FilterSpec, dialect string) (string, []domain.FilterSpec, []domain.FilterSpec) {
	applied := make([]domain.FilterSpec, 0, len(filters))
	deferred := make([]domain.FilterSpec, 0)
	for _, f := range filters {
		if !f.IsEnabled() {
			continue
		}
		clause := GenerateClause(f, dialect)
		if clause == "" {
			deferred = append(deferred, f)
			continue
		}
		query = AppendFilter(query, clause, dialect)
		applied = append(applied, f)
	}
	return query, applied, deferred
}

// splitOrderBy 切出查询尾部的 ORDER BY 片段（大小写不敏感），没有则 suffix 为空
func splitOrderBy(query string) (body, suffix string) {
	upper := strings.ToUpper(query)
	idx := strings.LastIndex(upper, "ORDER BY")
	if idx < 0 {
		return query, ""
	}
	return strings.TrimRight(query[:idx], " \t\n"), query[idx:]
}

func appendJQL(query, clause string) string {
	body, suffix := splitOrderBy(query)
	body = strings.TrimSpace(body)
	if body == "" {
		body = clause
	} else {
		body = body + " AND " + clause
	}
	if suffix != "" {
		return body + " " + suffix
	}
	return body
}

func appendSQL(query, clause string) string {
	body, suffix := splitOrderBy(query)
	upper := strings.ToUpper(body)
	if strings.Contains(upper, " WHERE ") || strings.HasSuffix(upper, " WHERE") {
		body = strings.TrimRight(body, " \t\n;") + " AND " + clause
	} else {
		body = strings.TrimRight(body, " \t\n;") + " WHERE " + clause
	}
	if suffix != "" {
		return body + " " + suffix
	}
	return body
}

func appendSPL(query, clause string) string {
	q := strings.TrimRight(query, " \t\n|")
	if q == "" {
		return "search " + clause
	}
	return q + " | search " + clause
}

func appendESDSL(query, clause string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return clause
	}
	return q + ", " + clause
}
