// Package querylang file: internal/querylang/clause.go
// Package querylang 将结构化过滤条件编译为各连接器方言的原生查询子句。
// 方言操作符映射即全部契约，未列举的组合一律不编译（交由查询后过滤兜底）。
package querylang

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"SentinelGate/internal/core/domain"
)

// 支持的方言标识
const (
	DialectJQL   = "jql"   // 工单系统 (JQL 风格)
	DialectSPL   = "spl"   // 日志检索 (SPL 风格)
	DialectESDSL = "esdsl" // 文档检索 (Elasticsearch DSL 风格)
	DialectSQL   = "sql"   // 通用 SQL（默认/回退方言）
)

// GenerateClause 为单条过滤条件生成方言原生片段。
// 返回空字符串表示该方言不支持此操作符，调用方应将其转入查询后过滤。
func GenerateClause(f domain.FilterSpec, dialect string) string {
	switch dialect {
	case DialectJQL:
		return jqlClause(f)
	case DialectSPL:
		return splClause(f)
	case DialectESDSL:
		return esdslClause(f)
	default:
		return sqlClause(f)
	}
}

// valueString 把任意 JSON 解码值转成文本形式
func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// isBareType 声明类型为 number/boolean 时，SQL 与 JQL 的值不加引号
func isBareType(declared string) bool {
	return declared == "number" || declared == "boolean"
}

// valueList 把 in/not_in 的值拆成切片（JSON 数组或逗号分隔字符串均可）
func valueList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, valueString(e))
		}
		return out
	case []string:
		return t
	case string:
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		s := valueString(v)
		if s == "" {
			return nil
		}
		return []string{s}
	}
}

/*
============================================================
  通用 SQL 方言（默认）
============================================================
*/

func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sqlValue(f domain.FilterSpec, v any) string {
	if isBareType(f.Type) {
		return valueString(v)
	}
	return sqlQuote(valueString(v))
}

func sqlClause(f domain.FilterSpec) string {
	field := f.Field
	switch f.Operator {
	case domain.OpEquals:
		return fmt.Sprintf("%s = %s", field, sqlValue(f, f.Value))
	case domain.OpNotEquals:
		return fmt.Sprintf("%s != %s", field, sqlValue(f, f.Value))
	case domain.OpContains:
		return fmt.Sprintf("%s LIKE %s", field, sqlQuote("%"+valueString(f.Value)+"%"))
	case domain.OpNotContains:
		return fmt.Sprintf("%s NOT LIKE %s", field, sqlQuote("%"+valueString(f.Value)+"%"))
	case domain.OpStartsWith:
		return fmt.Sprintf("%s LIKE %s", field, sqlQuote(valueString(f.Value)+"%"))
	case domain.OpEndsWith:
		return fmt.Sprintf("%s LIKE %s", field, sqlQuote("%"+valueString(f.Value)))
	case domain.OpGreaterThan:
		return fmt.Sprintf("%s > %s", field, sqlValue(f, f.Value))
	case domain.OpGreaterEqual:
		return fmt.Sprintf("%s >= %s", field, sqlValue(f, f.Value))
	case domain.OpLessThan:
		return fmt.Sprintf("%s < %s", field, sqlValue(f, f.Value))
	case domain.OpLessEqual:
		return fmt.Sprintf("%s <= %s", field, sqlValue(f, f.Value))
	case domain.OpBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", field, sqlValue(f, f.Value), sqlValue(f, f.Value2))
	case domain.OpIn, domain.OpNotIn:
		vals := valueList(f.Value)
		if len(vals) == 0 {
			return ""
		}
		quoted := make([]string, len(vals))
		for i, v := range vals {
			if isBareType(f.Type) {
				quoted[i] = v
			} else {
				quoted[i] = sqlQuote(v)
			}
		}
		op := "IN"
		if f.Operator == domain.OpNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", field, op, strings.Join(quoted, ", "))
	case domain.OpIsNull:
		return fmt.Sprintf("%s IS NULL", field)
	case domain.OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", field)
	default:
		return ""
	}
}

/*
============================================================
  工单系统方言 (JQL 风格)
============================================================
*/

func jqlQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func jqlValue(f domain.FilterSpec, v any) string {
	// 数值/日期字段使用裸比较值，其余加引号
	if isBareType(f.Type) || f.Type == "date" {
		return valueString(v)
	}
	return jqlQuote(valueString(v))
}

func jqlClause(f domain.FilterSpec) string {
	field := f.Field
	switch f.Operator {
	case domain.OpEquals:
		return fmt.Sprintf("%s = %s", field, jqlValue(f, f.Value))
	case domain.OpNotEquals:
		return fmt.Sprintf("%s != %s", field, jqlValue(f, f.Value))
	case domain.OpContains:
		return fmt.Sprintf("%s ~ %s", field, jqlQuote(valueString(f.Value)))
	case domain.OpNotContains:
		return fmt.Sprintf("%s !~ %s", field, jqlQuote(valueString(f.Value)))
	case domain.OpGreaterThan:
		return fmt.Sprintf("%s > %s", field, jqlValue(f, f.Value))
	case domain.OpGreaterEqual:
		return fmt.Sprintf("%s >= %s", field, jqlValue(f, f.Value))
	case domain.OpLessThan:
		return fmt.Sprintf("%s < %s", field, jqlValue(f, f.Value))
	case domain.OpLessEqual:
		return fmt.Sprintf("%s <= %s", field, jqlValue(f, f.Value))
	case domain.OpBetween:
		// 组合两个已列举的裸比较，不算引入新操作符
		return fmt.Sprintf("%s >= %s AND %s <= %s", field, jqlValue(f, f.Value), field, jqlValue(f, f.Value2))
	case domain.OpIn, domain.OpNotIn:
		vals := valueList(f.Value)
		if len(vals) == 0 {
			return ""
		}
		quoted := make([]string, len(vals))
		for i, v := range vals {
			quoted[i] = jqlQuote(v)
		}
		op := "IN"
		if f.Operator == domain.OpNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", field, op, strings.Join(quoted, ", "))
	case domain.OpIsNull:
		return fmt.Sprintf("%s IS EMPTY", field)
	case domain.OpIsNotNull:
		return fmt.Sprintf("%s IS NOT EMPTY", field)
	default:
		// starts_with/ends_with 不在 JQL 契约内
		return ""
	}
}

/*
============================================================
  日志检索方言 (SPL 风格)
============================================================
*/

func splQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func splClause(f domain.FilterSpec) string {
	field := f.Field
	switch f.Operator {
	case domain.OpEquals:
		return fmt.Sprintf("%s=%s", field, splQuote(valueString(f.Value)))
	case domain.OpNotEquals:
		return fmt.Sprintf("NOT %s=%s", field, splQuote(valueString(f.Value)))
	case domain.OpContains:
		return fmt.Sprintf("%s=%s", field, splQuote("*"+valueString(f.Value)+"*"))
	case domain.OpNotContains:
		return fmt.Sprintf("NOT %s=%s", field, splQuote("*"+valueString(f.Value)+"*"))
	case domain.OpGreaterThan:
		return fmt.Sprintf("%s>%s", field, valueString(f.Value))
	case domain.OpGreaterEqual:
		return fmt.Sprintf("%s>=%s", field, valueString(f.Value))
	case domain.OpLessThan:
		return fmt.Sprintf("%s<%s", field, valueString(f.Value))
	case domain.OpLessEqual:
		return fmt.Sprintf("%s<=%s", field, valueString(f.Value))
	case domain.OpIn:
		vals := valueList(f.Value)
		if len(vals) == 0 {
			return ""
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = fmt.Sprintf("%s=%s", field, splQuote(v))
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	case domain.OpIsNull:
		return fmt.Sprintf("NOT %s=*", field)
	case domain.OpIsNotNull:
		return fmt.Sprintf("%s=*", field)
	default:
		return ""
	}
}

/*
============================================================
  文档检索方言 (Elasticsearch DSL 风格)
  片段以可嵌入查询串的 JSON 文本形式给出
============================================================
*/

func esdslJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func esdslClause(f domain.FilterSpec) string {
	field := f.Field
	switch f.Operator {
	case domain.OpEquals:
		return esdslJSON(map[string]any{"term": map[string]any{field: f.Value}})
	case domain.OpContains:
		return esdslJSON(map[string]any{"wildcard": map[string]any{field: "*" + valueString(f.Value) + "*"}})
	case domain.OpStartsWith:
		return esdslJSON(map[string]any{"wildcard": map[string]any{field: valueString(f.Value) + "*"}})
	case domain.OpEndsWith:
		return esdslJSON(map[string]any{"wildcard": map[string]any{field: "*" + valueString(f.Value)}})
	case domain.OpGreaterThan:
		return esdslJSON(map[string]any{"range": map[string]any{field: map[string]any{"gt": f.Value}}})
	case domain.OpGreaterEqual:
		return esdslJSON(map[string]any{"range": map[string]any{field: map[string]any{"gte": f.Value}}})
	case domain.OpLessThan:
		return esdslJSON(map[string]any{"range": map[string]any{field: map[string]any{"lt": f.Value}}})
	case domain.OpLessEqual:
		return esdslJSON(map[string]any{"range": map[string]any{field: map[string]any{"lte": f.Value}}})
	case domain.OpBetween:
		return esdslJSON(map[string]any{"range": map[string]any{field: map[string]any{"gte": f.Value, "lte": f.Value2}}})
	default:
		// 该方言契约仅覆盖 term/wildcard/range 三类片段
		return ""
	}
}
