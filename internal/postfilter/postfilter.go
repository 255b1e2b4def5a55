// Package postfilter file: internal/postfilter/postfilter.go
// Package postfilter 在上游不支持服务端过滤时，把同一套过滤语义
// 重新施加到已取回的内存响应上。
package postfilter

import (
	"fmt"
	"strconv"
	"strings"

	"SentinelGate/internal/core/domain"
)

// envelopeKeys 是常见分页信封中承载记录数组的键，按顺序探测
var envelopeKeys = []string{"items", "results", "data", "issues", "records", "hits"}

// countKeys 是信封中声明总数的键，过滤后改写为过滤后的长度
var countKeys = []string{"total", "count", "totalCount", "total_count"}

// Apply 对响应体应用过滤条件。
// 透明处理三类形状：裸数组、已知键下挂数组的分页信封、其他（原样返回）。
// 返回过滤后的响应体与记录数（无法识别形状时记录数为 -1）。
func Apply(body any, filters []domain.FilterSpec) (any, int) {
	if len(filters) == 0 {
		return body, recordCount(body)
	}

	switch shaped := body.(type) {
	case []any:
		filtered := filterRecords(shaped, filters)
		return filtered, len(filtered)
	case map[string]any:
		for _, key := range envelopeKeys {
			arr, ok := shaped[key].([]any)
			if !ok {
				continue
			}
			filtered := filterRecords(arr, filters)
			out := make(map[string]any, len(shaped))
			for k, v := range shaped {
				out[k] = v
			}
			out[key] = filtered
			for _, ck := range countKeys {
				if _, exists := out[ck]; exists {
					out[ck] = len(filtered)
				}
			}
			return out, len(filtered)
		}
		return body, -1
	default:
		return body, -1
	}
}

// Records 从响应体中取出记录数组（裸数组或已知信封键下的数组）。
// 识别不了形状时返回 (nil, false)。
func Records(body any) ([]any, bool) {
	switch shaped := body.(type) {
	case []any:
		return shaped, true
	case map[string]any:
		for _, key := range envelopeKeys {
			if arr, ok := shaped[key].([]any); ok {
				return arr, true
			}
		}
	}
	return nil, false
}

// recordCount 在不过滤的情况下测算响应的记录数，识别不了时返回 -1
func recordCount(body any) int {
	switch shaped := body.(type) {
	case []any:
		return len(shaped)
	case map[string]any:
		for _, key := range envelopeKeys {
			if arr, ok := shaped[key].([]any); ok {
				return len(arr)
			}
		}
	}
	return -1
}

func filterRecords(records []any, filters []domain.FilterSpec) []any {
	out := make([]any, 0, len(records))
	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		if MatchesAll(m, filters) {
			out = append(out, rec)
		}
	}
	return out
}

// MatchesAll 判断一条记录是否满足全部启用的过滤条件（恒为 AND 组合）
func MatchesAll(record map[string]any, filters []domain.FilterSpec) bool {
	for _, f := range filters {
		if !f.IsEnabled() {
			continue
		}
		if !matches(record, f) {
			return false
		}
	}
	return true
}

// FieldValue 按点路径从记录中取字段值，路径中断时返回 (nil, false)
func FieldValue(record map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = record
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// isAbsent 缺失、null 与空字符串统一视为"无值"
func isAbsent(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

func matches(record map[string]any, f domain.FilterSpec) bool {
	v, present := FieldValue(record, f.Field)

	switch f.Operator {
	case domain.OpIsNull:
		return isAbsent(v, present)
	case domain.OpIsNotNull:
		return !isAbsent(v, present)
	}

	if !present {
		return false
	}

	fieldStr := strings.ToLower(toString(v))
	wantStr := strings.ToLower(toString(f.Value))

	switch f.Operator {
	case domain.OpEquals:
		return fieldStr == wantStr
	case domain.OpNotEquals:
		return fieldStr != wantStr
	case domain.OpContains:
		return strings.Contains(fieldStr, wantStr)
	case domain.OpNotContains:
		return !strings.Contains(fieldStr, wantStr)
	case domain.OpStartsWith:
		return strings.HasPrefix(fieldStr, wantStr)
	case domain.OpEndsWith:
		return strings.HasSuffix(fieldStr, wantStr)
	case domain.OpGreaterThan, domain.OpGreaterEqual, domain.OpLessThan, domain.OpLessEqual:
		return compareNumeric(v, f.Value, f.Operator)
	case domain.OpBetween:
		return compareNumeric(v, f.Value, domain.OpGreaterEqual) &&
			compareNumeric(v, f.Value2, domain.OpLessEqual)
	case domain.OpIn:
		return inSet(fieldStr, f.Value)
	case domain.OpNotIn:
		return !inSet(fieldStr, f.Value)
	default:
		return false
	}
}

func inSet(fieldStr string, set any) bool {
	switch t := set.(type) {
	case []any:
		for _, e := range t {
			if strings.ToLower(toString(e)) == fieldStr {
				return true
			}
		}
	case string:
		for _, p := range strings.Split(t, ",") {
			if strings.ToLower(strings.TrimSpace(p)) == fieldStr {
				return true
			}
		}
	}
	return false
}

// compareNumeric 比较操作优先按数值比较，双方都不可数值化时退回字符串比较
func compareNumeric(a, b any, op domain.FilterOperator) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch op {
		case domain.OpGreaterThan:
			return fa > fb
		case domain.OpGreaterEqual:
			return fa >= fb
		case domain.OpLessThan:
			return fa < fb
		case domain.OpLessEqual:
			return fa <= fb
		}
		return false
	}
	sa, sb := toString(a), toString(b)
	switch op {
	case domain.OpGreaterThan:
		return sa > sb
	case domain.OpGreaterEqual:
		return sa >= sb
	case domain.OpLessThan:
		return sa < sb
	case domain.OpLessEqual:
		return sa <= sb
	}
	return false
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
