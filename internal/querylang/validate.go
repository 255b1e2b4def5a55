// Package querylang file: internal/querylang/validate.go
package querylang

import (
	"fmt"
	"regexp"
	"strings"
)

// Warning 是一条咨询性的查询检查结论
type Warning struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

var (
	upperFieldRe  = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*)\s*(=|!=|~|>|<)`)
	bareStringRe  = regexp.MustCompile(`(=|~)\s*([A-Za-z_][A-Za-z0-9_]+)(\s|$)`)
	jqlSortFields = map[string]bool{
		"created": true, "updated": true, "priority": true,
		"status": true, "key": true, "duedate": true,
	}
)

// Validate 对查询做咨询性检查，只返回告警与建议，绝不阻断执行。
// 带告警的查询照常执行。
func Validate(query, dialect string) []Warning {
	warnings := make([]Warning, 0)
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return warnings
	}

	if m := upperFieldRe.FindStringSubmatch(trimmed); m != nil {
		warnings = append(warnings, Warning{
			Code:       "field_case",
			Message:    fmt.Sprintf("字段名 '%s' 含大写字母", m[1]),
			Suggestion: "多数后端的字段名为小写，建议统一使用小写",
		})
	}

	if dialect == DialectJQL || dialect == DialectSQL {
		if m := bareStringRe.FindStringSubmatch(trimmed); m != nil {
			warnings = append(warnings, Warning{
				Code:       "unquoted_value",
				Message:    fmt.Sprintf("值 '%s' 未加引号", m[2]),
				Suggestion: "字符串值建议加引号，避免被解析为字段或关键字",
			})
		}
	}

	if dialect == DialectJQL {
		if body, suffix := splitOrderBy(trimmed); suffix != "" && body != "" {
			sortField := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(suffix), "ORDER BY")))
			sortField = strings.TrimSuffix(strings.TrimSuffix(sortField, " desc"), " asc")
			sortField = strings.TrimSpace(sortField)
			if sortField != "" && !jqlSortFields[sortField] {
				warnings = append(warnings, Warning{
					Code:       "sort_field",
					Message:    fmt.Sprintf("排序字段 '%s' 不在常见字段列表中", sortField),
					Suggestion: "请确认目标系统支持按该字段排序",
				})
			}
		}
	}

	return warnings
}
