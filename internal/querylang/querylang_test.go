// file: internal/querylang/querylang_test.go

package querylang

import (
	"strings"
	"testing"

	"SentinelGate/internal/core/domain"
)

func filter(field string, op domain.FilterOperator, value any) domain.FilterSpec {
	return domain.FilterSpec{Field: field, Operator: op, Value: value}
}

// ===============================
// 单条子句生成
// ===============================

func TestGenerateClause_SQL(t *testing.T) {
	cases := []struct {
		name string
		f    domain.FilterSpec
		want string
	}{
		{"等于(字符串加引号)", filter("status", domain.OpEquals, "open"), "status = 'open'"},
		{"等于(数值裸值)", domain.FilterSpec{Field: "seats", Operator: domain.OpEquals, Value: float64(5), Type: "number"}, "seats = 5"},
		{"包含", filter("name", domain.OpContains, "acme"), "name LIKE '%acme%'"},
		{"前缀", filter("name", domain.OpStartsWith, "ac"), "name LIKE 'ac%'"},
		{"区间", domain.FilterSpec{Field: "seats", Operator: domain.OpBetween, Value: float64(1), Value2: float64(9), Type: "number"}, "seats BETWEEN 1 AND 9"},
		{"集合", filter("status", domain.OpIn, []any{"open", "closed"}), "status IN ('open', 'closed')"},
		{"判空", filter("closed_at", domain.OpIsNull, nil), "closed_at IS NULL"},
		{"单引号转义", filter("name", domain.OpEquals, "o'brien"), "name = 'o''brien'"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := GenerateClause(c.f, DialectSQL); got != c.want {
				t.Fatalf("SQL 子句不符: got %q, want %q", got, c.want)
			}
		})
	}
}

func TestGenerateClause_JQL(t *testing.T) {
	if got := GenerateClause(filter("summary", domain.OpContains, "outage"), DialectJQL); got != `summary ~ "outage"` {
		t.Fatalf("JQL contains 子句不符: %q", got)
	}
	if got := GenerateClause(filter("resolution", domain.OpIsNull, nil), DialectJQL); got != "resolution IS EMPTY" {
		t.Fatalf("JQL is_null 子句不符: %q", got)
	}
	// between 展开为两个裸比较
	f := domain.FilterSpec{Field: "created", Operator: domain.OpBetween, Value: "2026-01-01", Value2: "2026-02-01", Type: "date"}
	want := "created >= 2026-01-01 AND created <= 2026-02-01"
	if got := GenerateClause(f, DialectJQL); got != want {
		t.Fatalf("JQL between 子句不符: got %q, want %q", got, want)
	}
}

func TestGenerateClause_SPL(t *testing.T) {
	if got := GenerateClause(filter("host", domain.OpEquals, "fw01"), DialectSPL); got != `host="fw01"` {
		t.Fatalf("SPL equals 子句不符: %q", got)
	}
	if got := GenerateClause(filter("severity", domain.OpIn, []any{"high", "critical"}), DialectSPL); got != `(severity="high" OR severity="critical")` {
		t.Fatalf("SPL in 子句不符: %q", got)
	}
	if got := GenerateClause(filter("src_ip", domain.OpIsNotNull, nil), DialectSPL); got != "src_ip=*" {
		t.Fatalf("SPL is_not_null 子句不符: %q", got)
	}
}

func TestGenerateClause_ESDSL(t *testing.T) {
	got := GenerateClause(filter("status", domain.OpEquals, "active"), DialectESDSL)
	if got != `{"term":{"status":"active"}}` {
		t.Fatalf("ESDSL term 片段不符: %q", got)
	}
	got = GenerateClause(domain.FilterSpec{Field: "size", Operator: domain.OpBetween, Value: float64(1), Value2: float64(9)}, DialectESDSL)
	if !strings.Contains(got, `"gte":1`) || !strings.Contains(got, `"lte":9`) {
		t.Fatalf("ESDSL range 片段不符: %q", got)
	}
}

// 契约之外的操作符必须返回空串，而不是猜一个近似写法
func TestGenerateClause_UnsupportedReturnsEmpty(t *testing.T) {
	cases := []struct {
		dialect string
		f       domain.FilterSpec
	}{
		{DialectJQL, filter("summary", domain.OpStartsWith, "x")},
		{DialectJQL, filter("summary", domain.OpEndsWith, "x")},
		{DialectSPL, filter("host", domain.OpStartsWith, "x")},
		{DialectSPL, filter("host", domain.OpBetween, "a")},
		{DialectSPL, filter("host", domain.OpNotIn, []any{"a"})},
		{DialectESDSL, filter("status", domain.OpNotEquals, "x")},
		{DialectESDSL, filter("status", domain.OpIsNull, nil)},
	}
	for _, c := range cases {
		if got := GenerateClause(c.f, c.dialect); got != "" {
			t.Fatalf("方言 %s 不应支持操作符 %s, 却生成了 %q", c.dialect, c.f.Operator, got)
		}
	}
}

// ===============================
// 拼接规则
// ===============================

func TestAppendFilter_SQL(t *testing.T) {
	// 无 WHERE：注入
	got := AppendFilter("SELECT * FROM tickets", "status = 'open'", DialectSQL)
	if got != "SELECT * FROM tickets WHERE status = 'open'" {
		t.Fatalf("SQL WHERE 注入不符: %q", got)
	}
	// 已有 WHERE：AND 扩展
	got = AppendFilter("SELECT * FROM tickets WHERE id > 3", "status = 'open'", DialectSQL)
	if got != "SELECT * FROM tickets WHERE id > 3 AND status = 'open'" {
		t.Fatalf("SQL AND 扩展不符: %q", got)
	}
	// ORDER BY 必须保持在尾部
	got = AppendFilter("SELECT * FROM tickets ORDER BY created_at DESC", "status = 'open'", DialectSQL)
	if got != "SELECT * FROM tickets WHERE status = 'open' ORDER BY created_at DESC" {
		t.Fatalf("SQL ORDER BY 保持不符: %q", got)
	}
	// 尾部分号应被剥掉
	got = AppendFilter("SELECT * FROM tickets;", "status = 'open'", DialectSQL)
	if strings.Contains(got, ";") {
		t.Fatalf("尾部分号未剥离: %q", got)
	}
}

func TestAppendFilter_JQL(t *testing.T) {
	got := AppendFilter(`project = SEC ORDER BY created DESC`, `status = "Open"`, DialectJQL)
	want := `project = SEC AND status = "Open" ORDER BY created DESC`
	if got != want {
		t.Fatalf("JQL 拼接不符: got %q, want %q", got, want)
	}
}

func TestAppendFilter_SPL(t *testing.T) {
	got := AppendFilter(`search index=fw`, `severity="high"`, DialectSPL)
	if got != `search index=fw | search severity="high"` {
		t.Fatalf("SPL 管道拼接不符: %q", got)
	}
}

func TestAppendFilter_ESDSL(t *testing.T) {
	got := AppendFilter(`{"term":{"a":1}}`, `{"term":{"b":2}}`, DialectESDSL)
	if got != `{"term":{"a":1}}, {"term":{"b":2}}` {
		t.Fatalf("ESDSL 并列拼接不符: %q", got)
	}
}

// ===============================
// Compile：启用过滤、编译/兜底分流
// ===============================

func TestCompile_SplitsAppliedAndDeferred(t *testing.T) {
	disabled := false
	filters := []domain.FilterSpec{
		filter("status", domain.OpEquals, "Open"),
		filter("summary", domain.OpStartsWith, "SEC-"), // JQL 契约外，应转入兜底
		{Field: "priority", Operator: domain.OpEquals, Value: "P1", Enabled: &disabled},
	}

	query, applied, deferred := Compile(`project = SEC`, filters, DialectJQL)

	if len(applied) != 1 || applied[0].Field != "status" {
		t.Fatalf("applied 列表不符: %+v", applied)
	}
	if len(deferred) != 1 || deferred[0].Field != "summary" {
		t.Fatalf("deferred 列表不符: %+v", deferred)
	}
	if query != `project = SEC AND status = "Open"` {
		t.Fatalf("编译后的查询不符: %q", query)
	}
}

func TestCompile_MultipleFiltersLeftToRight(t *testing.T) {
	filters := []domain.FilterSpec{
		filter("a", domain.OpEquals, "1"),
		filter("b", domain.OpEquals, "2"),
	}
	query, applied, deferred := Compile("SELECT * FROM t", filters, DialectSQL)
	if query != "SELECT * FROM t WHERE a = '1' AND b = '2'" {
		t.Fatalf("多条件从左到右拼接不符: %q", query)
	}
	if len(applied) != 2 || len(deferred) != 0 {
		t.Fatalf("分流数量不符: applied=%d deferred=%d", len(applied), len(deferred))
	}
}

// ===============================
// Validate：只提示，不拦截
// ===============================

func TestValidate_Advisory(t *testing.T) {
	warnings := Validate(`Status = open`, DialectJQL)
	if len(warnings) == 0 {
		t.Fatal("大写字段与裸字符串值应产生提示")
	}
	for _, w := range warnings {
		if w.Code == "" || w.Message == "" {
			t.Fatalf("提示信息不完整: %+v", w)
		}
	}

	if warnings := Validate(`project = "SEC"`, DialectJQL); len(warnings) != 0 {
		t.Fatalf("规范查询不应有提示: %+v", warnings)
	}
}
