// Package dispatch file: internal/dispatch/chained.go
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/core/port"
	"SentinelGate/internal/postfilter"
	"SentinelGate/internal/resolver"
)

// runChainedLookup 执行链式查询的前置查找并改写主查询体。
// 查找失败绝不中断主查询：记录日志后，主查询携带原始目标字段照常执行。
func (d *Dispatcher) runChainedLookup(ctx context.Context, conn port.Connector, req domain.QueryRequest,
	query string, options map[string]any, qctx *domain.QueryContext) (string, map[string]any) {

	spec := req.ChainedQuery

	value, err := d.lookupValue(ctx, conn, req, spec, qctx)
	if err != nil {
		slog.Warn("链式查询前置查找失败，主查询按原始模板执行",
			"connector", req.Connector, "instance", req.Instance, "error", err)
		return query, options
	}

	// 改写目标：优先改写 options 里的请求体，其次是本身为 JSON 对象的查询文本
	if body := optionString(options, "body"); body != "" {
		rewritten, err := rewriteTarget(body, spec.TargetField, value)
		if err != nil {
			slog.Warn("链式查询改写请求体失败", "target", spec.TargetField, "error", err)
			return query, options
		}
		out := make(map[string]any, len(options))
		for k, v := range options {
			out[k] = v
		}
		out["body"] = rewritten
		return query, out
	}

	if strings.HasPrefix(strings.TrimSpace(query), "{") {
		rewritten, err := rewriteTarget(query, spec.TargetField, value)
		if err != nil {
			slog.Warn("链式查询改写查询体失败", "target", spec.TargetField, "error", err)
			return query, options
		}
		return rewritten, options
	}

	slog.Warn("链式查询无可改写的 JSON 主体，跳过", "target", spec.TargetField)
	return query, options
}

// lookupValue 执行前置查找并抽取目标值
func (d *Dispatcher) lookupValue(ctx context.Context, conn port.Connector, req domain.QueryRequest,
	spec *domain.ChainedQuerySpec, qctx *domain.QueryContext) (any, error) {

	resolved := d.resolver.ResolveAll(ctx, spec.LookupParameters, qctx)
	lookupQuery := resolver.Substitute(spec.LookupQuery, resolved)

	lookupCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	result, err := conn.Execute(lookupCtx, port.ExecRequest{
		Query:      lookupQuery,
		Method:     spec.LookupMethod,
		InstanceID: req.Instance,
	})
	if err != nil {
		return nil, err
	}

	records, ok := postfilter.Records(result.Body)
	if !ok {
		return nil, port.ErrLookupFailed
	}

	// 自然键与上下文简称匹配的第一条记录胜出
	matchWant := ""
	if qctx != nil {
		matchWant = strings.ToLower(qctx.ClientShortName)
	}
	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		got, present := postfilter.FieldValue(m, spec.MatchField)
		if !present {
			continue
		}
		if strings.ToLower(strings.TrimSpace(toText(got))) != matchWant {
			continue
		}
		value, present := postfilter.FieldValue(m, spec.LookupField)
		if !present {
			return nil, port.ErrLookupFailed
		}
		return value, nil
	}
	return nil, port.ErrLookupFailed
}

// rewriteTarget 按点路径把查到的值写入 JSON 文本。
// 目标位置原值为数组时，整个数组被替换为只含查到值的单元素数组——
// 这是与既有存量查询保持线上兼容所必须保留的行为。
func rewriteTarget(jsonText, targetPath string, value any) (string, error) {
	var body map[string]any
	if err := json.Unmarshal([]byte(jsonText), &body); err != nil {
		return "", err
	}

	segments := strings.Split(targetPath, ".")
	cur := body
	for i, seg := range segments {
		if i == len(segments)-1 {
			if _, isArray := cur[seg].([]any); isArray {
				cur[seg] = []any{value}
			} else {
				cur[seg] = value
			}
			break
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}

	out, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, _ := json.Marshal(t)
		return strings.Trim(string(b), `"`)
	}
}
