// Package port file: internal/core/port/errors.go
package port

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// 标准错误分类。调度器与 HTTP 层通过 errors.Is/As 统一映射。
var (
	ErrConnectorNotFound = errors.New("指定的连接器未注册")
	ErrInstanceNotFound  = errors.New("指定的实例不存在")
	ErrInstanceInactive  = errors.New("实例已被停用")
	ErrUnsafeQuery       = errors.New("查询未通过只读安全检查，已拒绝执行")
	ErrLookupFailed      = errors.New("链式查询的前置查找失败")
	ErrCacheMiss         = errors.New("缓存未命中") // 仅内部信号，不对外暴露
)

// bodyPreviewLimit 上游错误正文在错误消息中的最大保留长度。
// 绝不把无上限的上游负载带进错误信息。
const bodyPreviewLimit = 200

// UpstreamError 表示上游返回了非 2xx 状态
type UpstreamError struct {
	Status      int
	BodyPreview string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("上游返回错误状态 %d: %s", e.Status, e.BodyPreview)
}

// NewUpstreamError 构造 UpstreamError，正文超长时截断。
// 截断点落在多字节字符中间时回退到完整字符边界。
func NewUpstreamError(status int, body string) *UpstreamError {
	if len(body) > bodyPreviewLimit {
		cut := bodyPreviewLimit
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return &UpstreamError{Status: status, BodyPreview: body}
}

// IsAuthFailure 上游 401，对应"认证失败，请检查凭据"
func (e *UpstreamError) IsAuthFailure() bool { return e.Status == 401 }

// IsAuthDenied 上游 403，对应"权限不足"
func (e *UpstreamError) IsAuthDenied() bool { return e.Status == 403 }

// UpstreamTimeout 表示上游调用超出了请求级超时
type UpstreamTimeout struct {
	Host string
}

func (e *UpstreamTimeout) Error() string {
	return fmt.Sprintf("请求 %s 超时，上游服务响应过慢", e.Host)
}

// UpstreamUnreachable 表示连接被拒绝或 DNS 解析失败。
// 与超时区分开，便于向用户给出"服务可能已停机"的提示。
type UpstreamUnreachable struct {
	Host string
	Err  error
}

func (e *UpstreamUnreachable) Error() string {
	return fmt.Sprintf("无法连接到 %s，目标服务可能已停机", e.Host)
}

func (e *UpstreamUnreachable) Unwrap() error { return e.Err }

// ErrorKind 返回面向程序化调用方的错误分类名
func ErrorKind(err error) string {
	var ue *UpstreamError
	var ut *UpstreamTimeout
	var un *UpstreamUnreachable
	switch {
	case errors.Is(err, ErrConnectorNotFound):
		return "ConnectorNotFound"
	case errors.Is(err, ErrInstanceNotFound):
		return "InstanceNotFound"
	case errors.Is(err, ErrInstanceInactive):
		return "InstanceInactive"
	case errors.Is(err, ErrUnsafeQuery):
		return "UnsafeQueryRejected"
	case errors.Is(err, ErrLookupFailed):
		return "LookupFailed"
	case errors.As(err, &ue):
		if ue.IsAuthFailure() {
			return "AuthenticationFailed"
		}
		if ue.IsAuthDenied() {
			return "AuthorizationDenied"
		}
		return "UpstreamError"
	case errors.As(err, &ut):
		return "UpstreamTimeout"
	case errors.As(err, &un):
		return "UpstreamUnreachable"
	default:
		return "InternalError"
	}
}

// UserMessage 把错误翻译成适合直接展示的提示文案，原始错误类保留给程序化调用方
func UserMessage(err error) string {
	var ue *UpstreamError
	var ut *UpstreamTimeout
	var un *UpstreamUnreachable
	switch {
	case errors.As(err, &ue):
		if ue.IsAuthFailure() {
			return "认证失败，请检查该实例配置的凭据"
		}
		if ue.IsAuthDenied() {
			return "上游拒绝了此操作，当前凭据权限不足"
		}
		return ue.Error()
	case errors.As(err, &ut):
		return ut.Error()
	case errors.As(err, &un):
		return un.Error()
	default:
		return err.Error()
	}
}
