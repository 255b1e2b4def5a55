// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"SentinelGate/internal/core/port"
)

// failureBody 是统一的失败信封
type failureBody struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ErrorKind string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorHandlingMiddleware 集中把错误分类映射为 HTTP 状态码与失败信封。
// 处理器通过 c.Error(err) 附加错误，这里只处理最后一个（通常是根因）。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "请求参数验证失败",
				"error":   "ValidationFailed",
				"details": ve.Error(),
			})
			return
		}

		c.JSON(statusFor(err), failureBody{
			Success:   false,
			Message:   port.UserMessage(err),
			ErrorKind: port.ErrorKind(err),
			Timestamp: time.Now(),
		})
	}
}

// statusFor 错误分类到状态码的映射。
// 注册表/实例类错误与安全闸拒绝属于 4xx；上游故障映射到 502/504。
func statusFor(err error) int {
	var ue *port.UpstreamError
	var ut *port.UpstreamTimeout
	var un *port.UpstreamUnreachable
	switch {
	case errors.Is(err, port.ErrConnectorNotFound), errors.Is(err, port.ErrInstanceNotFound):
		return http.StatusNotFound
	case errors.Is(err, port.ErrInstanceInactive):
		return http.StatusConflict
	case errors.Is(err, port.ErrUnsafeQuery):
		return http.StatusBadRequest
	case errors.As(err, &ue):
		if ue.IsAuthFailure() {
			return http.StatusUnauthorized
		}
		if ue.IsAuthDenied() {
			return http.StatusForbidden
		}
		return http.StatusBadGateway
	case errors.As(err, &ut):
		return http.StatusGatewayTimeout
	case errors.As(err, &un):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
