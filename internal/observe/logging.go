// Package observe file: internal/observe/logging.go
// Package observe 集中网关的可观测性设施：结构化日志、Prometheus 指标与 pprof。
package observe

import (
	"log/slog"
	"os"
	"strings"
)

// serviceName 随每条日志输出，集中式日志平台按它过滤本网关
const serviceName = "sentinelgate"

// InitLogger 初始化全局结构化日志记录器。
// 全部日志走 JSON 格式、携带代码源位置与 service 标识；
// 在 main 的早期调用，此前的输出只能走标准 log。
func InitLogger(levelStr string) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parseLevel(levelStr),
		AddSource: true,
	})
	slog.SetDefault(slog.New(handler).With("service", serviceName))
}

// parseLevel 解析配置中的日志级别，大小写不敏感；
// 无法识别的值回退 info，绝不因配置笔误拒绝启动
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
