// Package observe file: internal/observe/debug.go
package observe

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"
)

// EnablePprof 在独立监听地址上开启 pprof 调试端点。
// 调试面走自己的 mux 与端口，与网关的对外业务端口隔离。
func EnablePprof(addr string) {
	if addr == "" {
		slog.Info("未配置 pprof 监听地址，调试端点保持关闭")
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("pprof 调试端点已开启", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("pprof 调试端点启动失败", "error", err)
		}
	}()
}
