// Package registry file: internal/registry/watcher.go
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher 监视实例配置存储文件，外部写入后热重载实例列表。
// 事件做 500ms 去抖：配置库一次提交可能触发多个写事件。
func (r *Registry) StartWatcher(ctx context.Context, storePath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建 fsnotify watcher 失败: %w", err)
	}

	// 监视目录而非文件本身：sqlite 的写入可能经由临时文件替换
	dir := filepath.Dir(filepath.Clean(storePath))
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("添加配置目录 '%s' 到监视器失败: %w", dir, err)
	}

	target := filepath.Clean(storePath)

	go func() {
		defer watcher.Close()
		slog.Info("实例配置文件监视 goroutine 已启动", "path", target)

		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					slog.Warn("配置文件监视器事件通道已关闭")
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					slog.Info("检测到实例配置变更，正在重载", "path", target)
					if err := r.LoadPersisted(context.Background()); err != nil {
						slog.Error("热重载实例配置失败", "error", err)
					}
				})
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					slog.Warn("配置文件监视器错误通道已关闭")
					return
				}
				slog.Error("配置文件监视器报告错误", "error", watchErr)
			}
		}
	}()

	return nil
}
