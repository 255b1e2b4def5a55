// file: cmd/gateway/main.go

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"SentinelGate/internal/adapter/connector/docsearch"
	"SentinelGate/internal/adapter/connector/edr"
	"SentinelGate/internal/adapter/connector/rest"
	"SentinelGate/internal/adapter/connector/restclient"
	"SentinelGate/internal/adapter/connector/siem"
	"SentinelGate/internal/adapter/connector/sqlexec"
	"SentinelGate/internal/adapter/connector/ticketing"
	"SentinelGate/internal/cache"
	"SentinelGate/internal/dispatch"
	"SentinelGate/internal/health"
	"SentinelGate/internal/observe"
	"SentinelGate/internal/registry"
	"SentinelGate/internal/resolver"
	"SentinelGate/internal/service/configstore"
	"SentinelGate/internal/transport/http/router"

	_ "modernc.org/sqlite"
)

const version = "v1.2.0"

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	EnablePprof bool   `mapstructure:"enable_pprof"`
	PprofAddr   string `mapstructure:"pprof_addr"`
}

type UpstreamConfig struct {
	TimeoutSeconds     int `mapstructure:"timeout_seconds"`
	HealthProbeSeconds int `mapstructure:"health_probe_seconds"`
}

type CacheConfig struct {
	ConnectionTTLMinutes int `mapstructure:"connection_ttl_minutes"`
	ResultTTLMinutes     int `mapstructure:"result_ttl_minutes"`
	SweepMinutes         int `mapstructure:"sweep_minutes"`
}

type StorageConfig struct {
	SystemDB   string `mapstructure:"system_db"`
	BusinessDB string `mapstructure:"business_db"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

func main() {
	// 在日志系统完全初始化前，使用标准 log
	log.Printf("SentinelGate Query Gateway %s 正在启动...", version)

	exePath, err := os.Executable()
	if err != nil {
		log.Fatalf("CRITICAL: 无法获取可执行文件路径: %v", err)
	}
	rootDir := filepath.Dir(filepath.Dir(exePath))

	configFilePath := filepath.Join(rootDir, "configs", "config.yaml")
	viper.SetConfigFile(configFilePath)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("CRITICAL: 读取配置文件 '%s' 失败: %v", configFilePath, err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("CRITICAL: 解析配置到结构体失败: %v", err)
	}
	applyDefaults(&config)

	observe.InitLogger(config.Server.LogLevel)
	slog.Info("SentinelGate Query Gateway starting up", "version", version)
	slog.Info("检测到项目根目录", "path", rootDir)
	slog.Info("配置加载并解析成功", "path", configFilePath)

	instanceDir := filepath.Join(rootDir, "instance")
	if _, err := os.Stat(instanceDir); os.IsNotExist(err) {
		_ = os.MkdirAll(instanceDir, 0755)
	}

	// --- 存储层 ---
	systemDBPath := filepath.Join(instanceDir, config.Storage.SystemDB)
	sysDB, err := openSqlite(systemDBPath)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化系统数据库失败: %v", err)
	}
	defer func() {
		slog.Info("正在关闭系统数据库连接...")
		if err := sysDB.Close(); err != nil {
			slog.Error("关闭系统数据库时发生错误", "error", err)
		}
	}()

	bizDBPath := filepath.Join(instanceDir, config.Storage.BusinessDB)
	bizDB, err := openSqlite(bizDBPath)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化业务数据库失败: %v", err)
	}
	defer func() {
		if err := bizDB.Close(); err != nil {
			slog.Error("关闭业务数据库时发生错误", "error", err)
		}
	}()

	store, err := configstore.New(sysDB)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化实例配置存储失败: %v", err)
	}
	slog.Info("存储层: 实例配置存储初始化完成")

	// --- 连接器注册 ---
	upstreamTimeout := time.Duration(config.Upstream.TimeoutSeconds) * time.Second
	httpClient := restclient.New(upstreamTimeout)

	sqlConn := sqlexec.New()
	defer sqlConn.Close()

	reg := registry.New(store)
	reg.Register(sqlConn)
	reg.Register(rest.New(httpClient))
	reg.Register(ticketing.New(httpClient))
	reg.Register(siem.New(httpClient))
	reg.Register(docsearch.New(httpClient))
	reg.Register(edr.New(httpClient))
	slog.Info("注册表: 连接器注册完成", "count", len(reg.ListAll()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := reg.LoadPersisted(ctx); err != nil {
		slog.Error("装载持久化实例配置失败，以空实例列表继续", "error", err)
	}
	if err := reg.StartWatcher(ctx, systemDBPath); err != nil {
		slog.Warn("实例配置热重载监视启动失败", "error", err)
	}

	// --- 查询引擎 ---
	responseCache := cache.New(
		time.Duration(config.Cache.ConnectionTTLMinutes)*time.Minute,
		time.Duration(config.Cache.ResultTTLMinutes)*time.Minute,
		time.Duration(config.Cache.SweepMinutes)*time.Minute,
	)
	paramResolver := resolver.New(resolver.NewSQLReader(bizDB))
	dispatcher := dispatch.New(reg, paramResolver, responseCache, upstreamTimeout)
	checker := health.New(reg, responseCache, time.Duration(config.Upstream.HealthProbeSeconds)*time.Second)
	slog.Info("服务层: 查询调度器初始化完成", "upstream_timeout", upstreamTimeout)

	httpRouter := router.New(router.Dependencies{
		Registry:   reg,
		Dispatcher: dispatcher,
		Cache:      responseCache,
		Health:     checker,
		Version:    version,
	})
	slog.Info("传输层: HTTP 路由器创建完成。")

	addr := fmt.Sprintf(":%d", config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: httpRouter,
	}

	go func() {
		slog.Info("SentinelGate 网关启动成功，开始监听HTTP请求...", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP服务启动失败", "error", err)
			os.Exit(1)
		}
	}()

	if config.Server.EnablePprof {
		observe.EnablePprof(config.Server.PprofAddr)
	}
	observe.Register()
	slog.Info("监控: metrics 已注册。")

	<-ctx.Done()
	slog.Info("收到停机信号，准备优雅关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP服务优雅关闭失败", "error", err)
		os.Exit(1)
	}

	slog.Info("HTTP服务已成功关闭。")
	slog.Info("程序即将退出。")
}

// applyDefaults 填充配置文件未给出的字段
func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.PprofAddr == "" {
		c.Server.PprofAddr = "0.0.0.0:6060"
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.HealthProbeSeconds <= 0 {
		c.Upstream.HealthProbeSeconds = 10
	}
	if c.Cache.ConnectionTTLMinutes <= 0 {
		c.Cache.ConnectionTTLMinutes = 10
	}
	if c.Cache.ResultTTLMinutes <= 0 {
		c.Cache.ResultTTLMinutes = 5
	}
	if c.Cache.SweepMinutes <= 0 {
		c.Cache.SweepMinutes = 5
	}
	if c.Storage.SystemDB == "" {
		c.Storage.SystemDB = "gateway.db"
	}
	if c.Storage.BusinessDB == "" {
		c.Storage.BusinessDB = "portal.db"
	}
}

// openSqlite 打开 sqlite 库并验证连通性
func openSqlite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=ON&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开/创建数据库 '%s' 失败: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接数据库 '%s' (Ping) 失败: %w", path, err)
	}
	return db, nil
}
