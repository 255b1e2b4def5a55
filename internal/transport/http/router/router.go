// Package router file: internal/transport/http/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"SentinelGate/internal/cache"
	"SentinelGate/internal/core/domain"
	"SentinelGate/internal/dispatch"
	"SentinelGate/internal/health"
	"SentinelGate/internal/observe"
	"SentinelGate/internal/querylang"
	"SentinelGate/internal/registry"
	"SentinelGate/internal/transport/http/middleware"
)

// Dependencies 把路由器需要的全部依赖注入进来
type Dependencies struct {
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Cache      *cache.ResponseCache
	Health     *health.Checker
	Version    string
}

// New 创建并配置基于 Gin 的 HTTP 路由器
func New(deps Dependencies) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	// --- 全局中间件 ---
	router.Use(observe.MetricsMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.ErrorHandlingMiddleware())

	limiter := middleware.NewConnectorRateLimiter()

	router.GET("/metrics", gin.WrapH(observe.Handler()))

	v1 := router.Group("/api/v1")
	{
		// --- 数据平面 (Data Plane) ---
		queryGroup := v1.Group("/query")
		{
			queryGroup.POST("/dispatch", dispatchHandler(deps, limiter))
			queryGroup.POST("/validate", validateHandler())
		}

		// --- 元数据/发现平面 (Metadata/Discovery Plane) ---
		metaGroup := v1.Group("/meta")
		{
			metaGroup.GET("/connectors", listConnectorsHandler(deps.Registry))
			metaGroup.GET("/connectors/:name", getConnectorHandler(deps.Registry))
			metaGroup.GET("/instances", listInstancesHandler(deps.Registry))
		}

		// --- 控制平面 (Control Plane) ---
		adminGroup := v1.Group("/admin")
		{
			instanceGroup := adminGroup.Group("/connectors/:name/instances")
			{
				instanceGroup.POST("", createInstanceHandler(deps.Registry))
				instanceGroup.PUT("/:id", updateInstanceHandler(deps.Registry))
				instanceGroup.DELETE("/:id", deleteInstanceHandler(deps.Registry))
				instanceGroup.PATCH("/:id/toggle", toggleInstanceHandler(deps.Registry))
			}

			cacheGroup := adminGroup.Group("/cache")
			{
				cacheGroup.GET("/stats", cacheStatsHandler(deps.Cache))
				cacheGroup.POST("/invalidate", cacheInvalidateHandler(deps.Cache))
				cacheGroup.POST("/clear", cacheClearHandler(deps.Cache))
			}
		}

		// --- 系统平面 (System Plane) ---
		v1.GET("/health/instances", healthHandler(deps.Health))
		v1.GET("/system/status", statusHandler(deps))
	}

	return router
}

/*
============================================================
  数据平面处理器
============================================================
*/

// dispatchPayload 的 context 部分携带解析器可用的请求上下文变量
type contextPayload struct {
	ClientID          string `json:"client_id"`
	ClientShortName   string `json:"client_short_name"`
	ParentCompanyID   string `json:"parent_company_id"`
	ParentCompanyName string `json:"parent_company_name"`
	UserID            string `json:"user_id"`
}

type dispatchPayload struct {
	Connector    string                                 `json:"connector" binding:"required"`
	Instance     string                                 `json:"instance" binding:"required"`
	Query        string                                 `json:"query" binding:"required"`
	Method       string                                 `json:"method"`
	Parameters   map[string]domain.ParameterSpec        `json:"parameters"`
	Filters      []domain.FilterSpec                    `json:"filters"`
	ChainedQuery *domain.ChainedQuerySpec               `json:"chained_query"`
	Options      map[string]any                         `json:"options"`
	Context      contextPayload                         `json:"context"`
}

func dispatchHandler(deps Dependencies, limiter *middleware.ConnectorRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload dispatchPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			_ = c.Error(err)
			return
		}

		// 调度边界限速：描述符上的建议值在这里落地
		if conn, ok := deps.Registry.Get(payload.Connector); ok {
			if !limiter.Allow(conn.Descriptor().Name, conn.Descriptor().RateLimit) {
				c.JSON(http.StatusTooManyRequests, gin.H{
					"success": false,
					"message": "连接器请求频率超出限制，请稍后重试",
					"error":   "RateLimited",
				})
				return
			}
		}

		qctx := &domain.QueryContext{
			ClientID:          payload.Context.ClientID,
			ClientShortName:   payload.Context.ClientShortName,
			ParentCompanyID:   payload.Context.ParentCompanyID,
			ParentCompanyName: payload.Context.ParentCompanyName,
			UserID:            payload.Context.UserID,
		}

		result, err := deps.Dispatcher.Dispatch(c.Request.Context(), domain.QueryRequest{
			Connector:    payload.Connector,
			Instance:     payload.Instance,
			Query:        payload.Query,
			Method:       payload.Method,
			Parameters:   payload.Parameters,
			Filters:      payload.Filters,
			ChainedQuery: payload.ChainedQuery,
			Options:      payload.Options,
		}, qctx)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func validateHandler() gin.HandlerFunc {
	type validatePayload struct {
		Query   string `json:"query" binding:"required"`
		Dialect string `json:"dialect"`
	}
	return func(c *gin.Context) {
		var payload validatePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			_ = c.Error(err)
			return
		}
		warnings := querylang.Validate(payload.Query, payload.Dialect)
		c.JSON(http.StatusOK, gin.H{"valid": true, "warnings": warnings})
	}
}

/*
============================================================
  元数据平面处理器
============================================================
*/

func listConnectorsHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": reg.ListAll()})
	}
}

func getConnectorHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, ok := reg.Get(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "连接器 '" + c.Param("name") + "' 未注册",
				"error":   "ConnectorNotFound",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": conn.Descriptor()})
	}
}

func listInstancesHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": reg.ListInstances()})
	}
}

/*
============================================================
  控制平面处理器
============================================================
*/

func createInstanceHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params registry.CreateInstanceParams
		if err := c.ShouldBindJSON(&params); err != nil {
			_ = c.Error(err)
			return
		}
		inst, err := reg.CreateInstance(c.Request.Context(), c.Param("name"), params)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": inst})
	}
}

func updateInstanceHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch registry.InstancePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			_ = c.Error(err)
			return
		}
		inst, err := reg.UpdateInstance(c.Request.Context(), c.Param("name"), c.Param("id"), patch)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": inst})
	}
}

func deleteInstanceHandler(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := reg.DeleteInstance(c.Request.Context(), c.Param("name"), c.Param("id")); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "实例已删除"})
	}
}

func toggleInstanceHandler(reg *registry.Registry) gin.HandlerFunc {
	type togglePayload struct {
		Active *bool `json:"active" binding:"required"`
	}
	return func(c *gin.Context) {
		var payload togglePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			_ = c.Error(err)
			return
		}
		inst, err := reg.ToggleInstance(c.Request.Context(), c.Param("name"), c.Param("id"), *payload.Active)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": inst})
	}
}

func cacheStatsHandler(rc *cache.ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, rc.GetStats())
	}
}

func cacheInvalidateHandler(rc *cache.ResponseCache) gin.HandlerFunc {
	type invalidatePayload struct {
		Connector string `json:"connector" binding:"required"`
		Instance  string `json:"instance"`
	}
	return func(c *gin.Context) {
		var payload invalidatePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			_ = c.Error(err)
			return
		}
		removed := rc.Invalidate(payload.Connector, payload.Instance)
		c.JSON(http.StatusOK, gin.H{"status": "success", "removed": removed})
	}
}

func cacheClearHandler(rc *cache.ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc.ClearAll()
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

/*
============================================================
  系统平面处理器
============================================================
*/

func healthHandler(checker *health.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, checker.CheckAll(c.Request.Context()))
	}
}

func statusHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		connectors := deps.Registry.ListAll()
		instanceCount := 0
		for _, d := range connectors {
			instanceCount += len(d.Instances)
		}
		c.JSON(http.StatusOK, gin.H{
			"version":    deps.Version,
			"connectors": len(connectors),
			"instances":  instanceCount,
			"cache":      deps.Cache.GetStats(),
		})
	}
}
