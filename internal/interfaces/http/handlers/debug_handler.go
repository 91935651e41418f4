package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smilecare/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// DebugHandler 调试 API 处理器, 路由层限制为管理员
type DebugHandler struct {
	monitor Monitor
	breaker func() string
	catalog *tool.Catalog
	logger  *zap.Logger
}

// Monitor 监控接口
type Monitor interface {
	GetStats() map[string]interface{}
}

// NewDebugHandler 创建调试处理器. breaker 返回推理服务熔断器状态, 可为 nil.
func NewDebugHandler(monitor Monitor, breaker func() string, catalog *tool.Catalog, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		monitor: monitor,
		breaker: breaker,
		catalog: catalog,
		logger:  logger,
	}
}

// GetStats 获取运行指标
// GET /api/v1/debug/stats
func (h *DebugHandler) GetStats(c *gin.Context) {
	stats := h.monitor.GetStats()
	if h.breaker != nil {
		stats["llm_breaker"] = h.breaker()
	}
	c.JSON(http.StatusOK, stats)
}

// GetTools 列出工具目录及其授权类别
// GET /api/v1/debug/tools
func (h *DebugHandler) GetTools(c *gin.Context) {
	decls := h.catalog.Declarations()
	items := make([]gin.H, 0, len(decls))
	for _, d := range decls {
		items = append(items, gin.H{
			"name":      d.Name,
			"authClass": string(d.Auth),
			"sensitive": d.Sensitive,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"tools": items,
		"count": len(items),
	})
}

// GetRuntime 获取运行时信息
// GET /api/v1/debug/runtime
func (h *DebugHandler) GetRuntime(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	c.JSON(http.StatusOK, gin.H{
		"go_version":    runtime.Version(),
		"num_cpu":       runtime.NumCPU(),
		"num_goroutine": runtime.NumGoroutine(),
		"memory": gin.H{
			"alloc_mb": float64(memStats.Alloc) / 1024 / 1024,
			"sys_mb":   float64(memStats.Sys) / 1024 / 1024,
			"num_gc":   memStats.NumGC,
		},
		"timestamp": time.Now().Unix(),
	})
}

// RegisterDebugRoutes 注册调试路由
func RegisterDebugRoutes(router *gin.RouterGroup, handler *DebugHandler) {
	debug := router.Group("/debug")
	{
		debug.GET("/stats", handler.GetStats)
		debug.GET("/tools", handler.GetTools)
		debug.GET("/runtime", handler.GetRuntime)
	}
}
