package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smilecare/gateway/internal/interfaces/http/handlers"
	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config HTTP服务器配置
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// Deps 路由依赖
type Deps struct {
	Chat     handlers.ChatService
	Verifier TokenVerifier // nil 表示不接受任何 bearer token
	Debug    *handlers.DebugHandler
	Metrics  http.Handler // 挂载在 /metrics, 可为 nil
}

// NewServer 创建HTTP服务器
func NewServer(cfg Config, deps Deps, logger *zap.Logger) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(cfg.Mode, deps, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter builds the gin engine. Exposed for handler tests.
func NewRouter(mode string, deps Deps, logger *zap.Logger) *gin.Engine {
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(traceMiddleware())
	router.Use(ginLogger(logger))

	setupRoutes(router, deps, logger)
	return router
}

// Start 启动服务器
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// setupRoutes 设置路由
func setupRoutes(router *gin.Engine, deps Deps, logger *zap.Logger) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	chatHandler := handlers.NewChatHandler(deps.Chat, logger)
	convHandler := handlers.NewConversationHandler(deps.Chat, logger)

	// API版本1
	v1 := router.Group("/api/v1")
	{
		// 访客入口不读取 Authorization
		v1.POST("/chat/guest", chatHandler.SendGuestMessage)

		authed := v1.Group("")
		authed.Use(authMiddleware(deps.Verifier, logger))
		authed.POST("/chat", chatHandler.SendMessage)

		convs := authed.Group("/conversations", requireAuth())
		{
			convs.GET("", convHandler.List)
			convs.GET("/:id/messages", convHandler.Messages)
			convs.DELETE("/:id", convHandler.Delete)
			convs.POST("/:id/cancel", convHandler.CancelLastTurn)
		}

		if deps.Debug != nil {
			handlers.RegisterDebugRoutes(authed.Group("", requireAdmin()), deps.Debug)
		}
	}
}
