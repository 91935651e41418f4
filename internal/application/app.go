package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smilecare/gateway/internal/application/usecase"
	"github.com/smilecare/gateway/internal/domain/repository"
	"github.com/smilecare/gateway/internal/domain/service"
	domaintool "github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/infrastructure/audit"
	"github.com/smilecare/gateway/internal/infrastructure/auth"
	"github.com/smilecare/gateway/internal/infrastructure/config"
	"github.com/smilecare/gateway/internal/infrastructure/domainquery"
	"github.com/smilecare/gateway/internal/infrastructure/llm"
	_ "github.com/smilecare/gateway/internal/infrastructure/llm/gemini" // register gemini provider factory
	_ "github.com/smilecare/gateway/internal/infrastructure/llm/openai" // register openai provider factory
	"github.com/smilecare/gateway/internal/infrastructure/lock"
	logpkg "github.com/smilecare/gateway/internal/infrastructure/logger"
	"github.com/smilecare/gateway/internal/infrastructure/monitoring"
	"github.com/smilecare/gateway/internal/infrastructure/persistence"
	"github.com/smilecare/gateway/internal/infrastructure/prompt"
	toolpkg "github.com/smilecare/gateway/internal/infrastructure/tool"
	httpServer "github.com/smilecare/gateway/internal/interfaces/http"
	"github.com/smilecare/gateway/internal/interfaces/http/handlers"
)

// App 应用程序
type App struct {
	// 配置
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB
	redis  *redis.Client

	// 仓储层
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	auditRepo        repository.AuditRepository

	// 领域服务
	catalog       *domaintool.Catalog
	conversations *service.ConversationManager
	orchestrator  *service.Orchestrator

	// 基础设施
	llmClient *llm.GuardedClient
	queries   service.DomainQueryService
	auditSink *audit.Sink
	executor  *toolpkg.Executor
	locker    service.TurnLocker
	prompts   *prompt.Builder
	monitor   *monitoring.Monitor
	tokens    *auth.TokenService

	// 应用服务
	chat *usecase.ChatUseCase

	httpServer *httpServer.Server
}

// NewApp 创建应用程序（依赖注入容器）
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := newCore(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := app.initInterfaces(); err != nil {
		app.close()
		return nil, fmt.Errorf("failed to init interfaces: %w", err)
	}
	return app, nil
}

// NewAppCLI creates a lightweight app for one-shot terminal turns.
// Skips: HTTP server.
func NewAppCLI(cfg *config.Config, logger *zap.Logger) (*App, error) {
	return newCore(cfg, logger)
}

func newCore(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	// 初始化各层组件
	if err := app.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := app.initInfrastructure(); err != nil {
		app.close()
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	app.initDomainServices()
	app.initApplicationServices()
	return app, nil
}

// initRepositories 初始化仓储层
func (app *App) initRepositories() error {
	app.logger.Info("Initializing repositories", zap.String("type", app.config.Database.Type))

	if app.config.Database.Type == "memory" {
		messages := persistence.NewMemoryMessageRepository()
		app.messageRepo = messages
		app.conversationRepo = persistence.NewMemoryConversationRepository(messages)
		app.auditRepo = persistence.NewMemoryAuditRepository()
		return nil
	}

	db, err := persistence.NewDBConnection(&app.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.db = db

	app.conversationRepo = persistence.NewGormConversationRepository(db)
	app.messageRepo = persistence.NewGormMessageRepository(db)
	app.auditRepo = persistence.NewGormAuditRepository(db)
	return nil
}

// initInfrastructure 初始化基础设施
func (app *App) initInfrastructure() error {
	app.logger.Info("Initializing infrastructure")
	app.monitor = monitoring.NewMonitor(app.logger)

	// 推理服务 (超时 + 熔断, 不重试)
	client, err := llm.NewFromConfig(app.config.LLM, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create llm provider: %w", err)
	}
	app.llmClient = client

	// 审计
	app.auditSink = audit.NewSink(app.auditRepo, app.logger)

	// 领域查询服务: 未配置远端时使用内置演示数据
	if app.config.DomainQuery.BaseURL != "" {
		app.queries = domainquery.NewHTTPClient(
			app.config.DomainQuery.BaseURL,
			app.config.DomainQuery.APIKey,
			app.config.DomainQuery.Timeout,
			app.logger,
		)
	} else {
		demo := domainquery.NewDemo()
		demo.Register("search_audit_logs", app.auditSink.Search)
		app.queries = demo
		app.logger.Warn("domain_query.base_url not set, serving built-in demo data")
	}

	// 会话轮次锁
	if app.config.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rdb, err := lock.NewRedisClient(ctx, app.config.Redis.Addr, app.config.Redis.Password, app.config.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.redis = rdb
		app.locker = lock.NewRedisLocker(rdb, app.config.Redis.TurnLockTTL, app.logger)
	} else {
		app.locker = lock.NewMemoryLocker()
	}

	// 系统提示词
	app.prompts = prompt.NewBuilder(app.config.Chat.ClinicName, config.HomeDir(), app.logger)
	if err := app.prompts.Load(); err != nil {
		app.logger.Warn("Prompt override not loaded, using built-in rules", zap.Error(err))
	}

	// JWT: 未配置密钥时只接受访客
	if app.config.Auth.JWTSecret != "" {
		tokens, err := auth.NewTokenService(app.config.Auth.JWTSecret, app.config.Auth.Issuer)
		if err != nil {
			return err
		}
		app.tokens = tokens
	} else {
		app.logger.Warn("auth.jwt_secret not set, every caller is treated as guest")
	}
	return nil
}

// initDomainServices 初始化领域服务
func (app *App) initDomainServices() {
	app.logger.Info("Initializing domain services")

	app.catalog = domaintool.NewDentalCatalog()
	app.logger.Info("Tool catalog loaded",
		zap.Int("tools", app.catalog.Len()),
		zap.Strings("audited", app.catalog.SensitiveNames()),
	)
	gate := service.NewAuthorizationGate(app.catalog)

	app.executor = toolpkg.NewExecutor(gate, app.queries, app.auditSink, app.logger)
	app.executor.OnDenied(app.monitor.IncToolDenied)
	app.executor.OnAuditFailure(func(string) { app.monitor.IncAuditFailure() })

	app.conversations = service.NewConversationManager(
		app.conversationRepo,
		app.messageRepo,
		service.ConversationManagerConfig{
			HistoryLimit:  app.config.Chat.HistoryLimit,
			TitleMaxRunes: app.config.Chat.TitleMaxRunes,
		},
		app.logger,
	)

	app.orchestrator = service.NewOrchestrator(
		service.OrchestratorDeps{
			Sanitizer:     service.NewInputSanitizer(app.config.Chat.PreviewRunes, app.logger),
			Conversations: app.conversations,
			Catalog:       app.catalog,
			Executor:      app.executor,
			LLM:           app.llmClient,
			Prompts:       app.prompts,
			Locker:        app.locker,
		},
		service.OrchestratorConfig{
			MaxFunctionCalls: app.config.Chat.MaxFunctionCalls,
			Model:            app.config.LLM.Model,
			Temperature:      app.config.LLM.Temperature,
		},
		app.logger,
	)
	app.orchestrator.SetHooks(monitoring.NewMetricsHook(app.monitor))
}

// initApplicationServices 初始化应用服务
func (app *App) initApplicationServices() {
	app.chat = usecase.NewChatUseCase(app.orchestrator, app.conversations, app.config.Chat.ListLimit, app.logger)
}

// initInterfaces 初始化接口层
func (app *App) initInterfaces() error {
	app.logger.Info("Initializing interfaces")

	var verifier httpServer.TokenVerifier
	if app.tokens != nil {
		verifier = app.tokens
	}

	breaker := app.llmClient.Breaker()
	app.httpServer = httpServer.NewServer(
		httpServer.Config{
			Host: app.config.Server.Host,
			Port: app.config.Server.Port,
			Mode: app.config.Server.Mode,
		},
		httpServer.Deps{
			Chat:     app.chat,
			Verifier: verifier,
			Debug:    handlers.NewDebugHandler(app.monitor, func() string { return breaker.State().String() }, app.catalog, app.logger),
			Metrics:  app.monitor.PrometheusHandler(),
		},
		app.logger,
	)
	return nil
}

// Start 启动应用
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("Starting application")

	if app.httpServer == nil {
		return errors.New("http server not initialized")
	}
	if err := app.httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	app.logger.Info("Application started successfully")
	return nil
}

// Stop 停止应用
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application")

	if app.httpServer != nil {
		if err := app.httpServer.Stop(ctx); err != nil {
			app.logger.Error("Failed to stop HTTP server", zap.Error(err))
		}
	}
	app.close()

	app.logger.Info("Application stopped successfully")
	return nil
}

// close 释放数据库与 redis 连接
func (app *App) close() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
	if app.db != nil {
		if sqlDB, err := app.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				app.logger.Error("Failed to close database connection", zap.Error(err))
			}
		}
	}
}

// WatchConfig 监听配置文件, 热更新日志级别并重新加载提示词规则
//
// 其余字段的变更需要重启才会生效。
func (app *App) WatchConfig(level zap.AtomicLevel) {
	current := level.Level()
	config.Watch(app.config, app.logger, func(next *config.Config) {
		if l := logpkg.ParseLevel(next.Log.Level); l != current {
			current = l
			level.SetLevel(l)
			app.logger.Info("Log level changed", zap.String("level", l.String()))
		}
		if err := app.prompts.Load(); err != nil {
			app.logger.Warn("Prompt reload failed", zap.Error(err))
		}
	})
}

// Chat 对话用例
func (app *App) Chat() *usecase.ChatUseCase {
	return app.chat
}

// Catalog 工具目录
func (app *App) Catalog() *domaintool.Catalog {
	return app.catalog
}

// Tokens 令牌服务, 未配置密钥时为 nil
func (app *App) Tokens() *auth.TokenService {
	return app.tokens
}

// Logger 日志
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// AppConfig 当前配置
func (app *App) AppConfig() *config.Config {
	return app.config
}
