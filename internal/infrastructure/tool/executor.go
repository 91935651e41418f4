package tool

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/smilecare/gateway/internal/domain/service"
	domaintool "github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	"github.com/smilecare/gateway/pkg/safego"
)

// auditTimeout 审计写入的独立超时, 不受请求取消影响
const auditTimeout = 2 * time.Second

// Executor 工具执行器
//
// 每次调用都先经过授权闸门, 拒绝、参数错误与空结果都以 Result 的形式
// 返回给模型; 只有领域查询服务本身失败时才返回 error。
type Executor struct {
	gate    *service.AuthorizationGate
	queries service.DomainQueryService
	audit   service.AuditSink
	logger  *zap.Logger

	onDenied       func(toolName, reason string)
	onAuditFailure func(toolName string)
}

var _ service.ToolExecutor = (*Executor)(nil)

// NewExecutor 创建工具执行器, audit 可以为 nil
func NewExecutor(
	gate *service.AuthorizationGate,
	queries service.DomainQueryService,
	audit service.AuditSink,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		gate:    gate,
		queries: queries,
		audit:   audit,
		logger:  logger.With(zap.String("component", "tool_executor")),
	}
}

// OnDenied 注册授权拒绝回调 (监控用)
func (e *Executor) OnDenied(fn func(toolName, reason string)) {
	e.onDenied = fn
}

// OnAuditFailure 注册审计写入失败回调 (监控用)
func (e *Executor) OnAuditFailure(fn func(toolName string)) {
	e.onAuditFailure = fn
}

// Execute 执行工具调用
func (e *Executor) Execute(ctx context.Context, caller valueobject.Caller, name string, rawArgs interface{}) (domaintool.Result, error) {
	startTime := time.Now()
	logger := e.logger.With(
		service.TraceField(ctx),
		zap.String("tool", name),
		zap.String("caller", caller.Label()),
	)

	// 授权
	grant, err := e.gate.Authorize(name, caller)
	if err != nil {
		var denied *service.DeniedError
		if !errors.As(err, &denied) {
			return nil, err
		}
		logger.Info("Tool call denied", zap.String("reason", denied.Reason))
		if e.onDenied != nil {
			e.onDenied(name, denied.Reason)
		}
		return domaintool.ErrorResult(denied.Reason), nil
	}
	decl := grant.Tool()

	// 参数规范化
	args, err := domaintool.NormalizeArgs(decl, rawArgs)
	if err != nil {
		logger.Info("Tool arguments rejected", zap.Error(err))
		return domaintool.ErrorResult(err.Error()), nil
	}

	req := grant.Request(args)
	redacted := service.RedactArgs(req.Args())
	logger.Info("Dispatching tool",
		zap.Any("args", redacted),
		zap.Bool("scoped", grant.Scoped()),
	)

	data, err := e.queries.Query(ctx, req)
	duration := time.Since(startTime)
	var argErr *domaintool.ArgumentError
	if errors.As(err, &argErr) {
		// 查询服务对参数的语义校验同样作为数据返回给模型
		logger.Info("Tool arguments rejected by domain query", zap.Error(err))
		return domaintool.ErrorResult(argErr.Error()), nil
	}
	if err != nil {
		logger.Error("Domain query failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	result := domaintool.Envelope(decl, data)
	logger.Info("Tool execution completed",
		zap.Duration("duration", duration),
		zap.Bool("found", result.Found()),
	)

	if decl.Sensitive {
		e.recordAudit(ctx, caller, decl.Name, redacted, logger)
	}
	return result, nil
}

// recordAudit 尽力写入审计记录, 失败和 panic 都只记录日志
func (e *Executor) recordAudit(ctx context.Context, caller valueobject.Caller, toolName string, args map[string]interface{}, logger *zap.Logger) {
	if e.audit == nil {
		return
	}
	defer safego.Recover(logger, "audit:"+toolName)

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := e.audit.Record(auditCtx, caller, toolName, args); err != nil {
		logger.Warn("Failed to write audit record", zap.Error(err))
		if e.onAuditFailure != nil {
			e.onAuditFailure(toolName)
		}
	}
}
