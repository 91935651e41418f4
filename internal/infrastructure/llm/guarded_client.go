package llm

import (
	"context"
	"time"

	"github.com/smilecare/gateway/internal/domain/service"
	"github.com/smilecare/gateway/internal/infrastructure/config"
	"go.uber.org/zap"
)

// GuardedClient wraps a Provider with a per-call timeout and a circuit breaker.
// It never retries: every failure goes back to the turn as a classified *service.LLMError.
type GuardedClient struct {
	provider Provider
	breaker  *CircuitBreaker
	timeout  time.Duration
	logger   *zap.Logger
}

var _ service.LLMClient = (*GuardedClient)(nil)

// NewGuardedClient wraps provider. A non-positive timeout disables the deadline.
func NewGuardedClient(provider Provider, breaker *CircuitBreaker, timeout time.Duration, logger *zap.Logger) *GuardedClient {
	if breaker == nil {
		breaker = NewCircuitBreaker(0, 0)
	}
	return &GuardedClient{
		provider: provider,
		breaker:  breaker,
		timeout:  timeout,
		logger:   logger.With(zap.String("component", "llm"), zap.String("provider", provider.Name())),
	}
}

// NewFromConfig builds the configured provider and guards it.
// The provider's package must be linked in (blank import) so its factory is registered.
func NewFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*GuardedClient, error) {
	provider, err := CreateProvider(ProviderConfig{
		Type:    cfg.Type,
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	}, logger)
	if err != nil {
		return nil, err
	}
	if !provider.IsAvailable(context.Background()) {
		logger.Warn("LLM provider is not fully configured, calls will fail",
			zap.String("provider", provider.Name()))
	}
	return NewGuardedClient(provider, NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerRecovery), cfg.Timeout, logger), nil
}

// Breaker exposes the circuit breaker for health reporting.
func (c *GuardedClient) Breaker() *CircuitBreaker {
	return c.breaker
}

// Generate implements service.LLMClient.
func (c *GuardedClient) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	if !c.breaker.Allow() {
		return nil, &service.LLMError{
			Kind:     service.ErrKindTransient,
			Message:  "circuit breaker open",
			Provider: c.provider.Name(),
			Model:    req.Model,
		}
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.provider.Generate(callCtx, req)
	elapsed := time.Since(start)

	if err == nil {
		c.breaker.RecordSuccess()
		c.logger.Debug("LLM call completed",
			service.TraceField(ctx),
			zap.String("model", resp.ModelUsed),
			zap.Int("tool_calls", len(resp.ToolCalls)),
			zap.Int("tokens", resp.TokensUsed),
			zap.Duration("elapsed", elapsed),
		)
		return resp, nil
	}

	// 调用方取消优先于我们自己的超时
	cause := err
	if ctx.Err() != nil {
		cause = ctx.Err()
	}
	llmErr := service.ClassifyError(cause, c.provider.Name(), req.Model)

	switch llmErr.Kind {
	case service.ErrKindTransient, service.ErrKindTimeout, service.ErrKindRateLimit:
		c.breaker.RecordFailure()
	case service.ErrKindCancelled:
		c.breaker.Release()
	default:
		// 推理服务可达, 只是拒绝了请求
		c.breaker.RecordSuccess()
	}

	c.logger.Warn("LLM call failed",
		service.TraceField(ctx),
		zap.String("kind", llmErr.Kind.String()),
		zap.String("circuit", c.breaker.State().String()),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
	return nil, llmErr
}
