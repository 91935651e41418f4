package service

import (
	"context"

	"github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
)

// TurnHook defines lifecycle hooks for observing orchestrator turns.
// All methods are optional; embed NoOpHook to only implement what you need.
// Hooks execute synchronously; keep them fast to avoid blocking the turn.
type TurnHook interface {
	// OnTurnStart is called once per turn before sanitizing.
	OnTurnStart(ctx context.Context, caller valueobject.Caller)

	// OnInputRejected is called when the sanitizer blocks a message.
	OnInputRejected(ctx context.Context, patternClass string)

	// BeforeModelCall is called before each inference request.
	BeforeModelCall(ctx context.Context, req *LLMRequest, round int)

	// AfterModelCall is called after each successful inference response.
	AfterModelCall(ctx context.Context, resp *LLMResponse, round int)

	// AfterToolCall is called after each dispatch attempt, allowed or not.
	AfterToolCall(ctx context.Context, toolName string, result tool.Result, err error)

	// OnError is called when the turn ends in the Error state.
	OnError(ctx context.Context, err error)

	// OnComplete is called when the turn reaches Done.
	OnComplete(ctx context.Context, result *TurnResult)

	// OnStateChange is called on each state machine transition.
	OnStateChange(from, to TurnState, snap TurnSnapshot)
}

// NoOpHook provides a default no-op implementation of all hooks.
type NoOpHook struct{}

func (NoOpHook) OnTurnStart(_ context.Context, _ valueobject.Caller)               {}
func (NoOpHook) OnInputRejected(_ context.Context, _ string)                       {}
func (NoOpHook) BeforeModelCall(_ context.Context, _ *LLMRequest, _ int)           {}
func (NoOpHook) AfterModelCall(_ context.Context, _ *LLMResponse, _ int)           {}
func (NoOpHook) AfterToolCall(_ context.Context, _ string, _ tool.Result, _ error) {}
func (NoOpHook) OnError(_ context.Context, _ error)                                {}
func (NoOpHook) OnComplete(_ context.Context, _ *TurnResult)                       {}
func (NoOpHook) OnStateChange(_, _ TurnState, _ TurnSnapshot)                      {}

// HookChain aggregates multiple hooks; all hooks are called in order.
type HookChain struct {
	hooks []TurnHook
}

// NewHookChain creates a hook chain from the given hooks.
func NewHookChain(hooks ...TurnHook) *HookChain {
	return &HookChain{hooks: hooks}
}

// Add appends a hook to the chain.
func (c *HookChain) Add(h TurnHook) {
	c.hooks = append(c.hooks, h)
}

func (c *HookChain) OnTurnStart(ctx context.Context, caller valueobject.Caller) {
	for _, h := range c.hooks {
		h.OnTurnStart(ctx, caller)
	}
}

func (c *HookChain) OnInputRejected(ctx context.Context, patternClass string) {
	for _, h := range c.hooks {
		h.OnInputRejected(ctx, patternClass)
	}
}

func (c *HookChain) BeforeModelCall(ctx context.Context, req *LLMRequest, round int) {
	for _, h := range c.hooks {
		h.BeforeModelCall(ctx, req, round)
	}
}

func (c *HookChain) AfterModelCall(ctx context.Context, resp *LLMResponse, round int) {
	for _, h := range c.hooks {
		h.AfterModelCall(ctx, resp, round)
	}
}

func (c *HookChain) AfterToolCall(ctx context.Context, toolName string, result tool.Result, err error) {
	for _, h := range c.hooks {
		h.AfterToolCall(ctx, toolName, result, err)
	}
}

func (c *HookChain) OnError(ctx context.Context, err error) {
	for _, h := range c.hooks {
		h.OnError(ctx, err)
	}
}

func (c *HookChain) OnComplete(ctx context.Context, result *TurnResult) {
	for _, h := range c.hooks {
		h.OnComplete(ctx, result)
	}
}

func (c *HookChain) OnStateChange(from, to TurnState, snap TurnSnapshot) {
	for _, h := range c.hooks {
		h.OnStateChange(from, to, snap)
	}
}

// Compile-time check: HookChain implements TurnHook
var _ TurnHook = (*HookChain)(nil)
