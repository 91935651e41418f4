package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
	"go.uber.org/zap"
)

// User-facing turn errors. Internal detail is only ever logged.
const (
	MsgEmptyMessage   = "Please enter a message."
	MsgNoResponse     = "No response was received from the assistant. Please try again."
	MsgTooComplex     = "Your request is too complex. Please simplify your question."
	MsgRateLimited    = "Too many requests right now. Please wait a moment and try again."
	MsgTimeout        = "The assistant took too long to respond. Please try again."
	MsgCancelled      = "The request was cancelled."
	MsgTurnInProgress = "Another message in this conversation is still being processed. Please wait for it to finish."
	MsgGeneric        = "Something went wrong while processing your message. Please try again."
)

var (
	// ErrTooManyFunctionCalls aborts a turn whose model keeps chaining calls.
	ErrTooManyFunctionCalls = errors.New("too many function calls in one turn")

	// ErrNoResponse is returned when the model replies with nothing usable.
	ErrNoResponse = errors.New("no response from model")
)

// SystemPromptBuilder composes the system instruction for a caller.
type SystemPromptBuilder interface {
	Build(caller valueobject.Caller, now time.Time) string
}

// TurnRequest is one incoming chat message.
type TurnRequest struct {
	Caller         valueobject.Caller
	Message        string
	ConversationID int64 // Ignored for guests
}

// TurnResult is what the chat API returns.
type TurnResult struct {
	Success        bool   `json:"success"`
	Response       string `json:"response,omitempty"`
	Error          string `json:"error,omitempty"`
	ConversationID int64  `json:"conversationId,omitempty"`
	FunctionCalled string `json:"functionCalled,omitempty"`

	// Code classifies failures for transport status mapping.
	Code domainErrors.ErrorCode `json:"-"`
}

// OrchestratorConfig bounds a turn.
type OrchestratorConfig struct {
	MaxFunctionCalls int // Per turn, default 5
	Model            string
	Temperature      float64
}

// OrchestratorDeps are the collaborators of a turn.
type OrchestratorDeps struct {
	Sanitizer     *InputSanitizer
	Conversations *ConversationManager
	Catalog       *tool.Catalog
	Executor      ToolExecutor
	LLM           LLMClient
	Prompts       SystemPromptBuilder
	Locker        TurnLocker // Optional
}

// Orchestrator drives one chat turn end-to-end.
type Orchestrator struct {
	deps   OrchestratorDeps
	config OrchestratorConfig
	hooks  TurnHook
	logger *zap.Logger
	now    func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps OrchestratorDeps, config OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if config.MaxFunctionCalls <= 0 {
		config.MaxFunctionCalls = 5
	}
	return &Orchestrator{
		deps:   deps,
		config: config,
		hooks:  NoOpHook{},
		logger: logger.With(zap.String("component", "orchestrator")),
		now:    time.Now,
	}
}

// SetHooks configures lifecycle hooks for turns.
func (o *Orchestrator) SetHooks(hooks TurnHook) {
	if hooks == nil {
		hooks = NoOpHook{}
	}
	o.hooks = hooks
}

// turn holds the state of one HandleTurn call.
type turn struct {
	ctx     context.Context
	caller  valueobject.Caller
	sm      *TurnStateMachine
	conv    *entity.Conversation
	userMsg *entity.Message
	logger  *zap.Logger
}

// HandleTurn runs sanitize → context → model → [authorize → dispatch →
// model]* → persist. It never returns a nil result.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) *TurnResult {
	if TraceIDFromContext(ctx) == "" {
		ctx = WithTraceID(ctx, "")
	}

	t := &turn{
		ctx:    ctx,
		caller: req.Caller,
		sm:     NewTurnStateMachine(o.logger),
		logger: o.logger.With(TraceField(ctx), zap.String("caller", req.Caller.Label()), zap.Int64("user_id", req.Caller.UserID())),
	}
	t.sm.OnTransition(o.hooks.OnStateChange)
	o.hooks.OnTurnStart(ctx, req.Caller)

	// Sanitizing
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return o.fail(t, domainErrors.CodeInvalidInput, MsgEmptyMessage, domainErrors.NewInvalidInputError("message is required"))
	}
	if err := o.deps.Sanitizer.Sanitize(ctx, text); err != nil {
		var rejected *InputRejectedError
		if errors.As(err, &rejected) {
			o.hooks.OnInputRejected(ctx, rejected.Class)
		}
		return o.fail(t, domainErrors.CodeInvalidInput, RejectedInputMessage, err)
	}
	_ = t.sm.Transition(StateContextBuilding)

	// ContextBuilding
	conv, err := o.deps.Conversations.GetOrCreate(ctx, req.Caller, req.ConversationID)
	if err != nil {
		return o.fail(t, domainErrors.CodeInternal, MsgGeneric, err)
	}
	t.conv = conv

	if conv != nil && o.deps.Locker != nil {
		release, err := o.deps.Locker.Acquire(ctx, conv.ID())
		if err != nil {
			if errors.Is(err, ErrTurnInProgress) {
				return o.fail(t, domainErrors.CodeConflict, MsgTurnInProgress, err)
			}
			return o.fail(t, domainErrors.CodeInternal, MsgGeneric, err)
		}
		defer release()
	}

	// History excludes the in-flight message, so load it before appending.
	history, err := o.deps.Conversations.RecentMessages(ctx, conv, 0)
	if err != nil {
		return o.fail(t, domainErrors.CodeInternal, MsgGeneric, err)
	}
	// Stored before the model call so the question survives a model failure.
	t.userMsg, err = o.deps.Conversations.Append(ctx, conv, entity.RoleUser, text, "")
	if err != nil {
		return o.fail(t, domainErrors.CodeInternal, MsgGeneric, err)
	}

	llmReq := &LLMRequest{
		System:      o.deps.Prompts.Build(req.Caller, o.now()),
		Messages:    append(historyToLLM(history), LLMMessage{Role: RoleUser, Content: text}),
		Tools:       o.deps.Catalog.Definitions(),
		Model:       o.config.Model,
		Temperature: o.config.Temperature,
	}

	// AwaitingModel
	_ = t.sm.Transition(StateAwaitingModel)
	resp, err := o.callModel(t, llmReq)
	if err != nil {
		return o.failModel(t, err)
	}

	if !resp.HasFunctionCall() {
		_ = t.sm.Transition(StateDirectAnswer)
	}
	for resp.HasFunctionCall() {
		_ = t.sm.Transition(StateFunctionRequested)
		llmReq.Messages = append(llmReq.Messages, LLMMessage{
			Role:      RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			if n := t.sm.RecordFunctionCall(call.Name); n > o.config.MaxFunctionCalls {
				t.logger.Warn("Function call limit exceeded",
					zap.Int("limit", o.config.MaxFunctionCalls),
					zap.String("tool", call.Name),
				)
				return o.fail(t, domainErrors.CodeInvalidInput, MsgTooComplex, ErrTooManyFunctionCalls)
			}

			_ = t.sm.Transition(StateAuthorizing)
			_ = t.sm.Transition(StateDispatching)
			result, err := o.deps.Executor.Execute(ctx, req.Caller, call.Name, call.Input())
			o.hooks.AfterToolCall(ctx, call.Name, result, err)
			if err != nil {
				return o.fail(t, domainErrors.CodeServiceUnavail, MsgGeneric, err)
			}

			llmReq.Messages = append(llmReq.Messages, LLMMessage{
				Role:       RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Payload:    result,
			})
		}

		// AwaitingModelFinal
		_ = t.sm.Transition(StateAwaitingModelFinal)
		resp, err = o.callModel(t, llmReq)
		if err != nil {
			return o.failModel(t, err)
		}
	}

	// Persisting
	_ = t.sm.Transition(StatePersisting)
	if errors.Is(ctx.Err(), context.Canceled) {
		return o.fail(t, domainErrors.CodeServiceUnavail, MsgCancelled, ctx.Err())
	}
	answer := strings.TrimSpace(resp.Content)
	// 回复已生成, 保存不受请求超时影响
	if _, err := o.deps.Conversations.Append(context.WithoutCancel(ctx), conv, entity.RoleAssistant, answer, t.sm.LastTool()); err != nil {
		// The answer exists; losing it from history is not worth failing the turn.
		t.logger.Error("Failed to persist assistant message", zap.Error(err))
	}
	_ = t.sm.Transition(StateDone)

	result := &TurnResult{
		Success:        true,
		Response:       answer,
		ConversationID: conversationID(conv),
		FunctionCalled: t.sm.LastTool(),
	}
	snap := t.sm.Snapshot()
	t.logger.Info("Turn completed",
		zap.Int64("conversation_id", result.ConversationID),
		zap.String("function_called", result.FunctionCalled),
		zap.Int("function_calls", snap.FunctionCalls),
		zap.Int("model_calls", snap.ModelCalls),
		zap.Duration("elapsed", snap.Elapsed),
	)
	o.hooks.OnComplete(ctx, result)
	return result
}

// CancelLastTurn removes the trailing unanswered user message under the
// conversation's turn lock, so it cannot race a turn that is still running.
func (o *Orchestrator) CancelLastTurn(ctx context.Context, userID, conversationID int64) (*entity.Message, error) {
	if _, err := o.deps.Conversations.Owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if o.deps.Locker != nil {
		release, err := o.deps.Locker.Acquire(ctx, conversationID)
		if err != nil {
			if errors.Is(err, ErrTurnInProgress) {
				return nil, domainErrors.NewConflictError(MsgTurnInProgress)
			}
			return nil, err
		}
		defer release()
	}
	return o.deps.Conversations.CancelLastTurn(ctx, userID, conversationID)
}

// callModel sends one request. Empty replies are reported as ErrNoResponse.
func (o *Orchestrator) callModel(t *turn, req *LLMRequest) (*LLMResponse, error) {
	t.sm.RecordModelCall()
	round := t.sm.Snapshot().ModelCalls
	o.hooks.BeforeModelCall(t.ctx, req, round)

	resp, err := o.deps.LLM.Generate(t.ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Empty() {
		return nil, ErrNoResponse
	}
	o.hooks.AfterModelCall(t.ctx, resp, round)
	return resp, nil
}

func (o *Orchestrator) failModel(t *turn, err error) *TurnResult {
	if errors.Is(err, ErrNoResponse) {
		return o.fail(t, domainErrors.CodeServiceUnavail, MsgNoResponse, err)
	}

	llmErr := ClassifyError(err, "", o.config.Model)
	switch llmErr.Kind {
	case ErrKindRateLimit:
		return o.fail(t, domainErrors.CodeRateLimited, MsgRateLimited, llmErr)
	case ErrKindTimeout:
		return o.fail(t, domainErrors.CodeServiceUnavail, MsgTimeout, llmErr)
	case ErrKindCancelled:
		return o.fail(t, domainErrors.CodeServiceUnavail, MsgCancelled, llmErr)
	default:
		return o.fail(t, domainErrors.CodeServiceUnavail, MsgGeneric, llmErr)
	}
}

// fail moves the turn to Error, logs the full cause and returns a
// non-leaking result. A caller abort also removes the stored user message.
func (o *Orchestrator) fail(t *turn, code domainErrors.ErrorCode, userMessage string, cause error) *TurnResult {
	_ = t.sm.Transition(StateError)

	snap := t.sm.Snapshot()
	fields := []zap.Field{
		zap.String("code", string(code)),
		zap.String("state", string(snap.State)),
		zap.Int("function_calls", snap.FunctionCalls),
		zap.Error(cause),
	}
	if code == domainErrors.CodeInvalidInput || code == domainErrors.CodeConflict {
		t.logger.Warn("Turn rejected", fields...)
	} else {
		t.logger.Error("Turn failed", fields...)
	}

	if errors.Is(t.ctx.Err(), context.Canceled) && t.userMsg != nil {
		// The request context is already done; the compensating delete must outlive it.
		cleanupCtx := context.WithoutCancel(t.ctx)
		if err := o.deps.Conversations.Remove(cleanupCtx, t.userMsg); err != nil {
			t.logger.Error("Failed to remove user message of aborted turn",
				zap.Int64("message_id", t.userMsg.ID()),
				zap.Error(err),
			)
		} else {
			t.logger.Info("Removed user message of aborted turn", zap.Int64("message_id", t.userMsg.ID()))
		}
	}

	o.hooks.OnError(t.ctx, cause)
	return &TurnResult{
		Success:        false,
		Error:          userMessage,
		ConversationID: conversationID(t.conv),
		Code:           code,
	}
}

func historyToLLM(history []*entity.Message) []LLMMessage {
	out := make([]LLMMessage, 0, len(history)+1)
	for _, m := range history {
		role := RoleUser
		if m.Role() == entity.RoleAssistant {
			role = RoleAssistant
		}
		out = append(out, LLMMessage{Role: role, Content: m.Content()})
	}
	return out
}

func conversationID(conv *entity.Conversation) int64 {
	if conv == nil {
		return 0
	}
	return conv.ID()
}
