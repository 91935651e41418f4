package service

import (
	"context"
	"strings"

	"github.com/smilecare/gateway/internal/domain/tool"
)

// LLMClient is the inference service contract.
// Implementations translate LLMRequest into a provider's function-calling API.
type LLMClient interface {
	Generate(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}

// LLMRequest is one call to the inference service.
type LLMRequest struct {
	System      string            // System instruction
	Messages    []LLMMessage      // History plus the in-flight exchange
	Tools       []tool.Definition // Tool declarations, no authorization metadata
	Model       string            // Optional model override
	Temperature float64
}

// Message roles understood by providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// LLMMessage is a provider-neutral conversation message.
//
// An assistant message with ToolCalls is a function-call intent. A tool
// message carries the structured function response in Payload.
type LLMMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
	Payload    map[string]interface{}
}

// ToolCall is a function-call intent returned by the model.
type ToolCall struct {
	ID           string
	Name         string
	Arguments    map[string]interface{}
	RawArguments string // 无法解析为对象的原始参数文本
}

// Input is what the executor validates: the raw text when it did not decode.
func (c ToolCall) Input() interface{} {
	if c.RawArguments != "" {
		return c.RawArguments
	}
	return c.Arguments
}

// LLMResponse is the provider-neutral reply.
type LLMResponse struct {
	Content    string
	ToolCalls  []ToolCall
	ModelUsed  string
	TokensUsed int
}

// HasFunctionCall reports whether the model asked for a tool.
func (r *LLMResponse) HasFunctionCall() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Empty reports a reply with neither text nor a function call.
func (r *LLMResponse) Empty() bool {
	return r == nil || (strings.TrimSpace(r.Content) == "" && len(r.ToolCalls) == 0)
}
