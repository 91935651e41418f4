package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/smilecare/gateway/internal/domain/service"
	llm "github.com/smilecare/gateway/internal/infrastructure/llm"
)

const defaultModel = "gpt-4o-mini"

func init() {
	llm.RegisterFactory("openai", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider talks to any OpenAI-compatible chat completions endpoint through go-openai.
// Compatible with: OpenAI, DeepSeek, Qwen, Ollama, vLLM, etc.
type Provider struct {
	name   string
	apiKey string
	model  string
	client *goopenai.Client
	logger *zap.Logger
}

// New creates an OpenAI-compatible provider.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		clientCfg.BaseURL = base
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	return &Provider{
		name:   name,
		apiKey: cfg.APIKey,
		model:  model,
		client: goopenai.NewClientWithConfig(clientCfg),
		logger: logger.With(zap.String("provider", name), zap.String("type", "openai")),
	}
}

// Compile-time interface check
var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Name() string { return p.name }

func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}

// Generate implements service.LLMClient.
func (p *Provider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	chatReq, err := BuildRequest(req, p.model)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	return ParseResponse(resp)
}

// BuildRequest converts a provider-neutral request into a chat completion request.
func BuildRequest(req *service.LLMRequest, fallbackModel string) (goopenai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = fallbackModel
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case service.RoleAssistant:
			out := goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				args, err := toolCallArguments(tc)
				if err != nil {
					return goopenai.ChatCompletionRequest{}, err
				}
				out.ToolCalls = append(out.ToolCalls, goopenai.ToolCall{
					ID:   tc.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      tc.Name,
						Arguments: args,
					},
				})
			}
			messages = append(messages, out)

		case service.RoleTool:
			content := msg.Content
			if msg.Payload != nil {
				payload, err := json.Marshal(msg.Payload)
				if err != nil {
					return goopenai.ChatCompletionRequest{}, fmt.Errorf("marshal tool result: %w", err)
				}
				content = string(payload)
			}
			messages = append(messages, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    content,
				Name:       msg.Name,
				ToolCallID: msg.ToolCallID,
			})

		default:
			messages = append(messages, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	}
	for _, td := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}
	return chatReq, nil
}

// toolCallArguments echoes the model's own argument text when it did not decode.
func toolCallArguments(tc service.ToolCall) (string, error) {
	if tc.RawArguments != "" {
		return tc.RawArguments, nil
	}
	data, err := json.Marshal(tc.Arguments)
	if err != nil {
		return "", fmt.Errorf("marshal tool call arguments: %w", err)
	}
	return string(data), nil
}

// ParseResponse extracts text and tool calls from the first choice.
func ParseResponse(resp goopenai.ChatCompletionResponse) (*service.LLMResponse, error) {
	out := &service.LLMResponse{
		ModelUsed:  resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}
	if len(resp.Choices) == 0 {
		return out, nil
	}

	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonContentFilter {
		return nil, fmt.Errorf("openai response blocked by content filter")
	}

	out.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		call := service.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: map[string]interface{}{},
		}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Arguments); err != nil || call.Arguments == nil {
				// 参数不是合法 JSON 对象, 原样交给执行器的参数校验报告给模型
				call.Arguments = nil
				call.RawArguments = tc.Function.Arguments
			}
		}
		out.ToolCalls = append(out.ToolCalls, call)
	}
	return out, nil
}
