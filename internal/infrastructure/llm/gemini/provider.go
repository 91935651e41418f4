package gemini

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/smilecare/gateway/internal/domain/service"
	llm "github.com/smilecare/gateway/internal/infrastructure/llm"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"

	// 响应体上限, 防止异常响应占满内存
	maxResponseBytes = 4 << 20
)

func init() {
	llm.RegisterFactory("gemini", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider implements the Google Gemini API natively.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// New creates a Google Gemini API provider.
// The deadline of each call comes from the context, not the http.Client.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	name := cfg.Name
	if name == "" {
		name = "gemini"
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Provider{
		name:    name,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  &http.Client{Transport: transport},
		logger:  logger.With(zap.String("provider", name), zap.String("type", "gemini")),
	}
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Name() string { return p.name }

func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}

// Generate implements service.LLMClient.
func (p *Provider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := json.Marshal(BuildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, stripPrefix(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, respBody)
	}

	return ParseResponse(respBody)
}

// BuildRequest converts a provider-neutral request into the Gemini wire format.
// Consecutive tool messages are grouped into one user turn, as the API expects
// all function responses of a model turn together.
func BuildRequest(req *service.LLMRequest) *Request {
	apiReq := &Request{
		GenerationConfig: &GenerationConfig{Temperature: req.Temperature},
	}
	if req.System != "" {
		apiReq.SystemInstruction = &Content{Parts: []Part{{Text: req.System}}}
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case service.RoleAssistant:
			content := Content{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]interface{}{}
				}
				content.Parts = append(content.Parts, Part{
					FunctionCall: &FunctionCall{Name: tc.Name, Args: args},
				})
			}
			if len(content.Parts) > 0 {
				apiReq.Contents = append(apiReq.Contents, content)
			}

		case service.RoleTool:
			part := Part{FunctionResponse: &FunctionResponse{
				Name:     msg.Name,
				Response: functionResponse(msg),
			}}
			if n := len(apiReq.Contents); n > 0 && isFunctionResponseTurn(apiReq.Contents[n-1]) {
				apiReq.Contents[n-1].Parts = append(apiReq.Contents[n-1].Parts, part)
				continue
			}
			apiReq.Contents = append(apiReq.Contents, Content{Role: "user", Parts: []Part{part}})

		default: // user
			apiReq.Contents = append(apiReq.Contents, Content{
				Role:  "user",
				Parts: []Part{{Text: msg.Content}},
			})
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]FunctionDeclarationSpec, 0, len(req.Tools))
		for _, td := range req.Tools {
			decls = append(decls, FunctionDeclarationSpec{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			})
		}
		apiReq.Tools = []ToolDeclaration{{FunctionDeclarations: decls}}
		apiReq.ToolConfig = &ToolConfig{FunctionCallingConfig: FunctionCallingConfig{Mode: "AUTO"}}
	}

	return apiReq
}

// ParseResponse extracts text and function calls from the first candidate.
func ParseResponse(body []byte) (*service.LLMResponse, error) {
	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parse Gemini response: %w", err)
	}

	if apiResp.PromptFeedback != nil && apiResp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("gemini prompt blocked by safety filter: %s", apiResp.PromptFeedback.BlockReason)
	}

	resp := &service.LLMResponse{ModelUsed: apiResp.ModelVersion}
	if apiResp.UsageMetadata != nil {
		resp.TokensUsed = apiResp.UsageMetadata.Total()
	}
	if len(apiResp.Candidates) == 0 {
		// 无候选: 交给编排器按 "no response" 处理
		return resp, nil
	}

	candidate := apiResp.Candidates[0]
	if candidate.FinishReason == "SAFETY" && len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response blocked by safety filter")
	}

	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			resp.Content += part.Text
		}
		if part.FunctionCall != nil {
			resp.ToolCalls = append(resp.ToolCalls, service.ToolCall{
				ID:        fmt.Sprintf("call_%s_%d", part.FunctionCall.Name, len(resp.ToolCalls)),
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}

	return resp, nil
}

// --- Internal ---

func stripPrefix(model string) string {
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}

func functionResponse(msg service.LLMMessage) map[string]interface{} {
	if msg.Payload != nil {
		return msg.Payload
	}
	return map[string]interface{}{"output": msg.Content}
}

func isFunctionResponseTurn(c Content) bool {
	if c.Role != "user" || len(c.Parts) == 0 {
		return false
	}
	for _, part := range c.Parts {
		if part.FunctionResponse == nil {
			return false
		}
	}
	return true
}

// apiError keeps the status code in the message so the error can be classified upstream.
func apiError(status int, body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return fmt.Errorf("Gemini API error %d (%s): %s", status, env.Error.Status, env.Error.Message)
	}
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	return fmt.Errorf("Gemini API error %d: %s", status, snippet)
}
