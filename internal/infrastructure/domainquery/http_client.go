package domainquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smilecare/gateway/internal/domain/service"
)

// maxBodyBytes 领域查询响应上限
const maxBodyBytes = 8 << 20

// ErrInvalidRequest is returned for a request that did not come from an authorization grant.
var ErrInvalidRequest = errors.New("domain query request was not issued by the authorization gate")

// HTTPClient calls a remote domain query service: POST {baseURL}/queries/{tool}.
// A 404 or an empty body is a not-found result, not an error.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

var _ service.DomainQueryService = (*HTTPClient)(nil)

// NewHTTPClient 创建领域查询 HTTP 客户端
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "domain_query")),
	}
}

// Query implements service.DomainQueryService.
func (c *HTTPClient) Query(ctx context.Context, req service.QueryRequest) (interface{}, error) {
	if !req.Valid() {
		return nil, ErrInvalidRequest
	}

	body, err := json.Marshal(req.Args())
	if err != nil {
		return nil, fmt.Errorf("marshal query arguments: %w", err)
	}

	endpoint := fmt.Sprintf("%s/queries/%s", c.baseURL, url.PathEscape(req.Tool()))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if traceID := service.TraceIDFromContext(ctx); traceID != "" {
		httpReq.Header.Set("X-Trace-ID", traceID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("domain query %s: %w", req.Tool(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read domain query response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusNoContent:
		c.logger.Debug("Domain query found nothing",
			service.TraceField(ctx),
			zap.String("tool", req.Tool()),
			zap.Int("status", resp.StatusCode),
		)
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		// 响应体可能包含病人数据, 不写入错误
		return nil, fmt.Errorf("domain query %s: status %d", req.Tool(), resp.StatusCode)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode domain query response: %w", err)
	}
	return data, nil
}
