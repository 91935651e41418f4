package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LLMErrorKind classifies inference errors for reporting and user messaging.
// Nothing in the turn retries; the kind only decides what the caller is told.
type LLMErrorKind int

const (
	// ErrKindTransient covers network resets, 5xx and an open circuit breaker.
	ErrKindTransient LLMErrorKind = iota

	// ErrKindAuth means the provider rejected our credentials (401/403).
	ErrKindAuth

	// ErrKindBadRequest means the request itself is malformed (400, unknown model).
	ErrKindBadRequest

	// ErrKindContentFilter means the provider's safety policy blocked the request.
	ErrKindContentFilter

	// ErrKindRateLimit means the provider is throttling us (429, quota).
	ErrKindRateLimit

	// ErrKindTimeout means the call exceeded its deadline.
	ErrKindTimeout

	// ErrKindCancelled means the caller aborted the turn.
	ErrKindCancelled
)

// String returns a human-readable label for the error kind.
func (k LLMErrorKind) String() string {
	switch k {
	case ErrKindTransient:
		return "transient"
	case ErrKindAuth:
		return "auth"
	case ErrKindBadRequest:
		return "bad_request"
	case ErrKindContentFilter:
		return "content_filter"
	case ErrKindRateLimit:
		return "rate_limit"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// LLMError is a structured error from an inference call.
type LLMError struct {
	Kind       LLMErrorKind
	Message    string
	StatusCode int // HTTP status code if known
	Provider   string
	Model      string
	Cause      error
}

// Error implements the error interface.
func (e *LLMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap enables errors.Is/errors.As on the cause chain.
func (e *LLMError) Unwrap() error {
	return e.Cause
}

var classifyRules = []struct {
	kind     LLMErrorKind
	message  string
	patterns []string
}{
	{ErrKindRateLimit, "rate limited", []string{"429", "rate limit", "too many requests", "resource_exhausted", "quota"}},
	{ErrKindAuth, "authentication failed", []string{"401", "403", "unauthorized", "invalid api key", "api key not valid", "permission denied"}},
	{ErrKindContentFilter, "content filtered", []string{"content filter", "content policy", "safety", "blocked"}},
	{ErrKindBadRequest, "invalid request", []string{"400", "bad request", "invalid argument", "invalid_request", "model not found"}},
}

// ClassifyError examines an error and returns a classified LLMError.
// An *LLMError anywhere in the chain is returned as-is; otherwise
// context errors are checked first and the error text is pattern-matched.
func ClassifyError(err error, provider, model string) *LLMError {
	if err == nil {
		return nil
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &LLMError{Kind: ErrKindTimeout, Message: "request timed out", Provider: provider, Model: model, Cause: err}
	case errors.Is(err, context.Canceled):
		return &LLMError{Kind: ErrKindCancelled, Message: "request cancelled", Provider: provider, Model: model, Cause: err}
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "deadline exceeded") || strings.Contains(errStr, "timeout") {
		return &LLMError{Kind: ErrKindTimeout, Message: "request timed out", Provider: provider, Model: model, Cause: err}
	}

	for _, rule := range classifyRules {
		for _, p := range rule.patterns {
			if strings.Contains(errStr, p) {
				return &LLMError{
					Kind:       rule.kind,
					Message:    rule.message,
					StatusCode: extractStatusCode(errStr),
					Provider:   provider,
					Model:      model,
					Cause:      err,
				}
			}
		}
	}

	return &LLMError{
		Kind:       ErrKindTransient,
		Message:    "transient error",
		StatusCode: extractStatusCode(errStr),
		Provider:   provider,
		Model:      model,
		Cause:      err,
	}
}

// extractStatusCode tries to find HTTP status codes in an error string.
func extractStatusCode(errStr string) int {
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			return code
		}
	}
	return 0
}
