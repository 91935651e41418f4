package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// traceIDKey is the private context key for trace IDs.
type traceIDKey struct{}

// WithTraceID injects a trace ID into the context.
// If traceID is empty, a random one is generated.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = newTraceID()
	}
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext extracts the trace ID from the context.
// Returns empty string if no trace ID is set.
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// TraceField returns the trace ID as a log field.
func TraceField(ctx context.Context) zap.Field {
	return zap.String("trace_id", TraceIDFromContext(ctx))
}

// newTraceID creates a 16-character hex trace ID.
func newTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
