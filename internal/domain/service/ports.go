package service

import (
	"context"
	"errors"

	"github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
)

// ToolExecutor dispatches a model's function call on behalf of a caller.
//
// Refusals, validation failures and empty results come back as a
// tool.Result for the model to explain. A non-nil error means the domain
// query service itself failed.
type ToolExecutor interface {
	Execute(ctx context.Context, caller valueobject.Caller, name string, rawArgs interface{}) (tool.Result, error)
}

// DomainQueryService answers gate-approved queries by tool name.
// An empty or nil result means nothing was found.
type DomainQueryService interface {
	Query(ctx context.Context, req QueryRequest) (interface{}, error)
}

// AuditSink durably records sensitive tool invocations.
// args must already be redacted.
type AuditSink interface {
	Record(ctx context.Context, caller valueobject.Caller, toolName string, args map[string]interface{}) error
}

// ErrTurnInProgress is returned when another turn holds the conversation.
var ErrTurnInProgress = errors.New("another turn is in progress for this conversation")

// TurnLocker serializes turns within one conversation.
type TurnLocker interface {
	// Acquire returns ErrTurnInProgress if the conversation is already locked.
	Acquire(ctx context.Context, conversationID int64) (release func(), err error)
}
