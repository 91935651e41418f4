package entity

import "errors"

var (
	// Conversation errors
	ErrInvalidConversationID = errors.New("invalid conversation id")
	ErrInvalidOwner          = errors.New("invalid conversation owner")

	// Message errors
	ErrInvalidMessageRole = errors.New("invalid message role")
	ErrEmptyMessage       = errors.New("message content is empty")

	// Audit errors
	ErrInvalidAuditTool = errors.New("audit record requires a tool name")
)
