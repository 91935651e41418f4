package entity

import (
	"strings"
	"time"
)

// MessageRole 消息角色, 只有最终用户可见的文本才会持久化
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Valid 是否为合法角色
func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message 消息实体
type Message struct {
	id             int64
	conversationID int64
	role           MessageRole
	content        string
	functionCalled string
	createdAt      time.Time
}

// NewMessage 创建新消息（工厂方法）
//
// functionCalled 是产生该助手回复的工具名, 仅用于观测。
func NewMessage(conversationID int64, role MessageRole, content, functionCalled string) (*Message, error) {
	if conversationID <= 0 {
		return nil, ErrInvalidConversationID
	}
	if !role.Valid() {
		return nil, ErrInvalidMessageRole
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if role == RoleUser {
		functionCalled = ""
	}

	return &Message{
		conversationID: conversationID,
		role:           role,
		content:        content,
		functionCalled: functionCalled,
		createdAt:      time.Now().UTC(),
	}, nil
}

// ReconstructMessage 重建消息（用于从持久化层恢复）
func ReconstructMessage(id, conversationID int64, role MessageRole, content, functionCalled string, createdAt time.Time) *Message {
	return &Message{
		id:             id,
		conversationID: conversationID,
		role:           role,
		content:        content,
		functionCalled: functionCalled,
		createdAt:      createdAt,
	}
}

// ID 返回消息ID
func (m *Message) ID() int64 { return m.id }

// ConversationID 返回会话ID
func (m *Message) ConversationID() int64 { return m.conversationID }

// Role 返回角色
func (m *Message) Role() MessageRole { return m.role }

// Content 返回文本内容
func (m *Message) Content() string { return m.content }

// FunctionCalled 返回工具标签
func (m *Message) FunctionCalled() string { return m.functionCalled }

// CreatedAt 返回创建时间
func (m *Message) CreatedAt() time.Time { return m.createdAt }

// AssignID 由持久化层在插入后回填ID
func (m *Message) AssignID(id int64) { m.id = id }
