package entity

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Conversation 会话实体
//
// 只有已认证用户才拥有会话, 访客的对话是无状态的。
type Conversation struct {
	id        int64
	userID    int64
	title     string
	createdAt time.Time
	updatedAt time.Time
}

// NewConversation 创建新会话 (ID 由持久化层分配)
func NewConversation(userID int64) (*Conversation, error) {
	if userID <= 0 {
		return nil, ErrInvalidOwner
	}
	now := time.Now().UTC()
	return &Conversation{
		userID:    userID,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructConversation 重建会话（用于从持久化层恢复）
func ReconstructConversation(id, userID int64, title string, createdAt, updatedAt time.Time) *Conversation {
	return &Conversation{
		id:        id,
		userID:    userID,
		title:     title,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID 返回会话ID
func (c *Conversation) ID() int64 { return c.id }

// UserID 返回所属用户ID
func (c *Conversation) UserID() int64 { return c.userID }

// Title 返回标题, 尚未生成时为空
func (c *Conversation) Title() string { return c.title }

// HasTitle 是否已有标题
func (c *Conversation) HasTitle() bool { return c.title != "" }

// CreatedAt 返回创建时间
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt 返回更新时间
func (c *Conversation) UpdatedAt() time.Time { return c.updatedAt }

// OwnedBy 是否属于指定用户
func (c *Conversation) OwnedBy(userID int64) bool {
	return userID > 0 && c.userID == userID
}

// AssignID 由持久化层在插入后回填ID
func (c *Conversation) AssignID(id int64) { c.id = id }

// SetTitle 设置标题
func (c *Conversation) SetTitle(title string) {
	c.title = title
	c.Touch()
}

// Touch 更新时间戳
func (c *Conversation) Touch() {
	c.updatedAt = time.Now().UTC()
}

// DeriveTitle 从首条用户消息生成简短标题
//
// 空白折叠后截断到 maxRunes, 尽量在词边界处截断并追加 "..."。
func DeriveTitle(text string, maxRunes int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return ""
	}
	if maxRunes <= 0 || utf8.RuneCountInString(collapsed) <= maxRunes {
		return collapsed
	}

	runes := []rune(collapsed)
	cut := string(runes[:maxRunes])
	if idx := strings.LastIndex(cut, " "); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:!?") + "..."
}
