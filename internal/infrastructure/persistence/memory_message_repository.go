package persistence

import (
	"context"
	"sync"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/pkg/errors"
)

// MemoryMessageRepository 内存实现的消息仓储（用于开发/测试）
type MemoryMessageRepository struct {
	mu     sync.RWMutex
	nextID int64
	// 会话ID到消息列表的映射, 按插入顺序
	convMessages map[int64][]*entity.Message
}

// NewMemoryMessageRepository 创建内存消息仓储
func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		convMessages: make(map[int64][]*entity.Message),
	}
}

// Save 保存消息
func (r *MemoryMessageRepository) Save(_ context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	message.AssignID(r.nextID)
	convID := message.ConversationID()
	r.convMessages[convID] = append(r.convMessages[convID], message)
	return nil
}

// FindByConversation 按创建顺序返回会话全部消息
func (r *MemoryMessageRepository) FindByConversation(_ context.Context, conversationID int64) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.convMessages[conversationID]
	out := make([]*entity.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// FindRecent 返回最近 limit 条消息
func (r *MemoryMessageRepository) FindRecent(_ context.Context, conversationID int64, limit int) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.convMessages[conversationID]
	start := 0
	if limit >= 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	out := make([]*entity.Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out, nil
}

// CountByRole 统计指定角色消息数
func (r *MemoryMessageRepository) CountByRole(_ context.Context, conversationID int64, role entity.MessageRole) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, m := range r.convMessages[conversationID] {
		if m.Role() == role {
			n++
		}
	}
	return n, nil
}

// Delete 删除单条消息
func (r *MemoryMessageRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for convID, msgs := range r.convMessages {
		for i, m := range msgs {
			if m.ID() == id {
				r.convMessages[convID] = append(msgs[:i:i], msgs[i+1:]...)
				return nil
			}
		}
	}
	return errors.NewNotFoundError("message not found")
}

// deleteConversation 级联删除会话消息
func (r *MemoryMessageRepository) deleteConversation(conversationID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convMessages, conversationID)
}
