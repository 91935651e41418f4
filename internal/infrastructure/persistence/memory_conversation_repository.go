package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/pkg/errors"
)

// MemoryConversationRepository 内存实现的会话仓储（用于开发/测试）
type MemoryConversationRepository struct {
	mu       sync.RWMutex
	nextID   int64
	convs    map[int64]*entity.Conversation
	messages *MemoryMessageRepository
}

// NewMemoryConversationRepository 创建内存会话仓储, 删除时级联到 messages
func NewMemoryConversationRepository(messages *MemoryMessageRepository) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		convs:    make(map[int64]*entity.Conversation),
		messages: messages,
	}
}

// Create 创建会话
func (r *MemoryConversationRepository) Create(_ context.Context, conv *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	conv.AssignID(r.nextID)
	r.convs[conv.ID()] = conv
	return nil
}

// FindByID 根据ID查找会话
func (r *MemoryConversationRepository) FindByID(_ context.Context, id int64) (*entity.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.convs[id]
	if !ok {
		return nil, errors.NewNotFoundError("conversation not found")
	}
	return conv, nil
}

// ListByUser 按更新时间倒序列出用户会话
func (r *MemoryConversationRepository) ListByUser(_ context.Context, userID int64, limit int) ([]*entity.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Conversation, 0)
	for _, c := range r.convs {
		if c.UserID() == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt().Equal(out[j].UpdatedAt()) {
			return out[i].ID() > out[j].ID()
		}
		return out[i].UpdatedAt().After(out[j].UpdatedAt())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update 更新会话
func (r *MemoryConversationRepository) Update(_ context.Context, conv *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.convs[conv.ID()]; !ok {
		return errors.NewNotFoundError("conversation not found")
	}
	r.convs[conv.ID()] = conv
	return nil
}

// Delete 删除会话及其消息
func (r *MemoryConversationRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	if _, ok := r.convs[id]; !ok {
		r.mu.Unlock()
		return errors.NewNotFoundError("conversation not found")
	}
	delete(r.convs, id)
	r.mu.Unlock()

	if r.messages != nil {
		r.messages.deleteConversation(id)
	}
	return nil
}
