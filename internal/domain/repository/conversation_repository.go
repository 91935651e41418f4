package repository

import (
	"context"

	"github.com/smilecare/gateway/internal/domain/entity"
)

// ConversationRepository 会话仓储接口
type ConversationRepository interface {
	// Create 创建会话并回填ID
	Create(ctx context.Context, conv *entity.Conversation) error

	// FindByID 根据ID查找会话
	FindByID(ctx context.Context, id int64) (*entity.Conversation, error)

	// ListByUser 按更新时间倒序列出用户会话
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.Conversation, error)

	// Update 更新标题与时间戳
	Update(ctx context.Context, conv *entity.Conversation) error

	// Delete 删除会话及其所有消息
	Delete(ctx context.Context, id int64) error
}
