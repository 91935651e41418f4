package repository

import (
	"context"

	"github.com/smilecare/gateway/internal/domain/entity"
)

// MessageRepository 消息仓储接口
type MessageRepository interface {
	// Save 保存消息并回填ID
	Save(ctx context.Context, message *entity.Message) error

	// FindByConversation 按创建顺序返回会话全部消息
	FindByConversation(ctx context.Context, conversationID int64) ([]*entity.Message, error)

	// FindRecent 返回最近 limit 条消息, 按创建顺序排列
	FindRecent(ctx context.Context, conversationID int64, limit int) ([]*entity.Message, error)

	// CountByRole 统计指定角色消息数
	CountByRole(ctx context.Context, conversationID int64, role entity.MessageRole) (int64, error)

	// Delete 删除单条消息
	Delete(ctx context.Context, id int64) error
}
