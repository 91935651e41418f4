package persistence

import (
	"context"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/domain/repository"
	"github.com/smilecare/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
	"gorm.io/gorm"
)

// GormMessageRepository GORM 实现的消息仓储
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GORM 消息仓储
func NewGormMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &GormMessageRepository{db: db}
}

// Save 保存消息
func (r *GormMessageRepository) Save(ctx context.Context, message *entity.Message) error {
	model := toMessageModel(message)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to save message", err)
	}
	message.AssignID(model.ID)
	return nil
}

// FindByConversation 按创建顺序返回会话全部消息
func (r *GormMessageRepository) FindByConversation(ctx context.Context, conversationID int64) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to find messages", err)
	}
	return toMessageEntities(rows), nil
}

// FindRecent 返回最近 limit 条消息, 按创建顺序排列
func (r *GormMessageRepository) FindRecent(ctx context.Context, conversationID int64, limit int) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to find recent messages", err)
	}

	// 查询是倒序的, 翻转回时间顺序
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return toMessageEntities(rows), nil
}

// CountByRole 统计指定角色消息数
func (r *GormMessageRepository) CountByRole(ctx context.Context, conversationID int64, role entity.MessageRole) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("conversation_id = ? AND role = ?", conversationID, string(role)).
		Count(&count).Error
	if err != nil {
		return 0, domainErrors.NewInternalErrorWithCause("failed to count messages", err)
	}
	return count, nil
}

// Delete 删除单条消息
func (r *GormMessageRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&models.MessageModel{}, "id = ?", id)
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to delete message", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("message not found")
	}
	return nil
}

func toMessageModel(m *entity.Message) *models.MessageModel {
	return &models.MessageModel{
		ID:             m.ID(),
		ConversationID: m.ConversationID(),
		Role:           string(m.Role()),
		Content:        m.Content(),
		FunctionCalled: m.FunctionCalled(),
		CreatedAt:      m.CreatedAt(),
	}
}

func toMessageEntity(model *models.MessageModel) *entity.Message {
	return entity.ReconstructMessage(
		model.ID,
		model.ConversationID,
		entity.MessageRole(model.Role),
		model.Content,
		model.FunctionCalled,
		model.CreatedAt,
	)
}

func toMessageEntities(rows []models.MessageModel) []*entity.Message {
	out := make([]*entity.Message, 0, len(rows))
	for i := range rows {
		out = append(out, toMessageEntity(&rows[i]))
	}
	return out
}
