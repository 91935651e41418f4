package persistence

import (
	"context"
	"errors"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/domain/repository"
	"github.com/smilecare/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
	"gorm.io/gorm"
)

// GormConversationRepository GORM 实现的会话仓储
type GormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository 创建 GORM 会话仓储
func NewGormConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &GormConversationRepository{db: db}
}

// Create 创建会话
func (r *GormConversationRepository) Create(ctx context.Context, conv *entity.Conversation) error {
	model := toConversationModel(conv)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to create conversation", err)
	}
	conv.AssignID(model.ID)
	return nil
}

// FindByID 根据ID查找会话
func (r *GormConversationRepository) FindByID(ctx context.Context, id int64) (*entity.Conversation, error) {
	var model models.ConversationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("conversation not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find conversation", err)
	}
	return toConversationEntity(&model), nil
}

// ListByUser 按更新时间倒序列出用户会话
func (r *GormConversationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.Conversation, error) {
	var rows []models.ConversationModel
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list conversations", err)
	}

	convs := make([]*entity.Conversation, 0, len(rows))
	for i := range rows {
		convs = append(convs, toConversationEntity(&rows[i]))
	}
	return convs, nil
}

// Update 更新标题与时间戳
func (r *GormConversationRepository) Update(ctx context.Context, conv *entity.Conversation) error {
	result := r.db.WithContext(ctx).
		Model(&models.ConversationModel{}).
		Where("id = ?", conv.ID()).
		Updates(map[string]interface{}{
			"title":      conv.Title(),
			"updated_at": conv.UpdatedAt(),
		})
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to update conversation", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("conversation not found")
	}
	return nil
}

// Delete 删除会话及其消息
func (r *GormConversationRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.MessageModel{}).Error; err != nil {
			return domainErrors.NewInternalErrorWithCause("failed to delete messages", err)
		}
		result := tx.Delete(&models.ConversationModel{}, "id = ?", id)
		if result.Error != nil {
			return domainErrors.NewInternalErrorWithCause("failed to delete conversation", result.Error)
		}
		if result.RowsAffected == 0 {
			return domainErrors.NewNotFoundError("conversation not found")
		}
		return nil
	})
}

func toConversationModel(conv *entity.Conversation) *models.ConversationModel {
	return &models.ConversationModel{
		ID:        conv.ID(),
		UserID:    conv.UserID(),
		Title:     conv.Title(),
		CreatedAt: conv.CreatedAt(),
		UpdatedAt: conv.UpdatedAt(),
	}
}

func toConversationEntity(model *models.ConversationModel) *entity.Conversation {
	return entity.ReconstructConversation(model.ID, model.UserID, model.Title, model.CreatedAt, model.UpdatedAt)
}
