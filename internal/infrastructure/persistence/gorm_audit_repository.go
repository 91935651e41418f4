package persistence

import (
	"context"
	"encoding/json"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/domain/repository"
	"github.com/smilecare/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormAuditRepository GORM 实现的审计仓储
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository 创建 GORM 审计仓储
func NewGormAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &GormAuditRepository{db: db}
}

// Append 追加审计记录
func (r *GormAuditRepository) Append(ctx context.Context, record *entity.AuditRecord) error {
	args, err := json.Marshal(record.Arguments())
	if err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to encode audit arguments", err)
	}

	model := &models.AuditRecordModel{
		UserID:     record.UserID(),
		UserName:   record.UserName(),
		Role:       record.Role(),
		Action:     record.Action(),
		Tool:       record.Tool(),
		Arguments:  datatypes.JSON(args),
		OccurredAt: record.OccurredAt(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to append audit record", err)
	}
	record.AssignID(model.ID)
	return nil
}

// ListRecent 返回最近的审计记录
func (r *GormAuditRepository) ListRecent(ctx context.Context, limit int) ([]*entity.AuditRecord, error) {
	var rows []models.AuditRecordModel
	if err := r.db.WithContext(ctx).Order("occurred_at desc").Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list audit records", err)
	}

	out := make([]*entity.AuditRecord, 0, len(rows))
	for _, row := range rows {
		args := map[string]interface{}{}
		if len(row.Arguments) > 0 {
			if err := json.Unmarshal(row.Arguments, &args); err != nil {
				return nil, domainErrors.NewInternalErrorWithCause("failed to decode audit arguments", err)
			}
		}
		out = append(out, entity.ReconstructAuditRecord(row.ID, row.UserID, row.UserName, row.Role, row.Action, row.Tool, args, row.OccurredAt))
	}
	return out, nil
}
