package repository

import (
	"context"

	"github.com/smilecare/gateway/internal/domain/entity"
)

// AuditRepository 审计记录仓储接口, 只追加
type AuditRepository interface {
	Append(ctx context.Context, record *entity.AuditRecord) error

	// ListRecent 返回最近的审计记录, 最新在前
	ListRecent(ctx context.Context, limit int) ([]*entity.AuditRecord, error)
}
