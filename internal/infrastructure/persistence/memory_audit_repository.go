package persistence

import (
	"context"
	"sync"

	"github.com/smilecare/gateway/internal/domain/entity"
)

// MemoryAuditRepository 内存实现的审计仓储
type MemoryAuditRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []*entity.AuditRecord
}

// NewMemoryAuditRepository 创建内存审计仓储
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

// Append 追加审计记录
func (r *MemoryAuditRepository) Append(_ context.Context, record *entity.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	record.AssignID(r.nextID)
	r.records = append(r.records, record)
	return nil
}

// ListRecent 返回最近的审计记录, 最新在前
func (r *MemoryAuditRepository) ListRecent(_ context.Context, limit int) ([]*entity.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.AuditRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}
