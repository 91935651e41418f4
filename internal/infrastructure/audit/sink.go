package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/domain/repository"
	"github.com/smilecare/gateway/internal/domain/service"
	"github.com/smilecare/gateway/internal/domain/tool"
	"github.com/smilecare/gateway/internal/domain/valueobject"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// Sink 审计写入器, 把敏感工具调用追加到审计仓储
type Sink struct {
	repo   repository.AuditRepository
	logger *zap.Logger
}

var _ service.AuditSink = (*Sink)(nil)

// NewSink 创建审计写入器
func NewSink(repo repository.AuditRepository, logger *zap.Logger) *Sink {
	return &Sink{
		repo:   repo,
		logger: logger.With(zap.String("component", "audit")),
	}
}

// Record implements service.AuditSink. args must already be redacted.
func (s *Sink) Record(ctx context.Context, caller valueobject.Caller, toolName string, args map[string]interface{}) error {
	record, err := entity.NewAuditRecord(caller.UserID(), caller.Name(), caller.Label(), toolName, args)
	if err != nil {
		return err
	}
	if err := s.repo.Append(ctx, record); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	s.logger.Debug("Audit record written",
		service.TraceField(ctx),
		zap.Int64("audit_id", record.ID()),
		zap.String("tool", toolName),
	)
	return nil
}

// Search answers the search_audit_logs tool from the audit trail.
// Supported filters: userName, action (matches tool or action name), startDate, endDate, limit.
func (s *Sink) Search(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	limit := defaultSearchLimit
	if n, ok := tool.Int(args, "limit"); ok && n > 0 {
		limit = int(n)
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	userName, _ := tool.String(args, "userName")
	userName = strings.ToLower(strings.TrimSpace(userName))
	action, _ := tool.String(args, "action")
	action = strings.ToLower(strings.TrimSpace(action))
	from, err := parseDate(args, "startDate")
	if err != nil {
		return nil, err
	}
	to, err := parseDate(args, "endDate")
	if err != nil {
		return nil, err
	}

	// 先多取一些再过滤
	records, err := s.repo.ListRecent(ctx, maxSearchLimit)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, limit)
	for _, r := range records {
		if len(out) >= limit {
			break
		}
		if userName != "" && !strings.Contains(strings.ToLower(r.UserName()), userName) {
			continue
		}
		if action != "" && !strings.Contains(r.Tool(), action) && !strings.Contains(r.Action(), action) {
			continue
		}
		if !from.IsZero() && r.OccurredAt().Before(from) {
			continue
		}
		if !to.IsZero() && !r.OccurredAt().Before(to.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, map[string]interface{}{
			"id":         r.ID(),
			"userId":     r.UserID(),
			"userName":   r.UserName(),
			"role":       r.Role(),
			"action":     r.Action(),
			"tool":       r.Tool(),
			"arguments":  r.Arguments(),
			"occurredAt": r.OccurredAt().Format(time.RFC3339),
		})
	}
	return out, nil
}

func parseDate(args map[string]interface{}, name string) (time.Time, error) {
	s, ok := tool.String(args, name)
	if !ok || strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &tool.ArgumentError{Field: name, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}
