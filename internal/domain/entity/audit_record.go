package entity

import (
	"strings"
	"time"
)

// AuditRecord 审计记录, 只追加不修改
type AuditRecord struct {
	id         int64
	userID     int64
	userName   string
	role       string
	action     string
	tool       string
	arguments  map[string]interface{}
	occurredAt time.Time
}

// AuditActionToolInvoked 敏感工具调用审计动作
const AuditActionToolInvoked = "chat_tool_invoked"

// NewAuditRecord 创建审计记录
//
// arguments 必须是已脱敏的参数副本。
func NewAuditRecord(userID int64, userName, role, tool string, arguments map[string]interface{}) (*AuditRecord, error) {
	if strings.TrimSpace(tool) == "" {
		return nil, ErrInvalidAuditTool
	}
	args := make(map[string]interface{}, len(arguments))
	for k, v := range arguments {
		args[k] = v
	}
	return &AuditRecord{
		userID:     userID,
		userName:   strings.TrimSpace(userName),
		role:       role,
		action:     AuditActionToolInvoked,
		tool:       tool,
		arguments:  args,
		occurredAt: time.Now().UTC(),
	}, nil
}

// ReconstructAuditRecord 重建审计记录
func ReconstructAuditRecord(id, userID int64, userName, role, action, tool string, arguments map[string]interface{}, occurredAt time.Time) *AuditRecord {
	return &AuditRecord{
		id:         id,
		userID:     userID,
		userName:   userName,
		role:       role,
		action:     action,
		tool:       tool,
		arguments:  arguments,
		occurredAt: occurredAt,
	}
}

func (a *AuditRecord) ID() int64             { return a.id }
func (a *AuditRecord) UserID() int64         { return a.userID }
func (a *AuditRecord) UserName() string      { return a.userName }
func (a *AuditRecord) Role() string          { return a.role }
func (a *AuditRecord) Action() string        { return a.action }
func (a *AuditRecord) Tool() string          { return a.tool }
func (a *AuditRecord) OccurredAt() time.Time { return a.occurredAt }
func (a *AuditRecord) AssignID(id int64)     { a.id = id }

// Arguments 返回参数副本
func (a *AuditRecord) Arguments() map[string]interface{} {
	args := make(map[string]interface{}, len(a.arguments))
	for k, v := range a.arguments {
		args[k] = v
	}
	return args
}
