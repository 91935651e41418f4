package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditRecordModel 审计记录模型, 只追加
type AuditRecordModel struct {
	ID         int64          `gorm:"primaryKey;autoIncrement"`
	UserID     int64          `gorm:"index"`
	UserName   string         `gorm:"size:128"`
	Role       string         `gorm:"size:16"`
	Action     string         `gorm:"size:64;not null"`
	Tool       string         `gorm:"size:64;index;not null"`
	Arguments  datatypes.JSON `gorm:"type:json"` // 已脱敏
	OccurredAt time.Time      `gorm:"index;not null"`
}

// TableName 指定表名
func (AuditRecordModel) TableName() string {
	return "chat_audit_logs"
}
