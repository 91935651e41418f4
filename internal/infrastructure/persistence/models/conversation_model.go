package models

import "time"

// ConversationModel 数据库会话模型
type ConversationModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"index;not null"`
	Title     string    `gorm:"size:128"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"`
}

// TableName 指定表名
func (ConversationModel) TableName() string {
	return "chat_conversations"
}
