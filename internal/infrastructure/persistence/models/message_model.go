package models

import "time"

// MessageModel 数据库消息模型
type MessageModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	ConversationID int64     `gorm:"index:idx_messages_conv_created,priority:1;not null"`
	Role           string    `gorm:"size:16;not null"` // user, assistant
	Content        string    `gorm:"type:text;not null"`
	FunctionCalled string    `gorm:"size:64"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conv_created,priority:2"`

	Conversation *ConversationModel `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (MessageModel) TableName() string {
	return "chat_messages"
}
