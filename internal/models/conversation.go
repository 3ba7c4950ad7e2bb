package models

import (
	"time"
)

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 对话消息表（本服务只读）
type ChatMessage struct {
	MessageID      int64     `gorm:"primaryKey;column:message_id" json:"message_id"`
	UserID         int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	ConversationID string    `gorm:"column:conversation_id;size:64;not null;index" json:"conversation_id"`
	Role           string    `gorm:"column:role;size:20;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
