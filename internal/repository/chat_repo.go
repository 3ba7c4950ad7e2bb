package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zhitang/backend-go/internal/models"
)

// chatRepository 对话消息仓库实现
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建对话消息仓库
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// GetDB 获取数据库连接
func (r *chatRepository) GetDB() *gorm.DB {
	return r.db
}

// RecentUserMessages 时间窗口内的有效用户消息，分组与筛选在调用方完成
func (r *chatRepository) RecentUserMessages(ctx context.Context, since time.Time, minLen int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("role = ? AND created_at >= ? AND char_length(content) > ?", models.RoleUser, since, minLen).
		Order("created_at ASC, message_id ASC").
		Find(&messages).Error
	return messages, err
}

// ConversationUserMessages 某个对话中该用户的全部消息
func (r *chatRepository) ConversationUserMessages(ctx context.Context, userID int64, conversationID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ? AND role = ?", userID, conversationID, models.RoleUser).
		Order("created_at ASC, message_id ASC").
		Find(&messages).Error
	return messages, err
}
