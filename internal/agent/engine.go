package agent

import (
	"context"
	"time"
)

// Engine 智能体引擎，负责把用户标签同步到远端
type Engine interface {
	SyncUserTags(ctx context.Context, userID int64) (bool, error)
	Close() error
}

// TagSource 用户标签快照来源
type TagSource interface {
	UserTags(ctx context.Context, userID int64) (map[string]string, error)
}

// TagSyncEvent 标签同步事件
type TagSyncEvent struct {
	EventID  string            `json:"event_id"`
	UserID   int64             `json:"user_id"`
	Tags     map[string]string `json:"tags"`
	SyncedAt time.Time         `json:"synced_at"`
}
