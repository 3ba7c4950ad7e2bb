package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zhitang/backend-go/internal/models"
)

// Repository 基础仓库接口
type Repository interface {
	GetDB() *gorm.DB
}

// ArtifactKey 缓存精确匹配键，字段均为归一化后的值
type ArtifactKey struct {
	Text       string
	TextHash   string
	VoiceID    string
	Speed      float64
	SampleRate int
	Codec      string
}

// CacheAggregate 活跃缓存聚合结果
type CacheAggregate struct {
	TotalFiles     int64
	TotalSizeBytes int64
	TotalAccesses  int64
	Newest         *time.Time
	Oldest         *time.Time
	LastAccess     *time.Time
}

// TTSCacheRepository 语音缓存仓库接口
type TTSCacheRepository interface {
	Repository
	// FindActive 未命中时返回 (nil, nil)
	FindActive(ctx context.Context, key ArtifactKey) (*models.TTSArtifact, error)
	Create(ctx context.Context, artifact *models.TTSArtifact) error
	MarkAccessed(ctx context.Context, id int64, at time.Time) error
	UpdateBlob(ctx context.Context, id int64, path string, size int64, at time.Time) error
	Deactivate(ctx context.Context, id int64) error
	DeactivateIdle(ctx context.Context, cutoff time.Time) (int64, error)
	Aggregate(ctx context.Context) (CacheAggregate, error)
	SearchText(ctx context.Context, query string, limit int) ([]models.TTSArtifact, error)
}

// TTSStatsRepository 每日统计仓库接口
type TTSStatsRepository interface {
	Repository
	IncrementRequest(ctx context.Context, day time.Time, hit bool) error
	UpsertFiles(ctx context.Context, day time.Time, totalFiles int64, totalSizeMB float64) error
	GetByDate(ctx context.Context, day time.Time) (*models.TTSDailyStat, error)
	ListSince(ctx context.Context, since time.Time) ([]models.TTSDailyStat, error)
}

// FAQRepository FAQ仓库接口
type FAQRepository interface {
	Repository
	ListActive(ctx context.Context) ([]models.FAQ, error)
}

// ChatRepository 对话消息仓库接口
type ChatRepository interface {
	Repository
	// RecentUserMessages 返回时间窗口内长度超过 minLen 的用户消息，按时间升序
	RecentUserMessages(ctx context.Context, since time.Time, minLen int) ([]models.ChatMessage, error)
	ConversationUserMessages(ctx context.Context, userID int64, conversationID string) ([]models.ChatMessage, error)
}

// TagRepository 用户标签仓库接口
type TagRepository interface {
	Repository
	GetDefinition(ctx context.Context, tagKey string) (*models.UserTagDefinition, error)
	ListDefinitions(ctx context.Context) ([]models.UserTagDefinition, error)
	// SetValue 在一个事务内更新当前值，值变化时追加历史；返回值是否变化
	SetValue(ctx context.Context, value models.UserTagValue, conversationID string) (bool, error)
	ListValues(ctx context.Context, userID int64) ([]models.UserTagValue, error)
	HasRecentExtraction(ctx context.Context, conversationID, source string, since time.Time) (bool, error)
}
