package ttscache

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/metrics"
	"github.com/zhitang/backend-go/internal/models"
	"github.com/zhitang/backend-go/internal/repository"
)

const bytesPerMB = 1024 * 1024

// Stats 活跃缓存统计
type Stats struct {
	TotalFiles     int64      `json:"total_files"`
	TotalSizeBytes int64      `json:"total_size_bytes"`
	TotalSizeMB    float64    `json:"total_size_mb"`
	AvgFileSize    float64    `json:"avg_file_size"`
	Newest         *time.Time `json:"newest"`
	Oldest         *time.Time `json:"oldest"`
	TotalAccesses  int64      `json:"total_accesses"`
	AvgAccessCount float64    `json:"avg_access_count"`
	LastAccessTime *time.Time `json:"last_access_time"`
}

// Cache 语音合成缓存
// 数据库异常一律降级为未命中或空结果，不向调用方抛出
type Cache struct {
	artifacts  repository.TTSCacheRepository
	stats      repository.TTSStatsRepository
	normalizer Normalizer
	sweepDays  int
	now        func() time.Time
	logger     *zap.Logger
}

// Option 缓存选项
type Option func(*Cache)

// WithClock 注入时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithSweepDays 设置 Sweep 的默认天数
func WithSweepDays(days int) Option {
	return func(c *Cache) { c.sweepDays = days }
}

// NewCache 创建缓存
func NewCache(artifacts repository.TTSCacheRepository, stats repository.TTSStatsRepository, normalizer Normalizer, opts ...Option) *Cache {
	c := &Cache{
		artifacts:  artifacts,
		stats:      stats,
		normalizer: normalizer,
		sweepDays:  30,
		now:        time.Now,
		logger:     logger.Named("ttscache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize 返回归一化后的缓存键
func (c *Cache) Normalize(p Params) Key {
	return c.normalizer.Key(p)
}

// Find 查找缓存，命中时更新访问时间与次数
func (c *Cache) Find(ctx context.Context, p Params) (*models.TTSArtifact, bool) {
	return c.FindKey(ctx, c.Normalize(p))
}

// FindKey 使用已归一化的键查找
func (c *Cache) FindKey(ctx context.Context, key Key) (*models.TTSArtifact, bool) {
	artifact, err := c.artifacts.FindActive(ctx, key.lookup())
	if err != nil {
		c.degrade("find", err)
		return nil, false
	}
	if artifact == nil {
		return nil, false
	}

	now := c.now()
	if err := c.artifacts.MarkAccessed(ctx, artifact.CacheID, now); err != nil {
		// 行仍然有效，访问计数丢失不影响命中
		c.degrade("touch", err)
		return artifact, true
	}
	artifact.LastAccessed = now
	artifact.AccessCount++
	return artifact, true
}

// Put 写入缓存；相同键已存在时只更新文件路径与大小
func (c *Cache) Put(ctx context.Context, p Params, path string, sizeBytes int64) (*models.TTSArtifact, error) {
	return c.PutKey(ctx, c.Normalize(p), path, sizeBytes)
}

// PutKey 使用已归一化的键写入
func (c *Cache) PutKey(ctx context.Context, key Key, path string, sizeBytes int64) (*models.TTSArtifact, error) {
	now := c.now()

	existing, err := c.artifacts.FindActive(ctx, key.lookup())
	if err != nil {
		c.degrade("put_lookup", err)
	}
	if existing != nil {
		if err := c.artifacts.UpdateBlob(ctx, existing.CacheID, path, sizeBytes, now); err != nil {
			return nil, err
		}
		existing.CachePath = path
		existing.FileSize = sizeBytes
		existing.LastAccessed = now
		return existing, nil
	}

	artifact := &models.TTSArtifact{
		TextContent:  key.Text,
		TextHash:     key.TextHash,
		VoiceID:      key.VoiceID,
		Speed:        float64(key.Speed),
		SampleRate:   key.SampleRate,
		Codec:        key.Codec,
		CachePath:    path,
		FileSize:     sizeBytes,
		CreatedAt:    now,
		LastAccessed: now,
		IsActive:     true,
	}
	if err := c.artifacts.Create(ctx, artifact); err != nil {
		return nil, err
	}
	c.logger.Debug("新增语音缓存",
		zap.Int64("cache_id", artifact.CacheID),
		zap.String("voice_id", key.VoiceID),
		zap.Int("speed", key.Speed),
		zap.String("path", path))
	return artifact, nil
}

// Touch 刷新访问时间
func (c *Cache) Touch(ctx context.Context, id int64) bool {
	if err := c.artifacts.MarkAccessed(ctx, id, c.now()); err != nil {
		c.degrade("touch", err)
		return false
	}
	return true
}

// Deactivate 标记缓存失效，文件损坏或丢失时由调用方触发
func (c *Cache) Deactivate(ctx context.Context, id int64) bool {
	if err := c.artifacts.Deactivate(ctx, id); err != nil {
		c.degrade("deactivate", err)
		return false
	}
	c.logger.Info("语音缓存已失效", zap.Int64("cache_id", id))
	return true
}

// Stats 活跃缓存统计
func (c *Cache) Stats(ctx context.Context) Stats {
	agg, err := c.artifacts.Aggregate(ctx)
	if err != nil {
		c.degrade("stats", err)
		return Stats{}
	}

	stats := Stats{
		TotalFiles:     agg.TotalFiles,
		TotalSizeBytes: agg.TotalSizeBytes,
		TotalSizeMB:    round2(float64(agg.TotalSizeBytes) / bytesPerMB),
		Newest:         agg.Newest,
		Oldest:         agg.Oldest,
		TotalAccesses:  agg.TotalAccesses,
		LastAccessTime: agg.LastAccess,
	}
	if agg.TotalFiles > 0 {
		stats.AvgFileSize = round2(float64(agg.TotalSizeBytes) / float64(agg.TotalFiles))
		stats.AvgAccessCount = round2(float64(agg.TotalAccesses) / float64(agg.TotalFiles))
	}
	return stats
}

// Sweep 将超过 olderThanDays 天未访问的缓存标记为失效，<=0 时使用配置值
func (c *Cache) Sweep(ctx context.Context, olderThanDays int) int64 {
	if olderThanDays <= 0 {
		olderThanDays = c.sweepDays
	}
	cutoff := c.now().AddDate(0, 0, -olderThanDays)

	n, err := c.artifacts.DeactivateIdle(ctx, cutoff)
	if err != nil {
		c.degrade("sweep", err)
		return 0
	}
	c.logger.Info("清理过期语音缓存", zap.Int("older_than_days", olderThanDays), zap.Int64("deactivated", n))
	return n
}

// Similar 文本子串检索，仅用于排查
func (c *Cache) Similar(ctx context.Context, query string, limit int) []models.TTSArtifact {
	if limit <= 0 {
		limit = 10
	}
	artifacts, err := c.artifacts.SearchText(ctx, query, limit)
	if err != nil {
		c.degrade("similar", err)
		return nil
	}
	return artifacts
}

// RecordRequest 累加当日请求统计并重算命中率
func (c *Cache) RecordRequest(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.TTSCacheRequests.WithLabelValues(result).Inc()

	if err := c.stats.IncrementRequest(ctx, c.today(), hit); err != nil {
		c.degrade("record_request", err)
	}
}

// UpdateDailyStats 用当前缓存统计刷新当日文件数与大小
// 聚合失败时不写入，避免用零值覆盖当日统计
func (c *Cache) UpdateDailyStats(ctx context.Context) error {
	agg, err := c.artifacts.Aggregate(ctx)
	if err != nil {
		c.degrade("update_daily_stats", err)
		return err
	}
	sizeMB := round2(float64(agg.TotalSizeBytes) / bytesPerMB)
	if err := c.stats.UpsertFiles(ctx, c.today(), agg.TotalFiles, sizeMB); err != nil {
		c.degrade("update_daily_stats", err)
		return err
	}
	return nil
}

// DailyStats 最近 days 天的统计
func (c *Cache) DailyStats(ctx context.Context, days int) []models.TTSDailyStat {
	if days <= 0 {
		days = 30
	}
	since := c.today().AddDate(0, 0, -(days - 1))
	stats, err := c.stats.ListSince(ctx, since)
	if err != nil {
		c.degrade("daily_stats", err)
		return nil
	}
	return stats
}

// today 当前UTC日期
func (c *Cache) today() time.Time {
	now := c.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (c *Cache) degrade(operation string, err error) {
	metrics.TTSCacheErrors.WithLabelValues(operation).Inc()
	c.logger.Warn("语音缓存数据库操作失败，按未命中处理", zap.String("operation", operation), zap.Error(err))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
