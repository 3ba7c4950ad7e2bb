package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zhitang/backend-go/internal/models"
)

// ttsCacheRepository 语音缓存仓库实现
type ttsCacheRepository struct {
	db *gorm.DB
}

// NewTTSCacheRepository 创建语音缓存仓库
func NewTTSCacheRepository(db *gorm.DB) TTSCacheRepository {
	return &ttsCacheRepository{db: db}
}

// GetDB 获取数据库连接
func (r *ttsCacheRepository) GetDB() *gorm.DB {
	return r.db
}

// FindActive 精确匹配五元组，取最近访问的一条
func (r *ttsCacheRepository) FindActive(ctx context.Context, key ArtifactKey) (*models.TTSArtifact, error) {
	var artifact models.TTSArtifact
	err := r.db.WithContext(ctx).
		Where("text_hash = ? AND text_content = ? AND voice_id = ? AND speed = ? AND sample_rate = ? AND codec = ? AND is_active = ?",
			key.TextHash, key.Text, key.VoiceID, key.Speed, key.SampleRate, key.Codec, true).
		Order("last_accessed DESC").
		Take(&artifact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Create 新增缓存记录
func (r *ttsCacheRepository) Create(ctx context.Context, artifact *models.TTSArtifact) error {
	return r.db.WithContext(ctx).Create(artifact).Error
}

// MarkAccessed 更新访问时间并累加访问次数
func (r *ttsCacheRepository) MarkAccessed(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.TTSArtifact{}).
		Where("cache_id = ?", id).
		Updates(map[string]interface{}{
			"last_accessed": at,
			"access_count":  gorm.Expr("access_count + 1"),
		}).Error
}

// UpdateBlob 已存在记录重新写入文件时更新路径和大小
func (r *ttsCacheRepository) UpdateBlob(ctx context.Context, id int64, path string, size int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.TTSArtifact{}).
		Where("cache_id = ?", id).
		Updates(map[string]interface{}{
			"cache_path":    path,
			"file_size":     size,
			"last_accessed": at,
		}).Error
}

// Deactivate 标记缓存失效
func (r *ttsCacheRepository) Deactivate(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.TTSArtifact{}).
		Where("cache_id = ?", id).
		Update("is_active", false).Error
}

// DeactivateIdle 将长时间未访问的缓存标记为失效
func (r *ttsCacheRepository) DeactivateIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.TTSArtifact{}).
		Where("last_accessed < ? AND is_active = ?", cutoff, true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

// Aggregate 统计活跃缓存
func (r *ttsCacheRepository) Aggregate(ctx context.Context) (CacheAggregate, error) {
	var row struct {
		TotalFiles     int64
		TotalSizeBytes int64
		TotalAccesses  int64
		Newest         *time.Time
		Oldest         *time.Time
		LastAccess     *time.Time
	}
	err := r.db.WithContext(ctx).Model(&models.TTSArtifact{}).
		Select(`COUNT(*) AS total_files,
			COALESCE(SUM(file_size), 0) AS total_size_bytes,
			COALESCE(SUM(access_count), 0) AS total_accesses,
			MAX(created_at) AS newest,
			MIN(created_at) AS oldest,
			MAX(last_accessed) AS last_access`).
		Where("is_active = ?", true).
		Scan(&row).Error
	if err != nil {
		return CacheAggregate{}, err
	}
	return CacheAggregate(row), nil
}

// SearchText 文本子串查询，仅用于排查
func (r *ttsCacheRepository) SearchText(ctx context.Context, query string, limit int) ([]models.TTSArtifact, error) {
	var artifacts []models.TTSArtifact
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND text_content LIKE ?", true, "%"+escapeLike(query)+"%").
		Order("last_accessed DESC").
		Limit(limit).
		Find(&artifacts).Error
	return artifacts, err
}

// ttsStatsRepository 每日统计仓库实现
type ttsStatsRepository struct {
	db *gorm.DB
}

// NewTTSStatsRepository 创建每日统计仓库
func NewTTSStatsRepository(db *gorm.DB) TTSStatsRepository {
	return &ttsStatsRepository{db: db}
}

// GetDB 获取数据库连接
func (r *ttsStatsRepository) GetDB() *gorm.DB {
	return r.db
}

// IncrementRequest 按日期 upsert，并在同一语句中重算命中率
func (r *ttsStatsRepository) IncrementRequest(ctx context.Context, day time.Time, hit bool) error {
	var hits, misses int64
	if hit {
		hits = 1
	} else {
		misses = 1
	}
	stat := models.TTSDailyStat{
		Date:          day,
		TotalRequests: 1,
		CacheHits:     hits,
		CacheMisses:   misses,
		HitRate:       float64(hits) * 100,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_requests": gorm.Expr("tts_cache_stats.total_requests + 1"),
			"cache_hits":     gorm.Expr("tts_cache_stats.cache_hits + EXCLUDED.cache_hits"),
			"cache_misses":   gorm.Expr("tts_cache_stats.cache_misses + EXCLUDED.cache_misses"),
			"hit_rate": gorm.Expr(
				"ROUND((tts_cache_stats.cache_hits + EXCLUDED.cache_hits) * 100.0 / (tts_cache_stats.total_requests + 1), 2)"),
		}),
	}).Create(&stat).Error
}

// UpsertFiles 刷新当日文件数与总大小
func (r *ttsStatsRepository) UpsertFiles(ctx context.Context, day time.Time, totalFiles int64, totalSizeMB float64) error {
	stat := models.TTSDailyStat{
		Date:        day,
		TotalFiles:  totalFiles,
		TotalSizeMB: totalSizeMB,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_files", "total_size_mb"}),
	}).Create(&stat).Error
}

// GetByDate 获取某日统计，不存在时返回 (nil, nil)
func (r *ttsStatsRepository) GetByDate(ctx context.Context, day time.Time) (*models.TTSDailyStat, error) {
	var stat models.TTSDailyStat
	err := r.db.WithContext(ctx).Where("date = ?", day).Take(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// ListSince 获取某日之后的统计，按日期倒序
func (r *ttsStatsRepository) ListSince(ctx context.Context, since time.Time) ([]models.TTSDailyStat, error) {
	var stats []models.TTSDailyStat
	err := r.db.WithContext(ctx).
		Where("date >= ?", since).
		Order("date DESC").
		Find(&stats).Error
	return stats, err
}
