package models

import (
	"time"
)

// TTSArtifact 语音合成缓存记录
// 活跃记录中 (text, voice_id, speed, sample_rate, codec) 由应用层保证唯一
type TTSArtifact struct {
	CacheID      int64     `gorm:"primaryKey;column:cache_id" json:"cache_id"`
	TextContent  string    `gorm:"column:text_content;type:text;not null" json:"text_content"`
	TextHash     string    `gorm:"column:text_hash;size:64;not null;index" json:"-"`
	VoiceID      string    `gorm:"column:voice_id;size:64;not null" json:"voice_id"`
	Speed        float64   `gorm:"column:speed;not null" json:"speed"`
	SampleRate   int       `gorm:"column:sample_rate;not null" json:"sample_rate"`
	Codec        string    `gorm:"column:codec;size:16;not null" json:"codec"`
	CachePath    string    `gorm:"column:cache_path;size:512;not null" json:"cache_path"`
	FileSize     int64     `gorm:"column:file_size;not null" json:"file_size"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
	LastAccessed time.Time `gorm:"column:last_accessed;not null;index" json:"last_accessed"`
	AccessCount  int64     `gorm:"column:access_count;not null;default:0" json:"access_count"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

func (TTSArtifact) TableName() string {
	return "tts_cache"
}

// TTSDailyStat 每日缓存统计（按UTC日期一行）
type TTSDailyStat struct {
	StatID        int64     `gorm:"primaryKey;column:stat_id" json:"stat_id"`
	Date          time.Time `gorm:"column:date;type:date;uniqueIndex;not null" json:"date"`
	TotalRequests int64     `gorm:"column:total_requests;not null;default:0" json:"total_requests"`
	CacheHits     int64     `gorm:"column:cache_hits;not null;default:0" json:"cache_hits"`
	CacheMisses   int64     `gorm:"column:cache_misses;not null;default:0" json:"cache_misses"`
	TotalFiles    int64     `gorm:"column:total_files;not null;default:0" json:"total_files"`
	TotalSizeMB   float64   `gorm:"column:total_size_mb;type:decimal(12,2);not null;default:0" json:"total_size_mb"`
	HitRate       float64   `gorm:"column:hit_rate;type:decimal(5,2);not null;default:0" json:"hit_rate"`
}

func (TTSDailyStat) TableName() string {
	return "tts_cache_stats"
}
