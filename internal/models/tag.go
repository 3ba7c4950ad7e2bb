package models

import (
	"time"
)

// 标签来源
const (
	TagSourceAIExtract  = "ai_extract"
	TagSourceManual     = "manual"
	TagSourceOnboarding = "onboarding"
)

// UserTagDefinition 标签定义，未定义或停用的标签键不允许写入
type UserTagDefinition struct {
	TagKey       string `gorm:"primaryKey;column:tag_key;size:64" json:"tag_key"`
	TagName      string `gorm:"column:tag_name;size:64;not null" json:"tag_name"`
	Category     string `gorm:"column:category;size:32" json:"category"`
	DefaultValue string `gorm:"column:default_value;size:255" json:"default_value"`
	IsCozeSynced bool   `gorm:"column:is_coze_synced;not null;default:true" json:"is_coze_synced"`
	IsActive     bool   `gorm:"column:is_active;not null;default:true" json:"is_active"`
	SortOrder    int    `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
}

func (UserTagDefinition) TableName() string {
	return "user_tag_definitions"
}

// UserTagValue 用户当前标签值，(user_id, tag_key) 唯一
type UserTagValue struct {
	UserID     int64     `gorm:"primaryKey;column:user_id;autoIncrement:false" json:"user_id"`
	TagKey     string    `gorm:"primaryKey;column:tag_key;size:64" json:"tag_key"`
	TagValue   string    `gorm:"column:tag_value;type:text" json:"tag_value"`
	Source     string    `gorm:"column:source;size:20;not null" json:"source"`
	Confidence float64   `gorm:"column:confidence;not null" json:"confidence"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (UserTagValue) TableName() string {
	return "user_tag_values"
}

// UserTagHistory 标签变更历史，也用于提取去抖
type UserTagHistory struct {
	HistID         int64     `gorm:"primaryKey;column:hist_id" json:"hist_id"`
	UserID         int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	TagKey         string    `gorm:"column:tag_key;size:64;not null" json:"tag_key"`
	TagValue       string    `gorm:"column:tag_value;type:text" json:"tag_value"`
	Source         string    `gorm:"column:source;size:20;not null" json:"source"`
	ConversationID string    `gorm:"column:conversation_id;size:64;index" json:"conversation_id,omitempty"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null;index" json:"updated_at"`
}

func (UserTagHistory) TableName() string {
	return "user_tag_history"
}
