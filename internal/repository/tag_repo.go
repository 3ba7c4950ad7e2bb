package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zhitang/backend-go/internal/models"
)

// tagRepository 用户标签仓库实现
type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository 创建用户标签仓库
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// GetDB 获取数据库连接
func (r *tagRepository) GetDB() *gorm.DB {
	return r.db
}

// GetDefinition 获取标签定义，不存在时返回 (nil, nil)
func (r *tagRepository) GetDefinition(ctx context.Context, tagKey string) (*models.UserTagDefinition, error) {
	var def models.UserTagDefinition
	err := r.db.WithContext(ctx).Where("tag_key = ?", tagKey).Take(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ListDefinitions 获取启用的标签定义
func (r *tagRepository) ListDefinitions(ctx context.Context) ([]models.UserTagDefinition, error) {
	var defs []models.UserTagDefinition
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC, tag_key ASC").
		Find(&defs).Error
	return defs, err
}

// SetValue 锁定当前值后 upsert，值变化时写入历史
func (r *tagRepository) SetValue(ctx context.Context, value models.UserTagValue, conversationID string) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.UserTagValue
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND tag_key = ?", value.UserID, value.TagKey).
			Take(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			changed = true
		case err != nil:
			return err
		default:
			changed = current.TagValue != value.TagValue
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "tag_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"tag_value", "source", "confidence", "updated_at"}),
		}).Create(&value).Error; err != nil {
			return err
		}

		if !changed {
			return nil
		}
		return tx.Create(&models.UserTagHistory{
			UserID:         value.UserID,
			TagKey:         value.TagKey,
			TagValue:       value.TagValue,
			Source:         value.Source,
			ConversationID: conversationID,
			UpdatedAt:      value.UpdatedAt,
		}).Error
	})
	return changed, err
}

// ListValues 获取用户全部标签值
func (r *tagRepository) ListValues(ctx context.Context, userID int64) ([]models.UserTagValue, error) {
	var values []models.UserTagValue
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("tag_key ASC").
		Find(&values).Error
	return values, err
}

// HasRecentExtraction 去抖判断：该对话在 since 之后是否已有指定来源的标签历史
func (r *tagRepository) HasRecentExtraction(ctx context.Context, conversationID, source string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserTagHistory{}).
		Where("conversation_id = ? AND source = ? AND updated_at > ?", conversationID, source, since).
		Count(&count).Error
	return count > 0, err
}
