package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/zhitang/backend-go/internal/models"
)

// faqRepository FAQ仓库实现
type faqRepository struct {
	db *gorm.DB
}

// NewFAQRepository 创建FAQ仓库
func NewFAQRepository(db *gorm.DB) FAQRepository {
	return &faqRepository{db: db}
}

// GetDB 获取数据库连接
func (r *faqRepository) GetDB() *gorm.DB {
	return r.db
}

// ListActive 加载启用的FAQ及其关键词，关键词按权重降序
func (r *faqRepository) ListActive(ctx context.Context) ([]models.FAQ, error) {
	var faqs []models.FAQ
	err := r.db.WithContext(ctx).
		Preload("Keys", func(db *gorm.DB) *gorm.DB {
			return db.Order("weight DESC, id ASC")
		}).
		Where("status = ?", models.FAQStatusActive).
		Order("sort_order ASC, id ASC").
		Find(&faqs).Error
	return faqs, err
}
