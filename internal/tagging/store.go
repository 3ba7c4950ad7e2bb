package tagging

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/agent"
	apperrors "github.com/zhitang/backend-go/internal/errors"
	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/models"
	"github.com/zhitang/backend-go/internal/repository"
)

// TagWrite 一次标签写入
type TagWrite struct {
	UserID         int64   `json:"user_id" validate:"required,gt=0"`
	TagKey         string  `json:"tag_key" validate:"required,max=64"`
	TagValue       string  `json:"tag_value" validate:"required,max=1000"`
	Source         string  `json:"source" validate:"required,oneof=ai_extract manual onboarding"`
	Confidence     float64 `json:"confidence" validate:"gte=0,lte=1"`
	ConversationID string  `json:"conversation_id,omitempty" validate:"max=64"`
	AutoSync       bool    `json:"auto_sync"`
}

// SetResult 写入结果
type SetResult struct {
	Success bool                `json:"success"`
	Changed bool                `json:"changed"`
	Code    apperrors.ErrorCode `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
}

// Store 用户标签读写
type Store struct {
	repo     repository.TagRepository
	validate *validator.Validate
	engine   agent.Engine
	now      func() time.Time
	logger   *zap.Logger
}

// NewStore 创建标签存储
func NewStore(repo repository.TagRepository) *Store {
	return &Store{
		repo:     repo,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger.Named("tagstore"),
	}
}

// SetEngine 绑定智能体引擎，AutoSync 写入后触发同步
func (s *Store) SetEngine(engine agent.Engine) {
	s.engine = engine
}

// Set 写入标签；未定义或停用的标签键被拒绝
func (s *Store) Set(ctx context.Context, w TagWrite) SetResult {
	if err := s.validate.Struct(w); err != nil {
		return failure(apperrors.NewValidationError("标签参数无效").WithCause(err))
	}

	def, err := s.repo.GetDefinition(ctx, w.TagKey)
	if err != nil {
		s.logger.Warn("读取标签定义失败", zap.String("tag_key", w.TagKey), zap.Error(err))
		return failure(apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "读取标签定义失败").WithCause(err))
	}
	if def == nil || !def.IsActive {
		return failure(apperrors.NewBusinessError(apperrors.ErrCodeUnknownTag, "未知或已停用的标签: "+w.TagKey))
	}

	changed, err := s.repo.SetValue(ctx, models.UserTagValue{
		UserID:     w.UserID,
		TagKey:     w.TagKey,
		TagValue:   w.TagValue,
		Source:     w.Source,
		Confidence: w.Confidence,
		UpdatedAt:  s.now().UTC(),
	}, w.ConversationID)
	if err != nil {
		s.logger.Warn("写入标签失败",
			zap.Int64("user_id", w.UserID), zap.String("tag_key", w.TagKey), zap.Error(err))
		return failure(apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "设置标签失败").WithCause(err))
	}

	s.logger.Debug("设置标签",
		zap.Int64("user_id", w.UserID),
		zap.String("tag_key", w.TagKey),
		zap.String("source", w.Source),
		zap.Bool("changed", changed))

	if w.AutoSync && def.IsCozeSynced && s.engine != nil {
		if _, err := s.engine.SyncUserTags(ctx, w.UserID); err != nil {
			s.logger.Warn("标签自动同步失败", zap.Int64("user_id", w.UserID), zap.Error(err))
		}
	}
	return SetResult{Success: true, Changed: changed}
}

// BatchSet 逐个写入，返回成功数量
func (s *Store) BatchSet(ctx context.Context, userID int64, tags map[string]string, source string) int {
	success := 0
	for key, value := range tags {
		res := s.Set(ctx, TagWrite{
			UserID:     userID,
			TagKey:     key,
			TagValue:   value,
			Source:     source,
			Confidence: 1,
		})
		if res.Success {
			success++
		}
	}
	return success
}

// UserTags 用户标签快照，只包含启用的定义，未设置的取默认值
func (s *Store) UserTags(ctx context.Context, userID int64) (map[string]string, error) {
	defs, err := s.repo.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	values, err := s.repo.ListValues(ctx, userID)
	if err != nil {
		return nil, err
	}

	current := make(map[string]string, len(values))
	for _, v := range values {
		current[v.TagKey] = v.TagValue
	}

	tags := make(map[string]string, len(defs))
	for _, def := range defs {
		if v, ok := current[def.TagKey]; ok {
			tags[def.TagKey] = v
		} else if def.DefaultValue != "" {
			tags[def.TagKey] = def.DefaultValue
		}
	}
	return tags, nil
}

// Definitions 启用的标签定义
func (s *Store) Definitions(ctx context.Context) ([]models.UserTagDefinition, error) {
	return s.repo.ListDefinitions(ctx)
}

func failure(err *apperrors.AppError) SetResult {
	return SetResult{Success: false, Code: err.Code, Message: err.Message}
}
