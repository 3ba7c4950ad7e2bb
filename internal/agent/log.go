package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/metrics"
)

// LogEngine 只记录日志，不做远端同步
type LogEngine struct {
	source TagSource
	logger *zap.Logger
}

// NewLogEngine 创建日志引擎
func NewLogEngine(source TagSource) *LogEngine {
	return &LogEngine{source: source, logger: logger.Named("agent")}
}

// SyncUserTags 记录当前标签快照
func (e *LogEngine) SyncUserTags(ctx context.Context, userID int64) (bool, error) {
	tags, err := e.source.UserTags(ctx, userID)
	metrics.AgentSyncs.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		return false, err
	}
	e.logger.Info("用户标签同步（仅记录）", zap.Int64("user_id", userID), zap.Any("tags", tags))
	return true, nil
}

// Close 无需释放资源
func (e *LogEngine) Close() error {
	return nil
}
