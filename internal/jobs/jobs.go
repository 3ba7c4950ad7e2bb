package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/config"
	apperrors "github.com/zhitang/backend-go/internal/errors"
	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/metrics"
)

const (
	JobSweep = "tts_cache_sweep"
	JobStats = "tts_cache_daily_stats"

	runTimeout = 5 * time.Minute
)

// CacheMaintainer 语音缓存维护操作，由 ttscache.Cache 实现
type CacheMaintainer interface {
	Sweep(ctx context.Context, olderThanDays int) int64
	UpdateDailyStats(ctx context.Context) error
}

// Maintenance 定时维护任务
type Maintenance struct {
	scheduler gocron.Scheduler
	cache     CacheMaintainer
	sweepDays int
	sweepCron string
	statsCron string
	logger    *zap.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron 校验五段式 cron 表达式
func ValidateCron(key, expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return apperrors.NewConfigError(key, fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return nil
}

// NewMaintenance 创建维护任务调度器，cron 表达式无效时返回配置错误
func NewMaintenance(cfg config.CacheConfig, cache CacheMaintainer) (*Maintenance, error) {
	if err := ValidateCron("cache.sweep_cron", cfg.SweepCron); err != nil {
		return nil, err
	}
	if err := ValidateCron("cache.stats_cron", cfg.StatsCron); err != nil {
		return nil, err
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	m := &Maintenance{
		scheduler: scheduler,
		cache:     cache,
		sweepDays: cfg.SweepOlderThanDays,
		sweepCron: cfg.SweepCron,
		statsCron: cfg.StatsCron,
		logger:    logger.Named("maintenance"),
	}
	if m.sweepDays <= 0 {
		m.sweepDays = 30
	}

	if err := m.register(JobSweep, m.sweepCron, func(ctx context.Context) error {
		m.RunSweep(ctx)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := m.register(JobStats, m.statsCron, m.RunStats); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Maintenance) register(name, expr string, run func(ctx context.Context) error) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			defer cancel()
			start := time.Now()
			err := run(ctx)
			metrics.MaintenanceRuns.WithLabelValues(name, metrics.Status(err)).Inc()
			if err != nil {
				m.logger.Error("维护任务失败", zap.String("job", name), zap.Error(err))
				return
			}
			m.logger.Info("维护任务完成", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", name, err)
	}
	return nil
}

// Start 启动调度，可重复调用
func (m *Maintenance) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.scheduler.Start()
	m.started = true
	m.logger.Info("维护任务已启动",
		zap.String("sweep_cron", m.sweepCron),
		zap.String("stats_cron", m.statsCron))
}

// Stop 停止调度并等待运行中的任务，停止后不能再启动
func (m *Maintenance) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.started = false
	m.stopped = true
	return m.scheduler.Shutdown()
}

// RunSweep 清理过期缓存，返回作废的记录数
func (m *Maintenance) RunSweep(ctx context.Context) int64 {
	n := m.cache.Sweep(ctx, m.sweepDays)
	m.logger.Info("清理过期语音缓存", zap.Int("older_than_days", m.sweepDays), zap.Int64("count", n))
	return n
}

// RunStats 刷新当日缓存统计
func (m *Maintenance) RunStats(ctx context.Context) error {
	return m.cache.UpdateDailyStats(ctx)
}

// Jobs 已注册任务名
func (m *Maintenance) Jobs() []string {
	jobs := m.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}
