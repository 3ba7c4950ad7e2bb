package database

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultCheckInterval = 30 * time.Second
	checkTimeout         = 5 * time.Second
)

// CheckFunc 单个依赖的探活
type CheckFunc func(ctx context.Context) error

// SQLCheck 数据库探活
func SQLCheck(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// RedisCheck Redis 探活
func RedisCheck(client redis.Cmdable) CheckFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// ComponentStatus 单个依赖的检查结果
type ComponentStatus struct {
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

// HealthReport 整体健康状态，任一依赖失败即不健康
type HealthReport struct {
	Healthy    bool                       `json:"healthy"`
	Components map[string]ComponentStatus `json:"components"`
}

type namedCheck struct {
	name string
	fn   CheckFunc
}

// HealthChecker 依赖健康检查器
type HealthChecker struct {
	logger   *logrus.Logger
	interval time.Duration
	checks   []namedCheck

	mu       sync.RWMutex
	statuses map[string]ComponentStatus
	stop     chan struct{}
	done     chan struct{}
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		logger:   logger,
		interval: defaultCheckInterval,
		statuses: make(map[string]ComponentStatus),
	}
}

// SetCheckInterval 设置后台检查间隔，需在 Start 之前调用
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	if interval > 0 {
		hc.interval = interval
	}
}

// AddCheck 注册依赖检查，需在 Start 之前调用
func (hc *HealthChecker) AddCheck(name string, fn CheckFunc) {
	hc.checks = append(hc.checks, namedCheck{name: name, fn: fn})
}

// Check 执行一次全部检查，返回第一个失败
func (hc *HealthChecker) Check(ctx context.Context) error {
	var firstErr error
	for _, c := range hc.checks {
		if err := hc.checkOne(ctx, c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (hc *HealthChecker) checkOne(ctx context.Context, c namedCheck) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := c.fn(ctx)
	elapsed := time.Since(start)

	hc.mu.Lock()
	prev, seen := hc.statuses[c.name]
	status := ComponentStatus{
		Healthy:      err == nil,
		LastCheck:    time.Now(),
		ResponseTime: elapsed.String(),
	}
	if err != nil {
		status.LastError = err.Error()
	}
	hc.statuses[c.name] = status
	hc.mu.Unlock()

	entry := hc.logger.WithFields(logrus.Fields{"component": c.name, "response_time": elapsed})
	switch {
	case err != nil:
		entry.WithError(err).Warn("健康检查失败")
	case seen && !prev.Healthy:
		entry.Info("依赖连接已恢复")
	default:
		entry.Debug("健康检查通过")
	}
	return err
}

// Start 后台定期检查，重复调用无效
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.stop != nil {
		hc.mu.Unlock()
		return
	}
	hc.stop = make(chan struct{})
	hc.done = make(chan struct{})
	stop, done := hc.stop, hc.done
	hc.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(hc.interval)
		defer ticker.Stop()

		hc.Check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				hc.Check(ctx)
			}
		}
	}()
	hc.logger.WithField("interval", hc.interval).Info("健康检查已启动")
}

// Stop 停止后台检查
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	stop, done := hc.stop, hc.done
	hc.stop, hc.done = nil, nil
	hc.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// IsHealthy 所有依赖都检查过且最近一次通过
func (hc *HealthChecker) IsHealthy() bool {
	return hc.Report().Healthy
}

// Report 当前健康状态
func (hc *HealthChecker) Report() HealthReport {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	report := HealthReport{Healthy: true, Components: make(map[string]ComponentStatus, len(hc.checks))}
	for _, c := range hc.checks {
		status, ok := hc.statuses[c.name]
		if !ok || !status.Healthy {
			report.Healthy = false
		}
		report.Components[c.name] = status
	}
	return report
}

// Components 已注册的依赖名
func (hc *HealthChecker) Components() []string {
	names := make([]string, 0, len(hc.checks))
	for _, c := range hc.checks {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

// WaitForHealthy 等待所有依赖健康，超时返回错误
func (hc *HealthChecker) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if hc.Check(ctx) == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
