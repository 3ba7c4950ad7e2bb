package tagging

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/agent"
	"github.com/zhitang/backend-go/internal/config"
	"github.com/zhitang/backend-go/internal/llm"
	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/metrics"
	"github.com/zhitang/backend-go/internal/models"
	"github.com/zhitang/backend-go/internal/repository"
)

const (
	errorBackoff   = 60 * time.Second
	stopTimeout    = 10 * time.Second
	extractTimeout = 10 * time.Second

	// NotFoundMessage 对话没有用户消息
	NotFoundMessage = "对话不存在或无权限访问"
	noTagsMessage   = "未提取到标签"
)

// Extractor 标签提取
type Extractor interface {
	ExtractTags(ctx context.Context, userID int64, text string) ([]llm.TagSpec, error)
}

// TagSetter 标签写入
type TagSetter interface {
	Set(ctx context.Context, w TagWrite) SetResult
}

// Status 调度器状态
type Status struct {
	Running         bool `json:"running"`
	IntervalSeconds int  `json:"interval_seconds"`
	WorkerAlive     bool `json:"worker_alive"`
	NextCheckIn     *int `json:"next_check_in"`
}

// TickResult 一轮处理结果
type TickResult struct {
	Candidates int `json:"candidates"`
	Skipped    int `json:"skipped"`
	Processed  int `json:"processed"`
	TagCount   int `json:"tag_count"`
}

// ExtractedTag 写入成功的标签
type ExtractedTag struct {
	TagKey     string  `json:"tag_key"`
	TagValue   string  `json:"tag_value"`
	Confidence float64 `json:"confidence"`
}

// ProcessResult 单个对话处理结果
type ProcessResult struct {
	Success  bool           `json:"success"`
	TagCount int            `json:"tag_count"`
	Tags     []ExtractedTag `json:"tags,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// Scheduler 定期从近期对话中提取用户标签
type Scheduler struct {
	chats     repository.ChatRepository
	history   repository.TagRepository
	store     TagSetter
	extractor Extractor
	engine    agent.Engine

	interval  time.Duration
	hoursBack int
	debounce  time.Duration
	backoff   time.Duration
	now       func() time.Time
	logger    *zap.Logger

	// 串行化 Tick 与 ProcessOne
	work sync.Mutex

	state  sync.Mutex
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
}

// SchedulerOption 调度器选项
type SchedulerOption func(*Scheduler)

// WithSchedulerClock 注入时钟
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// WithSchedulerLogger 指定日志
func WithSchedulerLogger(l *zap.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithErrorBackoff 出错后的等待时间
func WithErrorBackoff(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.backoff = d }
}

// NewScheduler 创建调度器，engine 可为 nil
func NewScheduler(cfg config.SchedulerConfig, chats repository.ChatRepository, history repository.TagRepository,
	store TagSetter, extractor Extractor, engine agent.Engine, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		chats:     chats,
		history:   history,
		store:     store,
		extractor: extractor,
		engine:    engine,
		interval:  time.Duration(cfg.IntervalSeconds) * time.Second,
		hoursBack: cfg.HoursBack,
		debounce:  time.Duration(cfg.DebounceMinutes) * time.Minute,
		backoff:   errorBackoff,
		now:       time.Now,
		logger:    logger.Named("tag_scheduler"),
	}
	if s.interval <= 0 {
		s.interval = 300 * time.Second
	}
	if s.hoursBack <= 0 {
		s.hoursBack = 24
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 启动后台任务，已运行时直接返回
func (s *Scheduler) Start() {
	s.state.Lock()
	defer s.state.Unlock()

	if s.stop != nil {
		s.logger.Info("标签提取调度器已在运行")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx, s.stop, s.done)

	s.logger.Info("标签提取调度器已启动", zap.Duration("interval", s.interval))
}

// Stop 停止后台任务，最多等待10秒
func (s *Scheduler) Stop() {
	s.state.Lock()
	if s.stop == nil {
		s.state.Unlock()
		return
	}
	stop, done, cancel := s.stop, s.done, s.cancel
	s.stop, s.done, s.cancel = nil, nil, nil
	s.state.Unlock()

	close(stop)
	cancel()

	select {
	case <-done:
		s.logger.Info("标签提取调度器已停止")
	case <-time.After(stopTimeout):
		s.logger.Warn("等待标签提取任务退出超时")
	}
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		wait := s.interval
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("标签提取调度出错", zap.Error(err))
			wait = s.backoff
		}

		select {
		case <-stop:
			return
		case <-time.After(wait):
		}
	}
}

// Status 调度器状态
func (s *Scheduler) Status() Status {
	s.state.Lock()
	defer s.state.Unlock()

	seconds := int(s.interval / time.Second)
	status := Status{
		Running:         s.stop != nil,
		IntervalSeconds: seconds,
	}
	if s.done != nil {
		select {
		case <-s.done:
		default:
			status.WorkerAlive = true
		}
	}
	if status.Running {
		status.NextCheckIn = &seconds
	}
	return status
}

// Tick 执行一轮：选出候选对话，跳过去抖窗口内的，逐个提取并写入
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	s.work.Lock()
	defer s.work.Unlock()

	var result TickResult
	now := s.now()

	messages, err := s.chats.RecentUserMessages(ctx, now.Add(-time.Duration(s.hoursBack)*time.Hour), MinMessageLength)
	if err != nil {
		metrics.TagTicks.WithLabelValues("error").Inc()
		return result, err
	}

	candidates := SelectCandidates(messages, MinUserMessages, MaxCandidates, MaxContentRunes)
	result.Candidates = len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if s.recentlyExtracted(ctx, c.ConversationID, now) {
			result.Skipped++
			metrics.TagConversationsSkipped.Inc()
			continue
		}

		res := s.process(ctx, c.UserID, c.ConversationID, c.Content)
		if res.Success {
			result.Processed++
			result.TagCount += res.TagCount
			metrics.TagConversationsProcessed.Inc()
		}
	}

	metrics.TagTicks.WithLabelValues("ok").Inc()
	s.logger.Info("标签提取完成",
		zap.Int("candidates", result.Candidates),
		zap.Int("skipped", result.Skipped),
		zap.Int("processed", result.Processed),
		zap.Int("tag_count", result.TagCount))
	return result, nil
}

// recentlyExtracted 查询失败时按已处理跳过，下一轮再试
func (s *Scheduler) recentlyExtracted(ctx context.Context, conversationID string, now time.Time) bool {
	if s.debounce <= 0 {
		return false
	}
	recent, err := s.history.HasRecentExtraction(ctx, conversationID, models.TagSourceAIExtract, now.Add(-s.debounce))
	if err != nil {
		s.logger.Warn("去抖查询失败，跳过该对话", zap.String("conversation_id", conversationID), zap.Error(err))
		return true
	}
	return recent
}

// ProcessOne 手动触发单个对话的标签提取，不做去抖
func (s *Scheduler) ProcessOne(ctx context.Context, userID int64, conversationID string) ProcessResult {
	s.work.Lock()
	defer s.work.Unlock()

	messages, err := s.chats.ConversationUserMessages(ctx, userID, conversationID)
	if err != nil {
		s.logger.Error("读取对话失败", zap.Int64("user_id", userID), zap.String("conversation_id", conversationID), zap.Error(err))
		return ProcessResult{Success: false, Message: "读取对话失败"}
	}
	if len(messages) == 0 {
		return ProcessResult{Success: false, Message: NotFoundMessage}
	}

	return s.process(ctx, userID, conversationID, JoinContent(messages, MaxContentRunes))
}

func (s *Scheduler) process(ctx context.Context, userID int64, conversationID, content string) ProcessResult {
	log := s.logger.With(zap.Int64("user_id", userID), zap.String("conversation_id", conversationID))
	log.Info("开始提取对话标签")

	extractCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	specs, err := s.extractor.ExtractTags(extractCtx, userID, content)
	cancel()
	if err != nil {
		log.Warn("标签提取失败", zap.Error(err))
		return ProcessResult{Success: false, Message: err.Error()}
	}
	if len(specs) == 0 {
		return ProcessResult{Success: true, Message: noTagsMessage}
	}

	written := make([]ExtractedTag, 0, len(specs))
	for _, spec := range specs {
		res := s.store.Set(ctx, TagWrite{
			UserID:         userID,
			TagKey:         spec.Key,
			TagValue:       spec.Value,
			Source:         models.TagSourceAIExtract,
			Confidence:     spec.Confidence,
			ConversationID: conversationID,
		})
		if !res.Success {
			log.Warn("设置标签失败", zap.String("tag_key", spec.Key), zap.String("reason", res.Message))
			continue
		}
		written = append(written, ExtractedTag{TagKey: spec.Key, TagValue: spec.Value, Confidence: spec.Confidence})
	}
	metrics.TagsWritten.Add(float64(len(written)))

	if s.engine != nil {
		if ok, err := s.engine.SyncUserTags(ctx, userID); err != nil || !ok {
			log.Warn("用户标签同步失败", zap.Error(err))
		}
	}

	return ProcessResult{Success: true, TagCount: len(written), Tags: written}
}
