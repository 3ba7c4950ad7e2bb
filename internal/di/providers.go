package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"gorm.io/gorm"

	"github.com/zhitang/backend-go/internal/agent"
	"github.com/zhitang/backend-go/internal/config"
	"github.com/zhitang/backend-go/internal/database"
	apperrors "github.com/zhitang/backend-go/internal/errors"
	"github.com/zhitang/backend-go/internal/jobs"
	"github.com/zhitang/backend-go/internal/knowledge"
	"github.com/zhitang/backend-go/internal/llm"
	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/repository"
	"github.com/zhitang/backend-go/internal/storage"
	"github.com/zhitang/backend-go/internal/tagging"
	"github.com/zhitang/backend-go/internal/tts"
	"github.com/zhitang/backend-go/internal/ttscache"
)

const startupTimeout = 30 * time.Second

// RegisterProviders 注册所有依赖提供者，构造在首次 Invoke 时发生
func RegisterProviders(container *dig.Container, cfg *config.Config) error {
	providers := []interface{}{
		func() *config.Config { return cfg },
		NewLogrusLogger,
		provideDB,
		provideRedis,

		repository.NewTTSCacheRepository,
		repository.NewTTSStatsRepository,
		repository.NewFAQRepository,
		repository.NewChatRepository,
		repository.NewTagRepository,

		provideBlobStore,
		provideTTSCache,
		provideTTSEngine,
		provideTTSService,
		provideDeepSeek,
		provideRetriever,
		provideTagStore,
		provideAgentEngine,
		provideScheduler,
		provideMaintenance,
		provideHealthChecker,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return fmt.Errorf("failed to register provider: %w", err)
		}
	}
	return nil
}

// NewLogrusLogger 数据库维护组件使用的 logrus 日志
func NewLogrusLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg.Database)
}

// provideRedis 未启用或连接失败时返回 nil，音频缓存退化为只用底层存储
func provideRedis(cfg *config.Config) *redis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	client, err := database.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Named("di").Warn("Redis 不可用，跳过音频热点缓存")
		return nil
	}
	return client
}

func provideBlobStore(cfg *config.Config, rdb *redis.Client) (storage.BlobStore, error) {
	var (
		store storage.BlobStore
		err   error
	)
	switch cfg.Storage.Provider {
	case "minio":
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()
		store, err = storage.NewMinIOStore(ctx, cfg.Storage.MinIO)
	default:
		store, err = storage.NewLocalStore(cfg.Storage.LocalDir)
	}
	if err != nil {
		return nil, err
	}

	if rdb != nil {
		store = storage.NewRedisCachedStore(store, rdb, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
	}
	return store, nil
}

func provideTTSCache(cfg *config.Config, artifacts repository.TTSCacheRepository, stats repository.TTSStatsRepository) *ttscache.Cache {
	return ttscache.NewCache(artifacts, stats,
		ttscache.NewNormalizer(cfg.TencentTTS.VoiceType),
		ttscache.WithSweepDays(cfg.Cache.SweepOlderThanDays))
}

func provideTTSEngine(cfg *config.Config) tts.Engine {
	return tts.NewEngine(cfg.TTSEngine)
}

func provideTTSService(cfg *config.Config, cache *ttscache.Cache, blobs storage.BlobStore, engine tts.Engine) *tts.Service {
	return tts.NewService(cache, blobs, engine, cfg.TencentTTS.Volume)
}

func provideDeepSeek(cfg *config.Config) *llm.DeepSeek {
	return llm.NewDeepSeek(cfg.DeepSeek)
}

func provideRetriever(cfg *config.Config, faqs repository.FAQRepository, ds *llm.DeepSeek) *knowledge.Retriever {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	var opts []knowledge.RetrieverOption
	if ds.Ready() {
		opts = append(opts, knowledge.WithChatLLM(ds))
	}
	return knowledge.NewRetriever(ctx, cfg.Knowledge.Dir, faqs, cfg.Knowledge.LoadFromDB, opts...)
}

func provideTagStore(tags repository.TagRepository) *tagging.Store {
	return tagging.NewStore(tags)
}

// provideAgentEngine 创建后绑定到标签存储，AutoSync 写入会触发同步
func provideAgentEngine(cfg *config.Config, store *tagging.Store) (agent.Engine, error) {
	var engine agent.Engine
	switch cfg.Agent.Mode {
	case "kafka":
		k, err := agent.NewKafkaEngine(cfg.Agent.Brokers, cfg.Agent.Topic, store)
		if err != nil {
			return nil, err
		}
		engine = k
	default:
		engine = agent.NewLogEngine(store)
	}
	store.SetEngine(engine)
	return engine, nil
}

// provideScheduler 启用调度器时必须配置大模型密钥
func provideScheduler(cfg *config.Config, chats repository.ChatRepository, tags repository.TagRepository,
	store *tagging.Store, ds *llm.DeepSeek, engine agent.Engine) (*tagging.Scheduler, error) {
	if cfg.Scheduler.Enabled && !ds.Ready() {
		return nil, apperrors.NewConfigError("deepseek.api_key", "启用标签提取调度器时不能为空")
	}
	return tagging.NewScheduler(cfg.Scheduler, chats, tags, store, ds, engine), nil
}

func provideMaintenance(cfg *config.Config, cache *ttscache.Cache) (*jobs.Maintenance, error) {
	return jobs.NewMaintenance(cfg.Cache, cache)
}

func provideHealthChecker(db *gorm.DB, rdb *redis.Client, log *logrus.Logger) (*database.HealthChecker, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	checker := database.NewHealthChecker(log)
	checker.AddCheck("database", database.SQLCheck(sqlDB))
	if rdb != nil {
		checker.AddCheck("redis", database.RedisCheck(rdb))
	}
	return checker, nil
}
