package bootstrap

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zhitang/backend-go/internal/agent"
	"github.com/zhitang/backend-go/internal/config"
	"github.com/zhitang/backend-go/internal/database"
	"github.com/zhitang/backend-go/internal/di"
	"github.com/zhitang/backend-go/internal/jobs"
	"github.com/zhitang/backend-go/internal/knowledge"
	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/tagging"
	"github.com/zhitang/backend-go/internal/tts"
	"github.com/zhitang/backend-go/internal/ttscache"
)

// components 从容器中取出的组件
type components struct {
	dig.In

	DB          *gorm.DB
	Redis       *redis.Client
	Logrus      *logrus.Logger
	TTS         *tts.Service
	Cache       *ttscache.Cache
	Retriever   *knowledge.Retriever
	Tags        *tagging.Store
	Scheduler   *tagging.Scheduler
	Maintenance *jobs.Maintenance
	Health      *database.HealthChecker
	Engine      agent.Engine
}

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config      *config.Config
	TTS         *tts.Service
	Cache       *ttscache.Cache
	Retriever   *knowledge.Retriever
	Tags        *tagging.Store
	Scheduler   *tagging.Scheduler
	Maintenance *jobs.Maintenance
	Health      *database.HealthChecker

	loader       *config.Loader
	parts        components
	cancel       context.CancelFunc
	cleanupTasks []func() error
}

// Init bootstraps configuration, logger, database connections and other shared
// infrastructure components. Background workers are not started until Start.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	config.AppConfig = cfg

	if _, err := di.Build(cfg); err != nil {
		return nil, err
	}

	app := &App{Config: cfg, loader: loader}
	if err := di.Invoke(func(c components) {
		app.parts = c
	}); err != nil {
		return nil, err
	}

	c := app.parts
	app.TTS = c.TTS
	app.Cache = c.Cache
	app.Retriever = c.Retriever
	app.Tags = c.Tags
	app.Scheduler = c.Scheduler
	app.Maintenance = c.Maintenance
	app.Health = c.Health

	app.cleanupTasks = append(app.cleanupTasks, func() error {
		return database.Close(c.DB)
	})
	if c.Redis != nil {
		app.cleanupTasks = append(app.cleanupTasks, c.Redis.Close)
	}
	app.cleanupTasks = append(app.cleanupTasks, c.Engine.Close)

	logger.Info("应用初始化完成",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("redis", c.Redis != nil),
		zap.String("agent_mode", cfg.Agent.Mode))
	return app, nil
}

// TTSDefaults 请求未指定参数时使用的合成参数
func (a *App) TTSDefaults() ttscache.Params {
	return ttscache.Params{
		VoiceID:    a.Config.TencentTTS.VoiceType,
		Speed:      1.0,
		SampleRate: a.Config.TencentTTS.SampleRate,
		Codec:      a.Config.TencentTTS.Codec,
	}
}

// Start 启动后台任务
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	c := a.parts

	c.Health.Start(ctx)
	a.cleanupTasks = append(a.cleanupTasks, func() error {
		c.Health.Stop()
		return nil
	})

	if sqlDB, err := c.DB.DB(); err == nil {
		go database.NewPoolCollector(sqlDB, c.Logrus).Run(ctx)
	}

	if a.Config.Scheduler.Enabled {
		c.Scheduler.Start()
		a.cleanupTasks = append(a.cleanupTasks, func() error {
			c.Scheduler.Stop()
			return nil
		})
	} else {
		logger.Info("标签提取调度器未启用")
	}

	c.Maintenance.Start()
	a.cleanupTasks = append(a.cleanupTasks, c.Maintenance.Stop)

	if a.Config.Knowledge.Watch {
		watcher := knowledge.NewWatcher(a.Config.Knowledge.Dir, c.Retriever, 0, logger.Named("knowledge"))
		if err := watcher.Start(); err != nil {
			logger.Warn("知识库目录监听启动失败", zap.Error(err))
		} else {
			a.cleanupTasks = append(a.cleanupTasks, func() error {
				watcher.Stop()
				return nil
			})
		}
	}

	if os.Getenv("CONFIG_FILE") != "" {
		a.loader.OnChange(func(_, newConfig *config.Config) {
			config.AppConfig = newConfig
			logger.Info("配置已更新，调度与存储相关配置需重启后生效")
		})
		if err := a.loader.Watch(); err != nil {
			logger.Warn("配置文件监听启动失败", zap.Error(err))
		}
	}
	return nil
}

// Shutdown 按启动的逆序释放资源
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanupTasks = nil

	if err := errors.Join(errs...); err != nil {
		logger.Error("资源释放失败", zap.Error(err))
	}
	logger.Sync()
}
