package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/zhitang/backend-go/app/bootstrap"
	"github.com/zhitang/backend-go/app/router"
	"github.com/zhitang/backend-go/internal/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init(router.Deps{
		Health:         app.Health,
		TTS:            app.TTS,
		Cache:          app.Cache,
		Maintenance:    app.Maintenance,
		TTSDefaults:    app.TTSDefaults(),
		Retriever:      app.Retriever,
		Scheduler:      app.Scheduler,
		Tags:           app.Tags,
		AllowedOrigins: app.Config.Server.AllowedOrigins,
		Metrics:        app.Config.Metrics.Enabled,
	})

	if err := app.Start(); err != nil {
		log.Fatalf("failed to start background workers: %v", err)
	}

	web.BConfig.AppName = "zhitang-backend"
	web.BConfig.CopyRequestBody = true
	web.BConfig.Listen.HTTPPort = app.Config.Server.Port
	if app.Config.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("收到退出信号，正在关闭服务")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if web.BeeApp.Server != nil {
			if err := web.BeeApp.Server.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP 服务关闭失败", zap.Error(err))
			}
		}
	}()

	logger.Info("🚀 Starting zhitang backend", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
