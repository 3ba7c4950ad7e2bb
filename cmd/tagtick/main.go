package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/zhitang/backend-go/app/bootstrap"
	"github.com/zhitang/backend-go/internal/logger"
)

// 手动执行一轮标签提取，或处理指定对话
func main() {
	userID := flag.Int64("user", 0, "User ID for single conversation extraction")
	conversationID := flag.String("conversation", "", "Conversation ID for single conversation extraction")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall timeout")
	flag.Parse()

	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *conversationID != "" {
		if *userID <= 0 {
			log.Fatal("-user is required with -conversation")
		}
		res := app.Scheduler.ProcessOne(ctx, *userID, *conversationID)
		logger.Info("单个对话标签提取完成",
			zap.Bool("success", res.Success),
			zap.Int("tag_count", res.TagCount),
			zap.String("message", res.Message))
		return
	}

	res, err := app.Scheduler.Tick(ctx)
	if err != nil {
		logger.Error("标签提取失败", zap.Error(err))
		return
	}
	logger.Info("标签提取完成",
		zap.Int("candidates", res.Candidates),
		zap.Int("skipped", res.Skipped),
		zap.Int("processed", res.Processed),
		zap.Int("tag_count", res.TagCount))
}
