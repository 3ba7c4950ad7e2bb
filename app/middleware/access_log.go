package middleware

import (
	"time"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/logger"
)

const (
	RequestIDHeader = "X-Request-Id"

	requestIDKey    = "request_id"
	requestStartKey = "request_start"
)

// RequestID 为每个请求分配 ID，客户端已携带时沿用
func RequestID(ctx *context.Context) {
	id := ctx.Input.Header(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Input.SetData(requestIDKey, id)
	ctx.Input.SetData(requestStartKey, time.Now())
	ctx.Output.Header(RequestIDHeader, id)
}

// GetRequestID 当前请求 ID
func GetRequestID(ctx *context.Context) string {
	id, _ := ctx.Input.GetData(requestIDKey).(string)
	return id
}

// AccessLog 请求结束后记录访问日志，需注册在 FinishRouter 阶段
func AccessLog(ctx *context.Context) {
	fields := []zap.Field{
		zap.String("request_id", GetRequestID(ctx)),
		zap.String("method", ctx.Input.Method()),
		zap.String("path", ctx.Input.URL()),
		zap.Int("status", ctx.ResponseWriter.Status),
		zap.String("ip", ctx.Input.IP()),
	}
	if start, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
		fields = append(fields, zap.Duration("elapsed", time.Since(start)))
	}
	logger.Named("http").Info("请求完成", fields...)
}
