package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zhitang/backend-go/internal/config"
	apperrors "github.com/zhitang/backend-go/internal/errors"
	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/metrics"
)

const (
	ChatTimeout    = 30 * time.Second
	ExtractTimeout = 10 * time.Second

	tagTemperature  = 0.2
	chatTemperature = 0.7
)

// ErrNotConfigured 未配置 API Key
var ErrNotConfigured = errors.New("deepseek api key not configured")

// ChatCompleter 对话补全接口，go-openai 客户端满足该接口
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// DeepSeek OpenAI 兼容的 DeepSeek 客户端
type DeepSeek struct {
	client  ChatCompleter
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDeepSeek 创建客户端；未配置 API Key 时返回的实例 Ready() 为 false
func NewDeepSeek(cfg config.DeepSeekConfig) *DeepSeek {
	d := &DeepSeek{
		model:   cfg.Model,
		limiter: newLimiter(cfg.RPS),
		logger:  logger.Named("deepseek"),
	}
	if d.model == "" {
		d.model = "deepseek-chat"
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		d.logger.Warn("DeepSeek API Key 未配置，标签提取与AI回答不可用")
		return d
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	d.client = openai.NewClientWithConfig(clientCfg)
	return d
}

// NewDeepSeekWithClient 使用指定的补全客户端，测试用
func NewDeepSeekWithClient(client ChatCompleter, model string, rps float64, log *zap.Logger) *DeepSeek {
	return &DeepSeek{client: client, model: model, limiter: newLimiter(rps), logger: log}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Ready 是否可用
func (d *DeepSeek) Ready() bool {
	return d != nil && d.client != nil
}

// Chat 单轮对话
func (d *DeepSeek) Chat(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()
	return d.complete(ctx, "chat", system, user, chatTemperature)
}

// ExtractTags 从对话文本中提取用户标签
func (d *DeepSeek) ExtractTags(ctx context.Context, userID int64, text string) ([]TagSpec, error) {
	ctx, cancel := context.WithTimeout(ctx, ExtractTimeout)
	defer cancel()

	content, err := d.complete(ctx, "extract_tags", TagPrompt, tagUserMessage(text), tagTemperature)
	if err != nil {
		return nil, err
	}

	tags, err := ParseTagResponse(content)
	if err != nil {
		d.logger.Warn("标签响应格式无效",
			zap.Int64("user_id", userID),
			zap.String("content", truncate(content, 200)),
			zap.Error(err))
		return nil, err
	}
	d.logger.Info("从对话中提取标签", zap.Int64("user_id", userID), zap.Int("count", len(tags)))
	return tags, nil
}

func (d *DeepSeek) complete(ctx context.Context, operation, system, user string, temperature float32) (string, error) {
	if !d.Ready() {
		return "", ErrNotConfigured
	}
	if err := d.limiter.Wait(ctx); err != nil {
		metrics.LLMRequests.WithLabelValues(operation, "throttled").Inc()
		return "", apperrors.NewSystemError(apperrors.ErrCodeTimeout, "大模型请求排队超时").WithCause(err)
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
	})
	metrics.LLMRequests.WithLabelValues(operation, metrics.Status(err)).Inc()
	if err != nil {
		return "", apperrors.NewExternalError("deepseek", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewExternalError("deepseek", errors.New("empty choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
