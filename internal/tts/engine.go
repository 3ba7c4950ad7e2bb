package tts

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/config"
	"github.com/zhitang/backend-go/internal/logger"
)

// ErrEngineNotConfigured 语音合成接口未配置
var ErrEngineNotConfigured = errors.New("tts engine not configured")

// EngineRequest 发给合成引擎的参数，均已归一化
type EngineRequest struct {
	Text       string
	VoiceType  string
	Codec      string
	SampleRate int
	Speed      int
	Volume     int
}

// Engine 语音合成引擎
type Engine interface {
	Synthesize(ctx context.Context, req EngineRequest) ([]byte, error)
	Ready() bool
}

// NoopEngine 未配置时的占位实现
type NoopEngine struct{}

func (NoopEngine) Synthesize(context.Context, EngineRequest) ([]byte, error) {
	return nil, ErrEngineNotConfigured
}

func (NoopEngine) Ready() bool {
	return false
}

// SpeechClient go-openai 客户端满足该接口
type SpeechClient interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAIEngine 调用 OpenAI 兼容的 /audio/speech 接口
type OpenAIEngine struct {
	client SpeechClient
	model  string
	voice  string
	logger *zap.Logger
}

// NewEngine 根据配置创建引擎，未配置 API Key 时返回 NoopEngine
func NewEngine(cfg config.TTSEngineConfig) Engine {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		logger.Warn("语音合成接口未配置，只能返回已缓存的音频")
		return NoopEngine{}
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return NewOpenAIEngine(openai.NewClientWithConfig(clientCfg), cfg.Model, cfg.Voice)
}

// NewOpenAIEngine 使用指定客户端创建引擎
// voice 非空时所有音色编码都映射到该接口音色
func NewOpenAIEngine(client SpeechClient, model, voice string) *OpenAIEngine {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAIEngine{
		client: client,
		model:  model,
		voice:  voice,
		logger: logger.Named("tts_engine"),
	}
}

func (e *OpenAIEngine) Ready() bool {
	return e.client != nil
}

// Synthesize 合成语音，音量参数该接口不支持，只记录日志
func (e *OpenAIEngine) Synthesize(ctx context.Context, req EngineRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("text is empty")
	}
	if !e.Ready() {
		return nil, ErrEngineNotConfigured
	}

	voice := e.voice
	if voice == "" {
		voice = req.VoiceType
	}

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(e.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormat(req.Codec),
		Speed:          SpeedRatio(req.Speed),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("语音合成完成",
		zap.String("voice", voice),
		zap.Int("speed", req.Speed),
		zap.Int("volume", req.Volume),
		zap.Int("bytes", len(data)))
	return data, nil
}

// SpeedRatio 把 [-2, 6] 的引擎语速还原为 [0.5, 2.0] 倍速
func SpeedRatio(speed int) float64 {
	return float64(speed+2)/8*1.5 + 0.5
}
