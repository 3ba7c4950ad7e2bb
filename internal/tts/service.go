package tts

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/zhitang/backend-go/internal/errors"
	"github.com/zhitang/backend-go/internal/logger"
	"github.com/zhitang/backend-go/internal/metrics"
	"github.com/zhitang/backend-go/internal/models"
	"github.com/zhitang/backend-go/internal/storage"
	"github.com/zhitang/backend-go/internal/ttscache"
)

const (
	synthesisTimeout = 15 * time.Second
	maxTextRunes     = 500
)

// ArtifactCache 语音缓存索引，由 ttscache.Cache 实现
type ArtifactCache interface {
	Normalize(p ttscache.Params) ttscache.Key
	FindKey(ctx context.Context, key ttscache.Key) (*models.TTSArtifact, bool)
	PutKey(ctx context.Context, key ttscache.Key, path string, sizeBytes int64) (*models.TTSArtifact, error)
	Deactivate(ctx context.Context, id int64) bool
	RecordRequest(ctx context.Context, hit bool)
}

// Result 合成结果
type Result struct {
	Audio      []byte `json:"-"`
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	VoiceID    string `json:"voice_id"`
	CacheHit   bool   `json:"cache_hit"`
	CacheID    int64  `json:"cache_id,omitempty"`
	Path       string `json:"cache_path,omitempty"`
}

// Base64Result 以 Base64 返回的合成结果
type Base64Result struct {
	Result
	AudioBase64 string `json:"audio_base64"`
}

// BatchItem 批量合成中的一项，单项失败不影响其余
type BatchItem struct {
	Text        string `json:"text"`
	Success     bool   `json:"success"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	CachePath   string `json:"cache_path,omitempty"`
	CacheHit    bool   `json:"cache_hit"`
	Error       string `json:"error,omitempty"`
}

// Service 带缓存的语音合成
type Service struct {
	cache  ArtifactCache
	blobs  storage.BlobStore
	engine Engine
	volume int
	logger *zap.Logger
}

// NewService 创建语音合成服务，volume 来自 tencent_tts.volume
func NewService(cache ArtifactCache, blobs storage.BlobStore, engine Engine, volume int) *Service {
	if engine == nil {
		engine = NoopEngine{}
	}
	return &Service{
		cache:  cache,
		blobs:  blobs,
		engine: engine,
		volume: volume,
		logger: logger.Named("tts"),
	}
}

// Synthesize 优先返回缓存音频；缓存文件丢失或损坏时作废该记录并重新合成
func (s *Service) Synthesize(ctx context.Context, p ttscache.Params) (*Result, error) {
	if strings.TrimSpace(p.Text) == "" {
		return nil, apperrors.NewValidationError("文本不能为空")
	}
	if n := len([]rune(p.Text)); n > maxTextRunes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("文本过长: %d 字，最多 %d 字", n, maxTextRunes))
	}

	start := time.Now()
	key := s.cache.Normalize(p)

	if res, ok := s.fromCache(ctx, key); ok {
		s.cache.RecordRequest(ctx, true)
		metrics.TTSSynthesisDuration.WithLabelValues("hit").Observe(time.Since(start).Seconds())
		return res, nil
	}

	res, err := s.synthesize(ctx, key)
	s.cache.RecordRequest(ctx, false)
	metrics.TTSSynthesisDuration.WithLabelValues(missStatus(err)).Observe(time.Since(start).Seconds())
	return res, err
}

func missStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "miss"
}

func (s *Service) fromCache(ctx context.Context, key ttscache.Key) (*Result, bool) {
	artifact, ok := s.cache.FindKey(ctx, key)
	if !ok {
		return nil, false
	}

	log := s.logger.With(zap.Int64("cache_id", artifact.CacheID), zap.String("path", artifact.CachePath))
	data, err := s.blobs.Get(ctx, artifact.CachePath)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Warn("缓存音频文件不存在，记录作废")
	case err != nil:
		// 存储暂时不可用时不作废记录
		log.Warn("读取缓存音频失败", zap.Error(err))
		metrics.TTSCacheErrors.WithLabelValues("blob_get").Inc()
		return nil, false
	case !ValidateAudio(data, key.Codec):
		log.Warn("缓存音频格式无效，记录作废", zap.Int("bytes", len(data)))
	default:
		log.Debug("命中语音缓存", zap.Int("bytes", len(data)))
		return &Result{
			Audio:      data,
			Codec:      key.Codec,
			SampleRate: key.SampleRate,
			VoiceID:    key.VoiceID,
			CacheHit:   true,
			CacheID:    artifact.CacheID,
			Path:       artifact.CachePath,
		}, true
	}

	s.cache.Deactivate(ctx, artifact.CacheID)
	return nil, false
}

func (s *Service) synthesize(ctx context.Context, key ttscache.Key) (*Result, error) {
	engineCtx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	data, err := s.engine.Synthesize(engineCtx, EngineRequest{
		Text:       key.Text,
		VoiceType:  key.VoiceID,
		Codec:      key.Codec,
		SampleRate: key.SampleRate,
		Speed:      key.Speed,
		Volume:     s.volume,
	})
	cancel()
	if errors.Is(err, ErrEngineNotConfigured) {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeExternalService, "语音合成服务未配置").WithCause(err)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewSystemError(apperrors.ErrCodeTimeout, "语音合成超时").WithCause(err)
		}
		return nil, apperrors.NewExternalError("tts", err)
	}

	if key.Codec == "wav" && !IsWAV(data) {
		data = PCMToWAV(data, key.SampleRate, 1, 16)
	}
	if !ValidateAudio(data, key.Codec) {
		return nil, apperrors.NewExternalError("tts", fmt.Errorf("engine returned invalid %s audio (%d bytes)", key.Codec, len(data)))
	}

	result := &Result{
		Audio:      data,
		Codec:      key.Codec,
		SampleRate: key.SampleRate,
		VoiceID:    key.VoiceID,
	}

	path := BlobPath(key)
	if err := s.blobs.Put(ctx, path, data, storage.ContentType(key.Codec)); err != nil {
		// 音频照常返回，只是不进缓存
		s.logger.Error("写入音频文件失败", zap.String("path", path), zap.Error(err))
		metrics.TTSCacheErrors.WithLabelValues("blob_put").Inc()
		return result, nil
	}
	result.Path = path

	artifact, err := s.cache.PutKey(ctx, key, path, int64(len(data)))
	if err != nil {
		s.logger.Error("写入语音缓存记录失败", zap.String("path", path), zap.Error(err))
		metrics.TTSCacheErrors.WithLabelValues("put").Inc()
		return result, nil
	}
	result.CacheID = artifact.CacheID
	return result, nil
}

// SynthesizeBase64 合成并以 Base64 返回
func (s *Service) SynthesizeBase64(ctx context.Context, p ttscache.Params) (*Base64Result, error) {
	res, err := s.Synthesize(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Base64Result{Result: *res, AudioBase64: base64.StdEncoding.EncodeToString(res.Audio)}, nil
}

// SynthesizeBatch 顺序合成多段文本，共用音色与语速
func (s *Service) SynthesizeBatch(ctx context.Context, texts []string, template ttscache.Params) []BatchItem {
	items := make([]BatchItem, 0, len(texts))
	for _, text := range texts {
		if ctx.Err() != nil {
			items = append(items, BatchItem{Text: text, Error: ctx.Err().Error()})
			continue
		}
		p := template
		p.Text = text
		res, err := s.Synthesize(ctx, p)
		if err != nil {
			s.logger.Warn("批量合成失败", zap.String("text", truncate(text, 20)), zap.Error(err))
			items = append(items, BatchItem{Text: text, Error: err.Error()})
			continue
		}
		items = append(items, BatchItem{
			Text:        text,
			Success:     true,
			AudioBase64: base64.StdEncoding.EncodeToString(res.Audio),
			CachePath:   res.Path,
			CacheHit:    res.CacheHit,
		})
	}
	return items
}

// BlobPath 音频文件存储键 tts/<voice>/<sha256>.<ext>，哈希覆盖完整缓存键
func BlobPath(key ttscache.Key) string {
	raw := fmt.Sprintf("%s|%s|%d|%d|%s", key.Text, key.VoiceID, key.Speed, key.SampleRate, key.Codec)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("tts/%s/%s.%s", key.VoiceID, hex.EncodeToString(sum[:]), Extension(key.Codec))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
