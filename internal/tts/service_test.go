package tts

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zhitang/backend-go/internal/config"
	apperrors "github.com/zhitang/backend-go/internal/errors"
	"github.com/zhitang/backend-go/internal/models"
	"github.com/zhitang/backend-go/internal/storage"
	"github.com/zhitang/backend-go/internal/ttscache"
)

var mp3Frame = []byte{0xFF, 0xFB, 0x90, 0x64, 0x00}

// memCache 内存版缓存索引
type memCache struct {
	mu          sync.Mutex
	normalizer  ttscache.Normalizer
	rows        map[ttscache.Key]*models.TTSArtifact
	nextID      int64
	hits        int
	misses      int
	deactivated []int64
}

func newMemCache() *memCache {
	return &memCache{
		normalizer: ttscache.NewNormalizer("7426720361753903141"),
		rows:       make(map[ttscache.Key]*models.TTSArtifact),
	}
}

func (c *memCache) Normalize(p ttscache.Params) ttscache.Key {
	return c.normalizer.Key(p)
}

func (c *memCache) FindKey(_ context.Context, key ttscache.Key) (*models.TTSArtifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.rows[key]
	if !ok || !row.IsActive {
		return nil, false
	}
	row.AccessCount++
	copied := *row
	return &copied, true
}

func (c *memCache) PutKey(_ context.Context, key ttscache.Key, path string, size int64) (*models.TTSArtifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	row := &models.TTSArtifact{CacheID: c.nextID, TextContent: key.Text, VoiceID: key.VoiceID,
		Speed: float64(key.Speed), SampleRate: key.SampleRate, Codec: key.Codec,
		CachePath: path, FileSize: size, IsActive: true}
	c.rows[key] = row
	return row, nil
}

func (c *memCache) Deactivate(_ context.Context, id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range c.rows {
		if row.CacheID == id {
			row.IsActive = false
		}
	}
	c.deactivated = append(c.deactivated, id)
	return true
}

func (c *memCache) RecordRequest(_ context.Context, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

// memBlobs 内存版文件存储
type memBlobs struct {
	mu     sync.Mutex
	data   map[string][]byte
	putErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	b.data[key] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return d, nil
}

func (b *memBlobs) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[key]
	return ok, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

// MockEngine 合成引擎 mock
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Synthesize(ctx context.Context, req EngineRequest) ([]byte, error) {
	args := m.Called(ctx, req)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockEngine) Ready() bool { return true }

func newTestService(engine Engine) (*Service, *memCache, *memBlobs) {
	cache, blobs := newMemCache(), newMemBlobs()
	return NewService(cache, blobs, engine, 3), cache, blobs
}

func TestSynthesize_MissThenHit(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, EngineRequest{
		Text: "早上好，记得测血糖", VoiceType: "7426720361753903141", Codec: "mp3",
		SampleRate: 16000, Speed: 1, Volume: 3,
	}).Return(mp3Frame, nil).Once()
	svc, cache, blobs := newTestService(engine)
	ctx := context.Background()
	p := ttscache.Params{Text: "早上好，记得测血糖", VoiceID: "xiaoyun", Speed: 1.0}

	first, err := svc.Synthesize(ctx, p)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, mp3Frame, first.Audio)
	assert.True(t, strings.HasPrefix(first.Path, "tts/7426720361753903141/"))
	assert.True(t, strings.HasSuffix(first.Path, ".mp3"))
	assert.Contains(t, blobs.data, first.Path)

	second, err := svc.Synthesize(ctx, p)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.CacheID, second.CacheID)
	assert.Equal(t, mp3Frame, second.Audio)

	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.misses)
	engine.AssertExpectations(t)
}

func TestSynthesize_EquivalentParamsShareEntry(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything).Return(mp3Frame, nil).Once()
	svc, _, _ := newTestService(engine)
	ctx := context.Background()

	_, err := svc.Synthesize(ctx, ttscache.Params{Text: "你好", VoiceID: "abc", Speed: 1.0, Codec: "MP3"})
	require.NoError(t, err)
	res, err := svc.Synthesize(ctx, ttscache.Params{Text: "你好", VoiceID: "", Speed: 1.05, SampleRate: 16000})
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	engine.AssertNumberOfCalls(t, "Synthesize", 1)
}

func TestSynthesize_CorruptBlobIsDeactivated(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything).Return(mp3Frame, nil).Twice()
	svc, cache, blobs := newTestService(engine)
	ctx := context.Background()
	p := ttscache.Params{Text: "今天吃药了吗", Speed: 1.0}

	first, err := svc.Synthesize(ctx, p)
	require.NoError(t, err)
	blobs.data[first.Path] = []byte(`{"error":"quota"}`)

	second, err := svc.Synthesize(ctx, p)
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
	assert.Equal(t, []int64{first.CacheID}, cache.deactivated)
	assert.NotEqual(t, first.CacheID, second.CacheID)
	assert.Equal(t, mp3Frame, blobs.data[second.Path])
	engine.AssertExpectations(t)
}

func TestSynthesize_MissingBlobIsDeactivated(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything).Return(mp3Frame, nil).Twice()
	svc, cache, blobs := newTestService(engine)
	ctx := context.Background()
	p := ttscache.Params{Text: "晚安", Speed: 1.0}

	first, err := svc.Synthesize(ctx, p)
	require.NoError(t, err)
	delete(blobs.data, first.Path)

	_, err = svc.Synthesize(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.CacheID}, cache.deactivated)
}

func TestSynthesize_WrapsPCMForWAV(t *testing.T) {
	pcm := make([]byte, 320)
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.MatchedBy(func(r EngineRequest) bool {
		return r.Codec == "wav" && r.SampleRate == 8000
	})).Return(pcm, nil)
	svc, _, _ := newTestService(engine)

	res, err := svc.Synthesize(context.Background(), ttscache.Params{Text: "测试", Codec: "wav", SampleRate: 8000, Speed: 1})
	require.NoError(t, err)
	assert.True(t, IsWAV(res.Audio))
	assert.Len(t, res.Audio, 44+len(pcm))
	assert.True(t, strings.HasSuffix(res.Path, ".wav"))
}

func TestSynthesize_EngineFailure(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything).Return(nil, errors.New("503 service unavailable"))
	svc, cache, blobs := newTestService(engine)

	_, err := svc.Synthesize(context.Background(), ttscache.Params{Text: "测试", Speed: 1})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
	assert.Empty(t, blobs.data)
	assert.Empty(t, cache.rows)
	assert.Equal(t, 1, cache.misses)
}

func TestSynthesize_InvalidEngineAudio(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("<html>"), nil)
	svc, cache, _ := newTestService(engine)

	_, err := svc.Synthesize(context.Background(), ttscache.Params{Text: "测试", Speed: 1})
	require.Error(t, err)
	assert.Empty(t, cache.rows)
}

func TestSynthesize_BlobWriteFailureSkipsRow(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything).Return(mp3Frame, nil)
	svc, cache, blobs := newTestService(engine)
	blobs.putErr = errors.New("disk full")

	res, err := svc.Synthesize(context.Background(), ttscache.Params{Text: "测试", Speed: 1})
	require.NoError(t, err)
	assert.Equal(t, mp3Frame, res.Audio)
	assert.Empty(t, res.Path)
	assert.Empty(t, cache.rows)
}

func TestSynthesize_Validation(t *testing.T) {
	svc, _, _ := newTestService(NoopEngine{})

	_, err := svc.Synthesize(context.Background(), ttscache.Params{Text: "  "})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	_, err = svc.Synthesize(context.Background(), ttscache.Params{Text: strings.Repeat("糖", maxTextRunes+1)})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
}

func TestSynthesize_NoEngine(t *testing.T) {
	svc, _, _ := newTestService(nil)

	_, err := svc.Synthesize(context.Background(), ttscache.Params{Text: "测试"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineNotConfigured)
}

func TestSynthesizeBatch(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.MatchedBy(func(r EngineRequest) bool { return r.Text == "坏" })).
		Return(nil, errors.New("boom"))
	engine.On("Synthesize", mock.Anything, mock.Anything).Return(mp3Frame, nil)
	svc, _, _ := newTestService(engine)

	items := svc.SynthesizeBatch(context.Background(), []string{"一", "坏", "一"}, ttscache.Params{Speed: 1})
	require.Len(t, items, 3)
	assert.True(t, items[0].Success)
	assert.False(t, items[0].CacheHit)
	assert.False(t, items[1].Success)
	assert.NotEmpty(t, items[1].Error)
	assert.True(t, items[2].Success)
	assert.True(t, items[2].CacheHit)
	assert.NotEmpty(t, items[2].AudioBase64)
}

func TestSynthesizeBase64(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything).Return(mp3Frame, nil)
	svc, _, _ := newTestService(engine)

	res, err := svc.SynthesizeBase64(context.Background(), ttscache.Params{Text: "测试", Speed: 1})
	require.NoError(t, err)
	assert.Equal(t, "//uQZAA=", res.AudioBase64)
}

func TestBlobPath_DistinguishesParams(t *testing.T) {
	n := ttscache.NewNormalizer("7426720361753903141")
	a := BlobPath(n.Key(ttscache.Params{Text: "你好", Speed: 1}))
	b := BlobPath(n.Key(ttscache.Params{Text: "你好", Speed: 2}))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, BlobPath(n.Key(ttscache.Params{Text: "你好", Speed: 1})))
}

// fakeSpeechClient 返回固定音频
type fakeSpeechClient struct {
	req openai.CreateSpeechRequest
}

func (f *fakeSpeechClient) CreateSpeech(_ context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error) {
	f.req = req
	return openai.RawResponse{ReadCloser: io.NopCloser(strings.NewReader("ID3abc"))}, nil
}

func TestOpenAIEngine(t *testing.T) {
	client := &fakeSpeechClient{}
	engine := NewOpenAIEngine(client, "", "")

	data, err := engine.Synthesize(context.Background(), EngineRequest{
		Text: "你好", VoiceType: "101001", Codec: "mp3", Speed: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3abc"), data)
	assert.Equal(t, openai.TTSModel1, client.req.Model)
	assert.Equal(t, openai.SpeechVoice("101001"), client.req.Voice)
	assert.Equal(t, openai.SpeechResponseFormatMp3, client.req.ResponseFormat)
	assert.InDelta(t, 1.0625, client.req.Speed, 1e-9)

	withVoice := NewOpenAIEngine(client, "tts-1-hd", "alloy")
	_, err = withVoice.Synthesize(context.Background(), EngineRequest{Text: "你好", VoiceType: "101001", Codec: "mp3"})
	require.NoError(t, err)
	assert.Equal(t, openai.SpeechVoice("alloy"), client.req.Voice)
}

func TestNewEngine_WithoutKey(t *testing.T) {
	engine := NewEngine(config.TTSEngineConfig{})
	assert.False(t, engine.Ready())
}
