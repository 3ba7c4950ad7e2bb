package ttscache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const defaultVoice = "7426720361753903141"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache() (*Cache, *memArtifactRepo, *memStatsRepo, *fakeClock) {
	artifacts := &memArtifactRepo{}
	stats := newMemStatsRepo()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	cache := NewCache(artifacts, stats, NewNormalizer(defaultVoice),
		WithClock(clock.Now), WithLogger(zap.NewNop()), WithSweepDays(30))
	return cache, artifacts, stats, clock
}

func TestNormalizer_Voice(t *testing.T) {
	n := NewNormalizer(defaultVoice)

	assert.Equal(t, "101001", n.Voice("101001"))
	assert.Equal(t, defaultVoice, n.Voice("alias"))
	assert.Equal(t, defaultVoice, n.Voice("1010011"))
	assert.Equal(t, defaultVoice, n.Voice("10100a"))
	assert.Equal(t, defaultVoice, n.Voice(""))
}

func TestNormalizer_Speed(t *testing.T) {
	n := NewNormalizer(defaultVoice)
	cases := []struct {
		in   float64
		want int
	}{
		{0.5, -2},
		{2.0, 6},
		{1.0, 1},
		{1.0001, 1},
		{1.25, 2},
		{0.1, -2},
		{3.0, 6},
		{0.8, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, n.Speed(tc.in), "speed %v", tc.in)
	}
}

func TestNormalizer_KeyDefaults(t *testing.T) {
	key := NewNormalizer(defaultVoice).Key(Params{Text: "你好", VoiceID: "alias", Speed: 1, Codec: " MP3 "})

	assert.Equal(t, DefaultSampleRate, key.SampleRate)
	assert.Equal(t, "mp3", key.Codec)
	assert.Equal(t, HashText("你好"), key.TextHash)
	assert.Len(t, key.TextHash, 64)
}

func TestCache_HitAcrossSpeedNormalization(t *testing.T) {
	cache, _, _, _ := newTestCache()
	ctx := context.Background()

	put, err := cache.Put(ctx, Params{Text: "今天血糖控制得不错", VoiceID: "alias", Speed: 1.0}, "tts/a.mp3", 2048)
	require.NoError(t, err)

	hit, ok := cache.Find(ctx, Params{Text: "今天血糖控制得不错", VoiceID: "alias", Speed: 1.0})
	require.True(t, ok)
	assert.Equal(t, put.CacheID, hit.CacheID)

	hit2, ok := cache.Find(ctx, Params{Text: "今天血糖控制得不错", VoiceID: "alias", Speed: 1.0001})
	require.True(t, ok)
	assert.Equal(t, put.CacheID, hit2.CacheID)
	assert.Equal(t, float64(1), hit2.Speed)
	assert.Equal(t, defaultVoice, hit2.VoiceID)
}

func TestCache_FindIsExactOnText(t *testing.T) {
	cache, _, _, _ := newTestCache()
	ctx := context.Background()

	_, err := cache.Put(ctx, Params{Text: "胰岛素", VoiceID: "101001", Speed: 1}, "tts/a.mp3", 1)
	require.NoError(t, err)

	_, ok := cache.Find(ctx, Params{Text: "胰岛素 ", VoiceID: "101001", Speed: 1})
	assert.False(t, ok)
	_, ok = cache.Find(ctx, Params{Text: "胰岛素", VoiceID: "101001", Speed: 1, Codec: "wav"})
	assert.False(t, ok)
}

func TestCache_PutTwiceUpdatesSameRow(t *testing.T) {
	cache, artifacts, _, clock := newTestCache()
	ctx := context.Background()
	p := Params{Text: "多喝水", VoiceID: "101001", Speed: 1.2, SampleRate: 16000, Codec: "mp3"}

	first, err := cache.Put(ctx, p, "tts/1.mp3", 100)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := cache.Put(ctx, p, "tts/2.mp3", 200)
	require.NoError(t, err)

	assert.Equal(t, first.CacheID, second.CacheID)
	assert.Equal(t, 1, artifacts.activeCount())

	found, ok := cache.Find(ctx, p)
	require.True(t, ok)
	assert.Equal(t, "tts/2.mp3", found.CachePath)
	assert.Equal(t, int64(200), found.FileSize)
}

func TestCache_HitIncrementsAccess(t *testing.T) {
	cache, _, _, clock := newTestCache()
	ctx := context.Background()
	p := Params{Text: "按时吃药", VoiceID: "101001", Speed: 1}

	_, err := cache.Put(ctx, p, "tts/x.mp3", 10)
	require.NoError(t, err)

	before, ok := cache.Find(ctx, p)
	require.True(t, ok)
	clock.Advance(time.Second)
	after, ok := cache.Find(ctx, p)
	require.True(t, ok)

	assert.Greater(t, after.AccessCount, before.AccessCount)
	assert.False(t, after.LastAccessed.Before(before.LastAccessed))
}

func TestCache_DeactivatedRowIsMiss(t *testing.T) {
	cache, _, _, _ := newTestCache()
	ctx := context.Background()
	p := Params{Text: "测血糖", VoiceID: "101001", Speed: 1}

	row, err := cache.Put(ctx, p, "tts/x.mp3", 10)
	require.NoError(t, err)
	require.True(t, cache.Deactivate(ctx, row.CacheID))

	_, ok := cache.Find(ctx, p)
	assert.False(t, ok)
}

func TestCache_DatabaseErrorsDegrade(t *testing.T) {
	cache, artifacts, _, _ := newTestCache()
	ctx := context.Background()
	artifacts.failAll = true

	_, ok := cache.Find(ctx, Params{Text: "a"})
	assert.False(t, ok)
	assert.Equal(t, Stats{}, cache.Stats(ctx))
	assert.Equal(t, int64(0), cache.Sweep(ctx, 7))
	assert.False(t, cache.Touch(ctx, 1))
}

func TestCache_StatsAccounting(t *testing.T) {
	cache, _, stats, clock := newTestCache()
	ctx := context.Background()

	cache.RecordRequest(ctx, true)
	cache.RecordRequest(ctx, true)
	cache.RecordRequest(ctx, false)
	cache.RecordRequest(ctx, true)

	stat, err := stats.GetByDate(ctx, cache.today())
	require.NoError(t, err)
	require.NotNil(t, stat)
	assert.Equal(t, int64(4), stat.TotalRequests)
	assert.Equal(t, int64(3), stat.CacheHits)
	assert.Equal(t, int64(1), stat.CacheMisses)
	assert.InDelta(t, 75.0, stat.HitRate, 0.001)

	// 跨日后新起一行
	clock.Advance(24 * time.Hour)
	cache.RecordRequest(ctx, false)
	next, _ := stats.GetByDate(ctx, cache.today())
	require.NotNil(t, next)
	assert.Equal(t, int64(1), next.TotalRequests)
	assert.InDelta(t, 0.0, next.HitRate, 0.001)
	assert.Len(t, cache.DailyStats(ctx, 7), 2)
}

func TestCache_StatsAndDailyRefresh(t *testing.T) {
	cache, _, stats, _ := newTestCache()
	ctx := context.Background()

	_, err := cache.Put(ctx, Params{Text: "一", VoiceID: "101001", Speed: 1}, "a", 1024*1024)
	require.NoError(t, err)
	_, err = cache.Put(ctx, Params{Text: "二", VoiceID: "101001", Speed: 1}, "b", 1024*1024)
	require.NoError(t, err)
	cache.Find(ctx, Params{Text: "一", VoiceID: "101001", Speed: 1})

	s := cache.Stats(ctx)
	assert.Equal(t, int64(2), s.TotalFiles)
	assert.Equal(t, 2.0, s.TotalSizeMB)
	assert.Equal(t, float64(1024*1024), s.AvgFileSize)
	assert.Equal(t, int64(1), s.TotalAccesses)
	assert.Equal(t, 0.5, s.AvgAccessCount)
	require.NotNil(t, s.LastAccessTime)

	require.NoError(t, cache.UpdateDailyStats(ctx))
	stat, _ := stats.GetByDate(ctx, cache.today())
	require.NotNil(t, stat)
	assert.Equal(t, int64(2), stat.TotalFiles)
	assert.Equal(t, 2.0, stat.TotalSizeMB)
}

func TestCache_UpdateDailyStats_AggregateFailureKeepsRow(t *testing.T) {
	cache, artifacts, stats, _ := newTestCache()
	ctx := context.Background()

	_, err := cache.Put(ctx, Params{Text: "记得按时服药", VoiceID: "101001", Speed: 1}, "tts/a.mp3", 2*bytesPerMB)
	require.NoError(t, err)
	require.NoError(t, cache.UpdateDailyStats(ctx))

	artifacts.failAll = true
	assert.Error(t, cache.UpdateDailyStats(ctx))

	stat, _ := stats.GetByDate(ctx, cache.today())
	require.NotNil(t, stat)
	assert.Equal(t, int64(1), stat.TotalFiles)
	assert.Equal(t, 2.0, stat.TotalSizeMB)
}

func TestCache_Sweep(t *testing.T) {
	cache, artifacts, _, clock := newTestCache()
	ctx := context.Background()

	_, err := cache.Put(ctx, Params{Text: "旧的", VoiceID: "101001", Speed: 1}, "old", 1)
	require.NoError(t, err)
	clock.Advance(40 * 24 * time.Hour)
	_, err = cache.Put(ctx, Params{Text: "新的", VoiceID: "101001", Speed: 1}, "new", 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), cache.Sweep(ctx, 0))
	assert.Equal(t, 1, artifacts.activeCount())
	_, ok := cache.Find(ctx, Params{Text: "旧的", VoiceID: "101001", Speed: 1})
	assert.False(t, ok)
}

func TestCache_Similar(t *testing.T) {
	cache, _, _, clock := newTestCache()
	ctx := context.Background()

	_, _ = cache.Put(ctx, Params{Text: "空腹血糖偏高", VoiceID: "101001", Speed: 1}, "a", 1)
	clock.Advance(time.Minute)
	_, _ = cache.Put(ctx, Params{Text: "餐后血糖", VoiceID: "101001", Speed: 1}, "b", 1)
	_, _ = cache.Put(ctx, Params{Text: "运动建议", VoiceID: "101001", Speed: 1}, "c", 1)

	rows := cache.Similar(ctx, "血糖", 10)
	require.Len(t, rows, 2)
	assert.Equal(t, "餐后血糖", rows[0].TextContent)
}
