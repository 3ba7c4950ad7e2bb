package controllers

import (
	"net/http"

	"github.com/zhitang/backend-go/internal/jobs"
	"github.com/zhitang/backend-go/internal/tts"
	"github.com/zhitang/backend-go/internal/ttscache"
)

// TTSController 语音合成与缓存管理
type TTSController struct {
	BaseController
	Service     *tts.Service
	Cache       *ttscache.Cache
	Maintenance *jobs.Maintenance
	Defaults    ttscache.Params
}

type synthesizeRequest struct {
	Text       string   `json:"text" validate:"required"`
	VoiceID    string   `json:"voice_id"`
	Speed      *float64 `json:"speed" validate:"omitempty,gte=0.5,lte=2"`
	SampleRate int      `json:"sample_rate" validate:"omitempty,oneof=8000 16000 24000"`
	Codec      string   `json:"codec" validate:"omitempty,oneof=mp3 wav pcm opus MP3 WAV PCM OPUS"`
}

type batchRequest struct {
	Texts      []string `json:"texts" validate:"required,min=1,max=20"`
	VoiceID    string   `json:"voice_id"`
	Speed      *float64 `json:"speed" validate:"omitempty,gte=0.5,lte=2"`
	SampleRate int      `json:"sample_rate" validate:"omitempty,oneof=8000 16000 24000"`
	Codec      string   `json:"codec"`
}

// params 未指定的字段取默认值
func (c *TTSController) params(text, voiceID string, speed *float64, sampleRate int, codec string) ttscache.Params {
	p := c.Defaults
	p.Text = text
	if voiceID != "" {
		p.VoiceID = voiceID
	}
	if speed != nil {
		p.Speed = *speed
	}
	if sampleRate > 0 {
		p.SampleRate = sampleRate
	}
	if codec != "" {
		p.Codec = codec
	}
	return p
}

// Synthesize POST /api/tts/synthesize
func (c *TTSController) Synthesize() {
	var req synthesizeRequest
	if !c.bindJSON(&req) {
		return
	}
	res, err := c.Service.SynthesizeBase64(c.Ctx.Request.Context(),
		c.params(req.Text, req.VoiceID, req.Speed, req.SampleRate, req.Codec))
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"audio_base64": res.AudioBase64,
		"codec":        res.Codec,
		"sample_rate":  res.SampleRate,
		"voice_id":     res.VoiceID,
		"cache_hit":    res.CacheHit,
		"cache_path":   res.Path,
	})
}

// Batch POST /api/tts/batch
func (c *TTSController) Batch() {
	var req batchRequest
	if !c.bindJSON(&req) {
		return
	}
	items := c.Service.SynthesizeBatch(c.Ctx.Request.Context(), req.Texts,
		c.params("", req.VoiceID, req.Speed, req.SampleRate, req.Codec))

	succeeded := 0
	for _, item := range items {
		if item.Success {
			succeeded++
		}
	}
	c.JSONSuccess(map[string]interface{}{
		"total":     len(items),
		"succeeded": succeeded,
		"results":   items,
	})
}

// Stats GET /api/tts/cache/stats
func (c *TTSController) Stats() {
	c.JSONSuccess(c.Cache.Stats(c.Ctx.Request.Context()))
}

// Daily GET /api/tts/cache/daily?days=7
func (c *TTSController) Daily() {
	days := c.queryInt("days", 7)
	if days <= 0 || days > 90 {
		c.JSONError(http.StatusBadRequest, "days 取值范围为 1-90")
		return
	}
	c.JSONSuccess(c.Cache.DailyStats(c.Ctx.Request.Context(), days))
}

// Similar GET /api/tts/cache/similar?q=&limit=
func (c *TTSController) Similar() {
	q := c.GetString("q")
	if q == "" {
		c.JSONError(http.StatusBadRequest, "缺少查询参数 q")
		return
	}
	limit := c.queryInt("limit", 10)
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	c.JSONSuccess(c.Cache.Similar(c.Ctx.Request.Context(), q, limit))
}

// Sweep POST /api/tts/cache/sweep
func (c *TTSController) Sweep() {
	deleted := c.Maintenance.RunSweep(c.Ctx.Request.Context())
	c.JSONSuccess(map[string]interface{}{"deleted": deleted})
}
