package ttscache

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"

	"github.com/zhitang/backend-go/internal/repository"
)

// 引擎语速范围
const (
	MinEngineSpeed = -2
	MaxEngineSpeed = 6

	DefaultSampleRate = 16000
	DefaultCodec      = "mp3"
)

var engineVoicePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Params 调用方传入的原始合成参数
// Speed 使用 [0.5, 2.0] 的倍速刻度，VoiceID 可以是六位音色编码或业务别名
type Params struct {
	Text       string  `json:"text"`
	VoiceID    string  `json:"voice_id"`
	Speed      float64 `json:"speed"`
	SampleRate int     `json:"sample_rate"`
	Codec      string  `json:"codec"`
}

// Key 归一化后的缓存键，也是引擎实际收到的参数
type Key struct {
	Text       string
	TextHash   string
	VoiceID    string
	Speed      int
	SampleRate int
	Codec      string
}

// Normalizer 缓存键归一化
type Normalizer struct {
	DefaultVoice string
}

// NewNormalizer 创建归一化器，defaultVoice 来自 tencent_tts.voice_type
func NewNormalizer(defaultVoice string) Normalizer {
	return Normalizer{DefaultVoice: defaultVoice}
}

// Voice 六位数字音色原样使用，其余回落到默认音色
func (n Normalizer) Voice(voiceID string) string {
	if engineVoicePattern.MatchString(voiceID) {
		return voiceID
	}
	return n.DefaultVoice
}

// Speed 0.5 映射为 -2，2.0 映射为 6，线性插值后截断到范围并四舍五入
func (n Normalizer) Speed(speed float64) int {
	mapped := (speed-0.5)/1.5*8 + MinEngineSpeed
	mapped = math.Max(MinEngineSpeed, math.Min(MaxEngineSpeed, mapped))
	return int(math.Round(mapped))
}

// Key 生成归一化缓存键
func (n Normalizer) Key(p Params) Key {
	sampleRate := p.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	codec := strings.ToLower(strings.TrimSpace(p.Codec))
	if codec == "" {
		codec = DefaultCodec
	}
	return Key{
		Text:       p.Text,
		TextHash:   HashText(p.Text),
		VoiceID:    n.Voice(p.VoiceID),
		Speed:      n.Speed(p.Speed),
		SampleRate: sampleRate,
		Codec:      codec,
	}
}

// HashText 文本的 SHA-256 十六进制摘要
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (k Key) lookup() repository.ArtifactKey {
	return repository.ArtifactKey{
		Text:       k.Text,
		TextHash:   k.TextHash,
		VoiceID:    k.VoiceID,
		Speed:      float64(k.Speed),
		SampleRate: k.SampleRate,
		Codec:      k.Codec,
	}
}
