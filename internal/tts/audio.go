package tts

import (
	"bytes"
	"encoding/binary"
	"strings"
)

var (
	riffMagic = []byte("RIFF")
	waveMagic = []byte("WAVE")
	id3Magic  = []byte("ID3")
	oggMagic  = []byte("OggS")
)

// PCMToWAV 为裸 PCM 数据加上 44 字节 WAV 头
func PCMToWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	if bitsPerSample <= 0 {
		bitsPerSample = 16
	}
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := uint32(len(pcm))

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.Write(riffMagic)
	binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.Write(waveMagic)

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)
	return buf.Bytes()
}

// IsWAV RIFF....WAVE 文件头
func IsWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[:4], riffMagic) && bytes.Equal(data[8:12], waveMagic)
}

// IsMP3 ID3 标签或 MPEG 帧同步字
func IsMP3(data []byte) bool {
	if len(data) >= 3 && bytes.Equal(data[:3], id3Magic) {
		return true
	}
	if len(data) < 2 || data[0] != 0xFF {
		return false
	}
	switch data[1] {
	case 0xFB, 0xF3, 0xF2:
		return true
	}
	return false
}

// ValidateAudio 检查音频数据是否完整可播放；pcm 没有文件头，只要求非空
func ValidateAudio(data []byte, codec string) bool {
	if len(data) == 0 {
		return false
	}
	switch strings.ToLower(codec) {
	case "pcm":
		return true
	case "opus":
		return bytes.HasPrefix(data, oggMagic)
	default:
		return IsWAV(data) || IsMP3(data)
	}
}

// Extension 编码对应的文件扩展名
func Extension(codec string) string {
	switch c := strings.ToLower(codec); c {
	case "mp3", "wav", "pcm", "opus":
		return c
	default:
		return "bin"
	}
}
