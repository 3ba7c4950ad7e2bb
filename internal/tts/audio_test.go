package tts

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMToWAV(t *testing.T) {
	pcm := make([]byte, 3200)
	wav := PCMToWAV(pcm, 16000, 1, 16)

	require.Len(t, wav, 44+len(pcm))
	assert.True(t, IsWAV(wav))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestValidateAudio(t *testing.T) {
	cases := []struct {
		name  string
		data  []byte
		codec string
		want  bool
	}{
		{"wav", PCMToWAV([]byte{1, 2}, 16000, 1, 16), "wav", true},
		{"id3", []byte("ID3\x04\x00"), "mp3", true},
		{"mpeg sync fb", []byte{0xFF, 0xFB, 0x90}, "mp3", true},
		{"mpeg sync f3", []byte{0xFF, 0xF3, 0x90}, "mp3", true},
		{"mpeg sync f2", []byte{0xFF, 0xF2, 0x90}, "mp3", true},
		{"bad sync", []byte{0xFF, 0xE0, 0x90}, "mp3", false},
		{"truncated riff", []byte("RIFF\x00\x00"), "wav", false},
		{"json error body", []byte(`{"error":"x"}`), "mp3", false},
		{"pcm", []byte{0x00, 0x01}, "pcm", true},
		{"empty pcm", nil, "pcm", false},
		{"ogg", []byte("OggS\x00"), "opus", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateAudio(tc.data, tc.codec))
		})
	}
}

func TestSpeedRatio(t *testing.T) {
	assert.InDelta(t, 0.5, SpeedRatio(-2), 1e-9)
	assert.InDelta(t, 2.0, SpeedRatio(6), 1e-9)
	assert.InDelta(t, 1.0625, SpeedRatio(1), 1e-9)
}
