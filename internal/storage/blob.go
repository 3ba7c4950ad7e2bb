package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("blob not found")

// BlobStore 音频文件存储，按缓存记录中的 path 寻址
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// CleanKey 规范化存储键，拒绝越出根目录的路径
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", fmt.Errorf("empty blob key")
	}
	cleaned := strings.TrimPrefix(path.Clean(key), "/")
	if cleaned == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid blob key: %q", key)
	}
	return cleaned, nil
}

// ContentType 根据编码返回 MIME 类型
func ContentType(codec string) string {
	switch strings.ToLower(codec) {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "opus":
		return "audio/ogg"
	case "pcm":
		return "audio/L16"
	default:
		return "application/octet-stream"
	}
}
