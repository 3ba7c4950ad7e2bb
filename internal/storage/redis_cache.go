package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zhitang/backend-go/internal/logger"
)

const redisKeyPrefix = "tts:blob:"

// RedisCachedStore 在底层存储前加一层Redis热点缓存
// Redis 不可用时直接读写底层存储
type RedisCachedStore struct {
	inner  BlobStore
	client redis.Cmdable
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCachedStore 创建带Redis缓存的存储
func NewRedisCachedStore(inner BlobStore, client redis.Cmdable, ttl time.Duration) *RedisCachedStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCachedStore{inner: inner, client: client, ttl: ttl}
}

// Put 写底层存储后写入缓存
func (s *RedisCachedStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.inner.Put(ctx, key, data, contentType); err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		logger.Warn("写入音频缓存失败", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Get 优先读Redis，未命中时读底层存储并回填
func (s *RedisCachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == nil {
		s.hits.Add(1)
		return data, nil
	}
	s.misses.Add(1)
	if !errors.Is(err, redis.Nil) {
		logger.Warn("读取音频缓存失败", zap.String("key", key), zap.Error(err))
	}

	data, err = s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		logger.Debug("回填音频缓存失败", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

// Exists 以底层存储为准
func (s *RedisCachedStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.inner.Exists(ctx, key)
}

// Delete 同时删除缓存和底层文件
func (s *RedisCachedStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		logger.Warn("删除音频缓存失败", zap.String("key", key), zap.Error(err))
	}
	return s.inner.Delete(ctx, key)
}

// HitStats 返回命中与未命中次数
func (s *RedisCachedStore) HitStats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}
