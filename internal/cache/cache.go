package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss key 不存在或已过期
var ErrMiss = errors.New("cache: miss")

// Cache 合成音频等二进制数据的缓存
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// New 优先连接 Redis，连接失败时退回进程内缓存
func New(redisURL string, cleanupInterval time.Duration) Cache {
	if redisURL != "" {
		c, err := NewRedis(redisURL)
		if err == nil {
			return c
		}
		logFallback(err)
	}
	return NewLocal(cleanupInterval)
}
