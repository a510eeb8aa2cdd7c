package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss 镜像中没有快照（从未写入或已过期）
var ErrCacheMiss = errors.New("cache miss")

// MirrorStore 快照镜像后端，每个 key 只保存一份带过期时间的序列化快照
type MirrorStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// RedisMirrorStore 用 Redis 字符串保存镜像
type RedisMirrorStore struct {
	client *redis.Client
}

func NewRedisMirrorStore(client *redis.Client) *RedisMirrorStore {
	return &RedisMirrorStore{client: client}
}

func (r *RedisMirrorStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Store ttl<=0 时不过期
func (r *RedisMirrorStore) Store(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}
