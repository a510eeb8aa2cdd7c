package cache_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/cache"
)

// memoryMirror 内存镜像后端
type memoryMirror struct {
	mu      sync.Mutex
	data    []byte
	expires time.Time
	writes  int
	fail    bool
}

func (m *memoryMirror) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil || (!m.expires.IsZero() && time.Now().After(m.expires)) {
		return nil, cache.ErrCacheMiss
	}
	return m.data, nil
}

func (m *memoryMirror) Store(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("mirror unavailable")
	}
	m.writes++
	m.data = data
	m.expires = time.Time{}
	if ttl > 0 {
		m.expires = time.Now().Add(ttl)
	}
	return nil
}
