package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"go.uber.org/zap"
)

// SnapshotMirror 把当前快照镜像到外部存储（供其它进程读取，以及重启后预热）
type SnapshotMirror struct {
	store  MirrorStore
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewSnapshotMirror 创建镜像
func NewSnapshotMirror(store MirrorStore, key string, ttl time.Duration, logger *zap.Logger) *SnapshotMirror {
	return &SnapshotMirror{store: store, key: key, ttl: ttl, logger: logger}
}

// Save 序列化后写入，TTL 过期表示聚合已停摆
func (m *SnapshotMirror) Save(ctx context.Context, s *models.DashboardSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := m.store.Store(ctx, m.key, data, m.ttl); err != nil {
		return fmt.Errorf("failed to set snapshot mirror: %w", err)
	}

	m.logger.Debug("Updated snapshot mirror",
		zap.String("key", m.key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Load 读取镜像；不存在时返回 ErrCacheMiss
func (m *SnapshotMirror) Load(ctx context.Context) (*models.DashboardSnapshot, error) {
	raw, err := m.store.Load(ctx, m.key)
	if err != nil {
		return nil, err
	}
	var s models.DashboardSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot mirror: %w", err)
	}
	return &s, nil
}

// Warm 用镜像预热缓存，返回是否预热成功
func (m *SnapshotMirror) Warm(ctx context.Context, c *SnapshotCache) bool {
	s, err := m.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			m.logger.Warn("Failed to load snapshot mirror", zap.Error(err))
		}
		return false
	}
	c.Set(s)
	m.logger.Info("Snapshot cache warmed from mirror", zap.Int64("update_time", s.UpdateTime))
	return true
}
