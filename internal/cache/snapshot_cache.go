package cache

import (
	"sync/atomic"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"
)

// SnapshotCache 保存最近一次成功聚合的快照
// 整体替换，读方只会看到旧值或新值
type SnapshotCache struct {
	current atomic.Pointer[models.DashboardSnapshot]
	seq     atomic.Uint64
	now     func() time.Time
}

// NewSnapshotCache 创建空缓存
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{now: time.Now}
}

// Set 替换当前快照并分配序号，nil 忽略
// 序号在发布前写入，订阅方按序号去重，不依赖墙上时钟
func (c *SnapshotCache) Set(s *models.DashboardSnapshot) {
	if s == nil {
		return
	}
	s.Seq = c.seq.Add(1)
	c.current.Store(s)
}

// Get 返回当前快照；从未成功聚合时 ok=false
func (c *SnapshotCache) Get() (*models.DashboardSnapshot, bool) {
	s := c.current.Load()
	return s, s != nil
}

// Current 返回当前快照，没有时返回全零快照
func (c *SnapshotCache) Current() *models.DashboardSnapshot {
	if s := c.current.Load(); s != nil {
		return s
	}
	return models.EmptySnapshot(c.now())
}
