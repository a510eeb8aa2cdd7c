package alarm

import (
	"sync"
	"time"
)

// Suppressor 报警抑制：同一设备在窗口期内只放行一次报警
// 纯内存，进程重启后清空
type Suppressor struct {
	mu        sync.Mutex
	window    time.Duration
	retention time.Duration
	entries   map[string]time.Time // deviceID -> lastEmittedAt
}

// NewSuppressor 创建抑制器，retention 不小于 window
func NewSuppressor(window, retention time.Duration) *Suppressor {
	if window <= 0 {
		window = 30 * time.Minute
	}
	if retention < window {
		retention = window
	}
	return &Suppressor{
		window:    window,
		retention: retention,
		entries:   make(map[string]time.Time),
	}
}

// ShouldEmit 设备当前是否可以产生新报警；调用时顺带清理过期条目
func (s *Suppressor) ShouldEmit(deviceID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(now)

	last, ok := s.entries[deviceID]
	if !ok {
		return true
	}
	return !last.Add(s.window).After(now)
}

// RecordEmitted 记录放行时间，lastEmittedAt 只前进不后退
func (s *Suppressor) RecordEmitted(deviceID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.entries[deviceID]; ok && last.After(now) {
		return
	}
	s.entries[deviceID] = now
}

// Len 当前抑制表大小
func (s *Suppressor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Suppressor) purgeLocked(now time.Time) {
	for id, last := range s.entries {
		if last.Add(s.retention).Before(now) {
			delete(s.entries, id)
		}
	}
}
