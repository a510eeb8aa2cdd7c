package hub

import (
	"encoding/json"
	"sync"

	"github.com/GG-Yelin/factory-monitor-screen/internal/metrics"
	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"go.uber.org/zap"
)

// Subscriber 一个实时订阅连接
// Send 不得阻塞：无法立即接收时返回 false
type Subscriber interface {
	ID() string
	Send(payload []byte) bool
	Close()
}

// SnapshotSource 当前缓存快照
type SnapshotSource interface {
	Current() *models.DashboardSnapshot
}

// entry 记录每个订阅者最后收到的缓存序号，避免同一周期重复投递
type entry struct {
	sub       Subscriber
	mu        sync.Mutex
	lastSeq   uint64
	closeOnce sync.Once
}

// deliver 投递序号为 seq 的快照；force 时忽略去重
// seq 为 0 的快照（占位或未进入缓存）总是投递且不推进 lastSeq
func (e *entry) deliver(payload []byte, seq uint64, force bool) (sent bool, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !force && seq != 0 && e.lastSeq >= seq {
		return false, true
	}
	if !e.sub.Send(payload) {
		return false, false
	}
	if seq > e.lastSeq {
		e.lastSeq = seq
	}
	return true, true
}

// Hub 订阅者集合与快照扇出
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*entry
	source SnapshotSource
	logger *zap.Logger
}

// NewHub 创建订阅中心
func NewHub(source SnapshotSource, logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]*entry),
		source: source,
		logger: logger,
	}
}

// Register 先投递当前缓存快照，再加入广播集合
func (h *Hub) Register(sub Subscriber) {
	e := &entry{sub: sub}

	snap := h.source.Current()
	payload, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("Failed to marshal snapshot for new subscriber", zap.Error(err))
	} else if _, ok := e.deliver(payload, snap.Seq, true); !ok {
		h.logger.Debug("New subscriber rejected initial snapshot", zap.String("subscriber_id", sub.ID()))
		e.closeOnce.Do(sub.Close)
		return
	}

	h.mu.Lock()
	h.subs[sub.ID()] = e
	n := len(h.subs)
	h.mu.Unlock()
	metrics.Subscribers.Set(float64(n))

	h.logger.Info("Subscriber registered", zap.String("subscriber_id", sub.ID()), zap.Int("subscribers", n))

	// 注册期间若缓存已被更新且那次广播没有覆盖到本订阅者，这里补发
	if latest := h.source.Current(); latest.Seq > snap.Seq {
		if payload, err := json.Marshal(latest); err == nil {
			if _, ok := e.deliver(payload, latest.Seq, false); !ok {
				h.drop(sub.ID(), e)
			}
		}
	}
}

// Unregister 幂等，可与广播并发调用
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	e, ok := h.subs[sub.ID()]
	if ok && e.sub == sub {
		delete(h.subs, sub.ID())
	}
	n := len(h.subs)
	h.mu.Unlock()

	if !ok || e.sub != sub {
		return
	}
	metrics.Subscribers.Set(float64(n))
	e.closeOnce.Do(sub.Close)
	h.logger.Info("Subscriber unregistered", zap.String("subscriber_id", sub.ID()), zap.Int("subscribers", n))
}

// drop 发送失败的订阅者视为断开
func (h *Hub) drop(id string, e *entry) {
	h.mu.Lock()
	if cur, ok := h.subs[id]; ok && cur == e {
		delete(h.subs, id)
	}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
	metrics.SubscribersDropped.Inc()
	e.closeOnce.Do(e.sub.Close)
	h.logger.Debug("Dropped unreachable subscriber", zap.String("subscriber_id", id))
}

// Broadcast 向所有订阅者投递同一份序列化快照，返回成功投递数
// 单个订阅者失败不影响其它订阅者
func (h *Hub) Broadcast(snap *models.DashboardSnapshot) int {
	if snap == nil {
		return 0
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("Failed to marshal snapshot for broadcast", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	targets := make(map[string]*entry, len(h.subs))
	for id, e := range h.subs {
		targets[id] = e
	}
	h.mu.RUnlock()

	delivered := 0
	for id, e := range targets {
		sent, ok := e.deliver(payload, snap.Seq, false)
		if !ok {
			h.drop(id, e)
			continue
		}
		if sent {
			delivered++
		}
	}

	metrics.Broadcasts.Inc()
	return delivered
}

// SendCurrent 响应订阅者的 refresh 请求，只向该订阅者重发当前快照
func (h *Hub) SendCurrent(id string) bool {
	h.mu.RLock()
	e, ok := h.subs[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	snap := h.source.Current()
	payload, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("Failed to marshal snapshot for refresh", zap.Error(err))
		return false
	}
	if _, ok := e.deliver(payload, snap.Seq, true); !ok {
		h.drop(id, e)
		return false
	}
	return true
}

// Count 当前订阅者数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// CloseAll 进程退出时断开全部订阅者
func (h *Hub) CloseAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*entry)
	h.mu.Unlock()

	for _, e := range subs {
		e.closeOnce.Do(e.sub.Close)
	}
	metrics.Subscribers.Set(0)
}
