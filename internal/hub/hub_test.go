package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/cache"
	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubscriber struct {
	id     string
	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed int
}

func newFakeSubscriber(id string) *fakeSubscriber {
	return &fakeSubscriber{id: id}
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Send(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false
	}
	f.msgs = append(f.msgs, payload)
	return true
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeSubscriber) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeSubscriber) updateTimes(t *testing.T) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.msgs))
	for _, m := range f.msgs {
		var s models.DashboardSnapshot
		require.NoError(t, json.Unmarshal(m, &s))
		out = append(out, s.UpdateTime)
	}
	return out
}

func (f *fakeSubscriber) totals(t *testing.T) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.msgs))
	for _, m := range f.msgs {
		var s models.DashboardSnapshot
		require.NoError(t, json.Unmarshal(m, &s))
		out = append(out, s.TotalDevices)
	}
	return out
}

func snapshotAt(ms int64, total int) *models.DashboardSnapshot {
	s := models.EmptySnapshot(time.UnixMilli(ms))
	s.TotalDevices = total
	return s
}

func TestRegister_DeliversCurrentSnapshotFirst(t *testing.T) {
	c := cache.NewSnapshotCache()
	c.Set(snapshotAt(1000, 3))
	h := NewHub(c, zap.NewNop())

	sub := newFakeSubscriber("a")
	h.Register(sub)

	assert.Equal(t, 1, h.Count())
	assert.Equal(t, []int64{1000}, sub.updateTimes(t))
}

func TestRegister_EmptyCacheSendsZeroSnapshot(t *testing.T) {
	h := NewHub(cache.NewSnapshotCache(), zap.NewNop())
	sub := newFakeSubscriber("a")
	h.Register(sub)

	require.Len(t, sub.msgs, 1)
	var s models.DashboardSnapshot
	require.NoError(t, json.Unmarshal(sub.msgs[0], &s))
	assert.Equal(t, 0, s.TotalDevices)
	assert.NotNil(t, s.Devices)
	assert.Contains(t, string(sub.msgs[0]), `"alarms":[]`)
}

func TestRegister_RejectedInitialSendIsNotKept(t *testing.T) {
	h := NewHub(cache.NewSnapshotCache(), zap.NewNop())
	sub := newFakeSubscriber("a")
	sub.setFail(true)
	h.Register(sub)

	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 1, sub.closed)
}

func TestBroadcast_NoDuplicateForSameSnapshot(t *testing.T) {
	c := cache.NewSnapshotCache()
	snap := snapshotAt(1000, 1)
	c.Set(snap)
	h := NewHub(c, zap.NewNop())

	sub := newFakeSubscriber("a")
	h.Register(sub)

	// 注册时已收到该快照，广播同一快照不应再投递
	assert.Equal(t, 0, h.Broadcast(snap))

	next := snapshotAt(2000, 2)
	c.Set(next)
	assert.Equal(t, 1, h.Broadcast(next))
	assert.Equal(t, 0, h.Broadcast(next))

	assert.Equal(t, []int64{1000, 2000}, sub.updateTimes(t))
}

func TestBroadcast_FailedSubscriberIsRemovedOthersUnaffected(t *testing.T) {
	c := cache.NewSnapshotCache()
	h := NewHub(c, zap.NewNop())

	good := newFakeSubscriber("good")
	bad := newFakeSubscriber("bad")
	h.Register(good)
	h.Register(bad)
	require.Equal(t, 2, h.Count())

	bad.setFail(true)
	snap := snapshotAt(time.Now().Add(time.Minute).UnixMilli(), 4)
	c.Set(snap)

	assert.Equal(t, 1, h.Broadcast(snap))
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 1, bad.closed)
	assert.Len(t, good.msgs, 2)
}

func TestBroadcast_Nil(t *testing.T) {
	h := NewHub(cache.NewSnapshotCache(), zap.NewNop())
	assert.Equal(t, 0, h.Broadcast(nil))
}

func TestUnregister_Idempotent(t *testing.T) {
	h := NewHub(cache.NewSnapshotCache(), zap.NewNop())
	sub := newFakeSubscriber("a")
	h.Register(sub)

	h.Unregister(sub)
	h.Unregister(sub)

	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 1, sub.closed)
	assert.Equal(t, 0, h.Broadcast(snapshotAt(time.Now().Add(time.Hour).UnixMilli(), 1)))
}

func TestSendCurrent_BypassesDedup(t *testing.T) {
	c := cache.NewSnapshotCache()
	c.Set(snapshotAt(1000, 1))
	h := NewHub(c, zap.NewNop())

	sub := newFakeSubscriber("a")
	h.Register(sub)

	assert.True(t, h.SendCurrent("a"))
	assert.False(t, h.SendCurrent("missing"))
	assert.Equal(t, []int64{1000, 1000}, sub.updateTimes(t))
}

func TestRegister_EmptyCacheThenOlderStampedBroadcast(t *testing.T) {
	c := cache.NewSnapshotCache()
	h := NewHub(c, zap.NewNop())

	// 聚合在订阅者连接前取的时间，缓存写入在连接之后
	built := snapshotAt(time.Now().Add(-time.Second).UnixMilli(), 4)

	sub := newFakeSubscriber("a")
	h.Register(sub)
	require.Equal(t, []int{0}, sub.totals(t))

	c.Set(built)
	assert.Equal(t, 1, h.Broadcast(built))
	assert.Equal(t, []int{0, 4}, sub.totals(t))
}

func TestBroadcast_ClockStepBackStillDelivered(t *testing.T) {
	c := cache.NewSnapshotCache()
	first := snapshotAt(5000, 1)
	c.Set(first)
	h := NewHub(c, zap.NewNop())

	sub := newFakeSubscriber("a")
	h.Register(sub)

	earlier := snapshotAt(4000, 2)
	c.Set(earlier)
	assert.Equal(t, 1, h.Broadcast(earlier))
	assert.Equal(t, []int{1, 2}, sub.totals(t))
}

func TestRegister_CatchUpAfterMissedBroadcast(t *testing.T) {
	c := cache.NewSnapshotCache()
	h := NewHub(c, zap.NewNop())

	// 初始投递期间缓存被更新，且那次广播没有覆盖到新订阅者
	sub := &hookSubscriber{fakeSubscriber: newFakeSubscriber("a")}
	next := snapshotAt(2000, 7)
	sub.onFirstSend = func() {
		c.Set(next)
		h.Broadcast(next)
	}
	h.Register(sub)

	assert.Equal(t, []int{0, 7}, sub.totals(t))
	assert.Equal(t, 0, h.Broadcast(next), "catch-up already delivered this snapshot")
}

// hookSubscriber 第一次 Send 时执行回调
type hookSubscriber struct {
	*fakeSubscriber
	once        sync.Once
	onFirstSend func()
}

func (h *hookSubscriber) Send(payload []byte) bool {
	ok := h.fakeSubscriber.Send(payload)
	h.once.Do(h.onFirstSend)
	return ok
}

func TestConcurrentRegisterBroadcastUnregister(t *testing.T) {
	c := cache.NewSnapshotCache()
	h := NewHub(c, zap.NewNop())

	var wg sync.WaitGroup
	subs := make([]*fakeSubscriber, 50)
	for i := range subs {
		subs[i] = newFakeSubscriber(fmt.Sprintf("s-%d", i))
	}

	const rounds = 20
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, s := range subs {
			h.Register(s)
		}
	}()
	go func() {
		defer wg.Done()
		base := time.Now().Add(-time.Hour).UnixMilli()
		for i := 1; i <= rounds; i++ {
			snap := snapshotAt(base+int64(i)*1000, i)
			c.Set(snap)
			h.Broadcast(snap)
		}
	}()
	wg.Wait()

	for _, s := range subs {
		totals := s.totals(t)
		require.NotEmpty(t, totals)
		// 收到的快照严格递增，不重复
		for i := 1; i < len(totals); i++ {
			assert.Greater(t, totals[i], totals[i-1])
		}
		// 不论注册早晚，最后一次广播都不会丢
		assert.Equal(t, rounds, totals[len(totals)-1], "subscriber %s missed the last snapshot", s.id)
	}

	for _, s := range subs[:25] {
		h.Unregister(s)
	}
	assert.Equal(t, 25, h.Count())

	h.CloseAll()
	assert.Equal(t, 0, h.Count())
}
