package cache_test

import (
	"sync"
	"testing"

	"github.com/GG-Yelin/factory-monitor-screen/internal/cache"
	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCache_EmptyUntilSet(t *testing.T) {
	c := cache.NewSnapshotCache()

	_, ok := c.Get()
	assert.False(t, ok)

	empty := c.Current()
	require.NotNil(t, empty)
	assert.Equal(t, 0, empty.TotalDevices)
	assert.NotNil(t, empty.Projects)
	assert.NotNil(t, empty.Alarms)
	assert.True(t, empty.IsEmpty())
}

func TestSnapshotCache_SetReplacesWholesale(t *testing.T) {
	c := cache.NewSnapshotCache()
	first := &models.DashboardSnapshot{TotalDevices: 3, UpdateTime: 1}
	second := &models.DashboardSnapshot{TotalDevices: 5, UpdateTime: 2}

	c.Set(first)
	c.Set(second)
	c.Set(nil)

	got, ok := c.Get()
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestSnapshotCache_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	c := cache.NewSnapshotCache()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			c.Set(&models.DashboardSnapshot{TotalDevices: i, OnlineDevices: i, UpdateTime: int64(i)})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s := c.Current()
				assert.Equal(t, s.TotalDevices, s.OnlineDevices)
			}
		}()
	}
	wg.Wait()
}

func TestSnapshotCache_SetAssignsIncreasingSequence(t *testing.T) {
	c := cache.NewSnapshotCache()
	assert.Equal(t, uint64(0), c.Current().Seq, "placeholder has no sequence")

	// 墙上时间回拨不影响序号
	first := &models.DashboardSnapshot{UpdateTime: 5000}
	second := &models.DashboardSnapshot{UpdateTime: 4000}
	c.Set(first)
	c.Set(second)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Same(t, second, c.Current())
}
