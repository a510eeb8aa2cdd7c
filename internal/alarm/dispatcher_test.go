package alarm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"
	rediscommon "github.com/GG-Yelin/factory-monitor-screen/monitor-common/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	records []*models.AlarmRecord
	err     error
}

func (f *fakeStore) InsertAlarm(ctx context.Context, rec *models.AlarmRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.records = append(f.records, rec)
	return int64(len(f.records)), nil
}

type fakePublisher struct {
	topics   []string
	payloads []interface{}
	err      error
}

func (f *fakePublisher) PublishJSON(topic string, v interface{}) error {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, v)
	return f.err
}

func testEvent() models.AlarmEvent {
	return models.AlarmEvent{
		EventID:    "evt-1",
		DeviceID:   "d1",
		DeviceName: "注塑机1",
		Kind:       models.AlarmTypeDevice,
		Message:    models.AlarmContentDevice,
		Severity:   models.AlarmLevelWarning,
		OccurredAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_SavesAndPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &fakeStore{}
	pub := &fakePublisher{}
	d := NewDispatcher(store, zap.NewNop()).
		WithStream(client, "alarms", 100).
		WithMQTT(pub, "factory/monitor/alarms")

	require.NoError(t, d.Dispatch(context.Background(), testEvent()))

	require.Len(t, store.records, 1)
	assert.Equal(t, "d1", store.records[0].DeviceID)
	assert.Equal(t, models.AlarmStatusPending, store.records[0].Status)
	assert.Equal(t, 2, store.records[0].Level)

	msgs, err := rediscommon.ReadRange(context.Background(), client, "alarms", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	var decoded models.AlarmEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, "evt-1", decoded.EventID)

	assert.Equal(t, []string{"factory/monitor/alarms"}, pub.topics)
}

func TestDispatcher_StoreFailureReturnsError(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(&fakeStore{err: errors.New("db down")}, zap.NewNop()).WithMQTT(pub, "t")

	err := d.Dispatch(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, pub.topics, "nothing is published when the record was not saved")
}

func TestDispatcher_PublishFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{}
	d := NewDispatcher(store, zap.NewNop()).WithMQTT(&fakePublisher{err: errors.New("broker gone")}, "t")

	require.NoError(t, d.Dispatch(context.Background(), testEvent()))
	assert.Len(t, store.records, 1)
}

func TestDispatcher_NoStore(t *testing.T) {
	d := NewDispatcher(nil, zap.NewNop())
	require.NoError(t, d.Dispatch(context.Background(), testEvent()))
}
