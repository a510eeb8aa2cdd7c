package alarm

import (
	"context"
	"fmt"

	"github.com/GG-Yelin/factory-monitor-screen/internal/metrics"
	"github.com/GG-Yelin/factory-monitor-screen/internal/models"
	rediscommon "github.com/GG-Yelin/factory-monitor-screen/monitor-common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RecordStore 报警记录持久化
type RecordStore interface {
	InsertAlarm(ctx context.Context, rec *models.AlarmRecord) (int64, error)
}

// JSONPublisher MQTT 发布
type JSONPublisher interface {
	PublishJSON(topic string, v interface{}) error
}

// Dispatcher 处理放行的报警事件：写库，再尽力推送到 Redis Stream 与 MQTT
type Dispatcher struct {
	store  RecordStore
	logger *zap.Logger

	redisClient  *redis.Client
	stream       string
	streamMaxLen int64

	mqtt  JSONPublisher
	topic string
}

// NewDispatcher store 为 nil 时只推送不落库
func NewDispatcher(store RecordStore, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: logger}
}

// WithStream 启用 Redis Stream 推送
func (d *Dispatcher) WithStream(client *redis.Client, stream string, maxLen int64) *Dispatcher {
	d.redisClient = client
	d.stream = stream
	d.streamMaxLen = maxLen
	return d
}

// WithMQTT 启用 MQTT 推送
func (d *Dispatcher) WithMQTT(pub JSONPublisher, topic string) *Dispatcher {
	d.mqtt = pub
	d.topic = topic
	return d
}

// Dispatch 只有写库失败才返回错误，推送失败仅记录日志
func (d *Dispatcher) Dispatch(ctx context.Context, event models.AlarmEvent) error {
	if d.store != nil {
		id, err := d.store.InsertAlarm(ctx, models.NewAlarmRecord(event))
		if err != nil {
			metrics.PersistenceFailures.WithLabelValues("alarm").Inc()
			return fmt.Errorf("failed to save alarm record: %w", err)
		}
		d.logger.Info("Saved alarm record",
			zap.Int64("alarm_id", id),
			zap.String("device_id", event.DeviceID),
			zap.String("alarm_type", event.Kind),
		)
	}

	if d.redisClient != nil && d.stream != "" {
		if _, err := rediscommon.PublishJSONToStream(ctx, d.redisClient, d.stream, d.streamMaxLen, event); err != nil {
			d.logger.Warn("Failed to publish alarm to stream",
				zap.String("stream", d.stream),
				zap.String("device_id", event.DeviceID),
				zap.Error(err),
			)
		}
	}

	if d.mqtt != nil && d.topic != "" {
		if err := d.mqtt.PublishJSON(d.topic, event); err != nil {
			d.logger.Warn("Failed to publish alarm to mqtt",
				zap.String("topic", d.topic),
				zap.String("device_id", event.DeviceID),
				zap.Error(err),
			)
		}
	}

	metrics.AlarmsEmitted.Inc()
	return nil
}
