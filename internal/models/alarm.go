package models

import "time"

const (
	AlarmTypeDevice    = "设备报警"
	AlarmContentDevice = "设备运行异常，请检查"
	AlarmLevelWarning  = 2

	AlarmStatusPending = 0
	AlarmStatusHandled = 1
)

// AlarmEvent 报警抑制器放行的一次报警，只在产生它的周期内存在
type AlarmEvent struct {
	EventID    string    `json:"eventId"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	Severity   int       `json:"severity"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AlarmRecord alarm_records 表中的一行
type AlarmRecord struct {
	ID           int64      `json:"id"`
	DeviceID     string     `json:"deviceId"`
	DeviceName   string     `json:"deviceName"`
	AlarmType    string     `json:"alarmType"`
	AlarmContent string     `json:"alarmContent"`
	Level        int        `json:"level"`
	Status       int        `json:"status"`
	AlarmTime    time.Time  `json:"alarmTime"`
	HandleTime   *time.Time `json:"handleTime,omitempty"`
	Handler      string     `json:"handler,omitempty"`
	HandleRemark string     `json:"handleRemark,omitempty"`
}

// NewAlarmRecord 由报警事件生成待处理记录
func NewAlarmRecord(e AlarmEvent) *AlarmRecord {
	return &AlarmRecord{
		DeviceID:     e.DeviceID,
		DeviceName:   e.DeviceName,
		AlarmType:    e.Kind,
		AlarmContent: e.Message,
		Level:        e.Severity,
		Status:       AlarmStatusPending,
		AlarmTime:    e.OccurredAt,
	}
}
