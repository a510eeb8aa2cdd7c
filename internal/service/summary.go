package service

import (
	"github.com/GG-Yelin/factory-monitor-screen/internal/models"
)

// JSONPublisher MQTT JSON 发布
type JSONPublisher interface {
	PublishJSON(topic string, v interface{}) error
}

// SnapshotSummary 推送到 MQTT 的快照摘要（不含列表）
type SnapshotSummary struct {
	TotalDevices        int     `json:"totalDevices"`
	OnlineDevices       int     `json:"onlineDevices"`
	OfflineDevices      int     `json:"offlineDevices"`
	AlarmDevices        int     `json:"alarmDevices"`
	TodayProduction     int     `json:"todayProduction"`
	PlanProduction      int     `json:"planProduction"`
	ProductionRate      float64 `json:"productionRate"`
	EquipmentEfficiency float64 `json:"equipmentEfficiency"`
	QualityRate         float64 `json:"qualityRate"`
	RunningRate         float64 `json:"runningRate"`
	ActiveAlarms        int     `json:"activeAlarms"`
	UpdateTime          int64   `json:"updateTime"`
}

// NewSnapshotSummary 从快照提取摘要
func NewSnapshotSummary(s *models.DashboardSnapshot) SnapshotSummary {
	return SnapshotSummary{
		TotalDevices:        s.TotalDevices,
		OnlineDevices:       s.OnlineDevices,
		OfflineDevices:      s.OfflineDevices,
		AlarmDevices:        s.AlarmDevices,
		TodayProduction:     s.TodayProduction,
		PlanProduction:      s.PlanProduction,
		ProductionRate:      s.ProductionRate,
		EquipmentEfficiency: s.EquipmentEfficiency,
		QualityRate:         s.QualityRate,
		RunningRate:         s.RunningRate,
		ActiveAlarms:        len(s.Alarms),
		UpdateTime:          s.UpdateTime,
	}
}

// summaryPublisher 每个入库周期发布一次摘要
type summaryPublisher struct {
	pub   JSONPublisher
	topic string
}

func (p *summaryPublisher) PublishSummary(s *models.DashboardSnapshot) error {
	return p.pub.PublishJSON(p.topic, NewSnapshotSummary(s))
}
