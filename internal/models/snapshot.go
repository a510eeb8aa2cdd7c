package models

import "time"

// ProductionTrend 趋势图中的一天
type ProductionTrend struct {
	Date       string  `json:"date"`
	Production int     `json:"production"`
	Plan       int     `json:"plan"`
	Rate       float64 `json:"rate"`
}

// AlarmInfo 大屏上展示的活动报警
type AlarmInfo struct {
	ID           string `json:"id"`
	DeviceID     string `json:"deviceId"`
	DeviceName   string `json:"deviceName"`
	AlarmType    string `json:"alarmType"`
	AlarmContent string `json:"alarmContent"`
	AlarmTime    string `json:"alarmTime"`
	Level        int    `json:"level"`
	Status       int    `json:"status"`
}

// DashboardSnapshot 一次聚合得到的大屏数据，构建完成后只读
type DashboardSnapshot struct {
	TotalDevices        int               `json:"totalDevices"`
	OnlineDevices       int               `json:"onlineDevices"`
	OfflineDevices      int               `json:"offlineDevices"`
	AlarmDevices        int               `json:"alarmDevices"`
	TodayProduction     int               `json:"todayProduction"`
	PlanProduction      int               `json:"planProduction"`
	ProductionRate      float64           `json:"productionRate"`
	EquipmentEfficiency float64           `json:"equipmentEfficiency"`
	QualityRate         float64           `json:"qualityRate"`
	RunningRate         float64           `json:"runningRate"`
	Projects            []Project         `json:"projects"`
	Devices             []Device          `json:"devices"`
	DataPoints          []DataPoint       `json:"dataPoints"`
	ProductionTrend     []ProductionTrend `json:"productionTrend"`
	Alarms              []AlarmInfo       `json:"alarms"`
	UpdateTime          int64             `json:"updateTime"`

	// Seq 写入缓存时分配的递增序号；0 表示未进入缓存（如占位快照）
	Seq uint64 `json:"-"`
}

// EmptySnapshot 从未聚合成功时返回的全零快照（切片非 nil，序列化为 []）
func EmptySnapshot(now time.Time) *DashboardSnapshot {
	return &DashboardSnapshot{
		Projects:        []Project{},
		Devices:         []Device{},
		DataPoints:      []DataPoint{},
		ProductionTrend: []ProductionTrend{},
		Alarms:          []AlarmInfo{},
		UpdateTime:      now.UnixMilli(),
	}
}

// IsEmpty 是否为占位快照
func (s *DashboardSnapshot) IsEmpty() bool {
	return s == nil || (s.TotalDevices == 0 && len(s.Projects) == 0 && len(s.DataPoints) == 0)
}
