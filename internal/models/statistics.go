package models

import "time"

// DailyStatistics 每日统计（按 statistics_date 唯一）
type DailyStatistics struct {
	ID                  int64     `json:"id,omitempty"`
	StatisticsDate      time.Time `json:"statisticsDate"`
	TotalProduction     int       `json:"totalProduction"`
	TotalPlan           int       `json:"totalPlan"`
	CompletionRate      float64   `json:"completionRate"`
	QualifiedQuantity   int       `json:"qualifiedQuantity"`
	QualityRate         float64   `json:"qualityRate"`
	TotalDevices        int       `json:"totalDevices"`
	OnlineDevices       int       `json:"onlineDevices"`
	AlarmCount          int       `json:"alarmCount"`
	AvgOEE              float64   `json:"avgOee"`
	TotalRunningMinutes int       `json:"totalRunningMinutes"`
}

// MonthlyStatistics 月度统计（按 year+month 唯一）
type MonthlyStatistics struct {
	ID                 int64   `json:"id,omitempty"`
	Year               int     `json:"year"`
	Month              int     `json:"month"`
	TotalProduction    int     `json:"totalProduction"`
	TotalPlan          int     `json:"totalPlan"`
	CompletionRate     float64 `json:"completionRate"`
	QualifiedQuantity  int     `json:"qualifiedQuantity"`
	QualityRate        float64 `json:"qualityRate"`
	AvgDailyProduction float64 `json:"avgDailyProduction"`
	MaxDailyProduction int     `json:"maxDailyProduction"`
	MinDailyProduction int     `json:"minDailyProduction"`
	TotalAlarmCount    int     `json:"totalAlarmCount"`
	AvgOEE             float64 `json:"avgOee"`
	WorkDays           int     `json:"workDays"`
}

// DeviceStatusLog 设备状态变更记录
type DeviceStatusLog struct {
	ID         int64        `json:"id,omitempty"`
	DeviceID   string       `json:"deviceId"`
	DeviceName string       `json:"deviceName"`
	Status     DeviceStatus `json:"status"`
	LogTime    time.Time    `json:"logTime"`
}

// ProductionRecord 每日产量汇总记录
type ProductionRecord struct {
	RecordDate     time.Time `json:"recordDate"`
	Production     int       `json:"production"`
	PlanQuantity   int       `json:"planQuantity"`
	CompletionRate float64   `json:"completionRate"`
	QualityRate    float64   `json:"qualityRate"`
}
