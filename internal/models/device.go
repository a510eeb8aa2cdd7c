package models

// DeviceStatus 设备状态，取值与云平台一致
type DeviceStatus int

const (
	DeviceOffline DeviceStatus = 0
	DeviceOnline  DeviceStatus = 1
	DeviceAlarm   DeviceStatus = 2
)

func (s DeviceStatus) String() string {
	switch s {
	case DeviceOffline:
		return "OFFLINE"
	case DeviceOnline:
		return "ONLINE"
	case DeviceAlarm:
		return "ALARM"
	default:
		return "UNKNOWN"
	}
}

// Project 云平台项目（一个项目下挂多个设备）
// DeviceCount/OnlineCount 每个聚合周期重新统计
type Project struct {
	ItemID        string `json:"itemId"`
	ItemName      string `json:"itemName"`
	Lnglat        string `json:"lnglat,omitempty"`
	ParentGroupID string `json:"parentGroupId,omitempty"`
	DeviceCount   int    `json:"deviceCount"`
	OnlineCount   int    `json:"onlineCount"`
}

// Device 设备及其上报状态
type Device struct {
	DeviceID   string       `json:"deviceId"`
	DeviceName string       `json:"deviceName"`
	DeviceType string       `json:"deviceType,omitempty"`
	ItemID     string       `json:"itemId"`
	Status     DeviceStatus `json:"status"`
}

// DataPoint 数据点，Value 为原始字符串，不保证能解析成数字
type DataPoint struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DeviceID    string `json:"deviceId"`
	DeviceName  string `json:"deviceName"`
	DataType    int    `json:"dataType"`
	Unit        string `json:"unit,omitempty"`
	Value       string `json:"value"`
	ValueString string `json:"valueString,omitempty"`
}
