package provider

import "encoding/json"

const codeOK = 200

// envelope 信捷云接口统一响应
type envelope struct {
	Code  int             `json:"code"`
	Msg   string          `json:"msg"`
	Token string          `json:"token,omitempty"`
	Data  json.RawMessage `json:"data"`
}

type itemListData struct {
	List []itemDTO `json:"list"`
}

type itemDTO struct {
	ItemID        string `json:"itemId"`
	ItemName      string `json:"itemName"`
	Lnglat        string `json:"lnglat"`
	ParentGroupID string `json:"parentGroupId"`
}

type deviceDTO struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
	// 部分固件不返回 status，缺省视为在线
	Status *int `json:"status"`
}

type deviceDataDTO struct {
	DeviceID   string         `json:"deviceId"`
	DeviceName string         `json:"deviceName"`
	Data       []dataPointDTO `json:"data"`
}

// value 字段在不同数据类型下可能是字符串或数字
type dataPointDTO struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	DataType    int             `json:"data_type"`
	Unit        string          `json:"unit"`
	Value       json.RawMessage `json:"value"`
	ValueString string          `json:"valueString"`
}

type setValueRequest struct {
	ItemID  string `json:"itemId"`
	ViewID  string `json:"viewId"`
	ID      string `json:"id"`
	Value   string `json:"value"`
	BitMark int    `json:"bitMark"`
}

// rawString 把 "abc" / 123 / null 统一转成字符串
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
