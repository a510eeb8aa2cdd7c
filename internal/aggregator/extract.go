package aggregator

import (
	"math"
	"strconv"
	"strings"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"
)

// ExtractResult 数据点提取结果
type ExtractResult struct {
	Total   int // 匹配数据点之和
	Matched int // 参与求和的数据点数
	Skipped int // 名称匹配但值无法解析的次数
}

// pointKey 数据点身份：同一 id 可能出现在不同设备下
func pointKey(p models.DataPoint) string {
	return p.DeviceID + "/" + p.ID
}

// parsePointValue 解析为整数（截断小数），空值/非数字/非有限值返回 false
func parsePointValue(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// ExtractValue 按关键字列表提取并求和
// 第一轮精确匹配名称，第二轮大小写不敏感的包含匹配；
// 每个数据点最多计入一次，第一轮已计入的不会在第二轮重复计入
func ExtractValue(points []models.DataPoint, keywords []string) ExtractResult {
	var res ExtractResult
	matched := make(map[string]struct{})

	take := func(p models.DataPoint) {
		key := pointKey(p)
		if _, ok := matched[key]; ok {
			return
		}
		v, ok := parsePointValue(p.Value)
		if !ok {
			res.Skipped++
			return
		}
		matched[key] = struct{}{}
		res.Total += v
		res.Matched++
	}

	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		for _, p := range points {
			if p.Name == kw {
				take(p)
			}
		}
	}

	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		for _, p := range points {
			if strings.Contains(strings.ToLower(p.Name), kw) {
				take(p)
			}
		}
	}

	return res
}

var qualityKeywords = []string{"quality", "良品", "合格"}

// QualityRate 取第一个名称含质量关键字且值在 [0,100] 内的数据点，否则返回默认值
func QualityRate(points []models.DataPoint, defaultRate float64) float64 {
	for _, p := range points {
		name := strings.ToLower(p.Name)
		hit := false
		for _, kw := range qualityKeywords {
			if strings.Contains(name, kw) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
		if err != nil || math.IsNaN(f) || f < 0 || f > 100 {
			continue
		}
		return f
	}
	return defaultRate
}

// OEE 运行率 × 性能率 × 良品率 × 100；没有设备时返回 noDeviceValue
func OEE(devices []models.Device, performanceRate, qualityRate, noDeviceValue float64) float64 {
	if len(devices) == 0 {
		return noDeviceValue
	}
	online := 0
	for _, d := range devices {
		if d.Status == models.DeviceOnline {
			online++
		}
	}
	running := float64(online) / float64(len(devices))
	return running * performanceRate * qualityRate * 100
}

// Percent part/whole*100，限定在 [0,100]；whole<=0 时为 0
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	p := float64(part) / float64(whole) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Round2 保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
