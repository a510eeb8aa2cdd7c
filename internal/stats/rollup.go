package stats

import (
	"math"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"
)

// RollupMonth 将某月的每日统计汇总为月度统计
// 产量/计划/合格数/报警数求和；日均/最大/最小产量；OEE 取平均；workDays 为有统计的天数
// daily 为空时 ok=false，不应写入月度记录
func RollupMonth(year, month int, daily []models.DailyStatistics, defaultQualityRate float64) (models.MonthlyStatistics, bool) {
	m := models.MonthlyStatistics{Year: year, Month: month}
	if len(daily) == 0 {
		return m, false
	}

	minProd := math.MaxInt
	maxProd := math.MinInt
	var oeeSum float64
	for _, d := range daily {
		m.TotalProduction += d.TotalProduction
		m.TotalPlan += d.TotalPlan
		m.QualifiedQuantity += d.QualifiedQuantity
		m.TotalAlarmCount += d.AlarmCount
		oeeSum += d.AvgOEE
		if d.TotalProduction > maxProd {
			maxProd = d.TotalProduction
		}
		if d.TotalProduction < minProd {
			minProd = d.TotalProduction
		}
	}

	n := len(daily)
	m.WorkDays = n
	m.MaxDailyProduction = maxProd
	m.MinDailyProduction = minProd
	m.AvgDailyProduction = round2(float64(m.TotalProduction) / float64(n))
	m.AvgOEE = round2(oeeSum / float64(n))

	// 月度完成率不截断，超产时可大于 100
	if m.TotalPlan > 0 {
		m.CompletionRate = round2(float64(m.TotalProduction) / float64(m.TotalPlan) * 100)
	}
	if m.TotalProduction > 0 {
		m.QualityRate = round2(float64(m.QualifiedQuantity) / float64(m.TotalProduction) * 100)
	} else {
		m.QualityRate = round2(defaultQualityRate)
	}
	return m, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
