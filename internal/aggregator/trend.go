package aggregator

import (
	"context"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"go.uber.org/zap"
)

const trendDateLayout = "01-02"

// buildTrend 最近 TrendDays 天（含今天）的产量趋势
// 历史天取已入库的每日统计，缺失的天用占位值；今天使用本周期的实时数据
func (a *SnapshotAggregator) buildTrend(ctx context.Context, now time.Time, todayProduction, todayPlan int) []models.ProductionTrend {
	days := a.opts.TrendDays
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := today.AddDate(0, 0, -(days - 1))

	byDate := make(map[string]models.DailyStatistics)
	if a.trend != nil {
		stats, err := a.trend.ListDailyStatistics(ctx, start, today)
		if err != nil {
			a.logger.Warn("Failed to load daily statistics for trend, using placeholders", zap.Error(err))
		}
		for _, s := range stats {
			byDate[s.StatisticsDate.Format("2006-01-02")] = s
		}
	}

	trend := make([]models.ProductionTrend, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		point := models.ProductionTrend{
			Date: day.Format(trendDateLayout),
			Plan: a.opts.TrendPlaceholderPlan,
		}

		switch s, ok := byDate[day.Format("2006-01-02")]; {
		case day.Equal(today):
			point.Production = todayProduction
			point.Plan = todayPlan
		case ok:
			point.Production = s.TotalProduction
			point.Plan = s.TotalPlan
		}
		point.Rate = Round2(Percent(point.Production, point.Plan))
		trend = append(trend, point)
	}
	return trend
}
