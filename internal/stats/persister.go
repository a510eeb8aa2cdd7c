package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/metrics"
	"github.com/GG-Yelin/factory-monitor-screen/internal/models"
	"github.com/GG-Yelin/factory-monitor-screen/internal/repository"

	"go.uber.org/zap"
)

// StatisticsStore 每日/月度统计存储
type StatisticsStore interface {
	UpsertDaily(ctx context.Context, s models.DailyStatistics) error
	GetDaily(ctx context.Context, day time.Time) (*models.DailyStatistics, error)
	UpdateDailyAlarmCount(ctx context.Context, day time.Time, count int) error
	ListDailyStatistics(ctx context.Context, start, end time.Time) ([]models.DailyStatistics, error)
	UpsertMonthly(ctx context.Context, s models.MonthlyStatistics) error
}

// AlarmCounter 报警记录计数
type AlarmCounter interface {
	CountBetween(ctx context.Context, start, end time.Time) (int, error)
}

// StatusLogStore 设备状态日志
type StatusLogStore interface {
	LastStatus(ctx context.Context, deviceID string) (models.DeviceStatus, bool, error)
	InsertStatus(ctx context.Context, log models.DeviceStatusLog) error
}

// ProductionStore 每日产量汇总
type ProductionStore interface {
	UpsertSummary(ctx context.Context, rec models.ProductionRecord) error
}

// Persister 将快照写入持久化存储
// 写入失败只记录日志和指标，不影响内存中的快照
type Persister struct {
	stats              StatisticsStore
	alarms             AlarmCounter
	statusLog          StatusLogStore
	production         ProductionStore
	defaultQualityRate float64
	now                func() time.Time
	logger             *zap.Logger

	// 最近一次写入的设备状态，避免每个周期都查库
	statusMu   sync.Mutex
	lastStatus map[string]models.DeviceStatus
}

// NewPersister 创建统计持久化组件
func NewPersister(stats StatisticsStore, alarms AlarmCounter, statusLog StatusLogStore, production ProductionStore, defaultQualityRate float64, logger *zap.Logger) *Persister {
	return &Persister{
		stats:              stats,
		alarms:             alarms,
		statusLog:          statusLog,
		production:         production,
		defaultQualityRate: defaultQualityRate,
		now:                time.Now,
		logger:             logger,
		lastStatus:         make(map[string]models.DeviceStatus),
	}
}

// WithClock 替换时钟（测试用）
func (p *Persister) WithClock(now func() time.Time) *Persister {
	p.now = now
	return p
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (p *Persister) fail(operation string, err error) {
	metrics.PersistenceFailures.WithLabelValues(operation).Inc()
	p.logger.Error("Persistence failed", zap.String("operation", operation), zap.Error(err))
}

// dailyFromSnapshot 由快照生成某天的统计行；合格数按质量率折算
func (p *Persister) dailyFromSnapshot(day time.Time, snap *models.DashboardSnapshot, alarmCount int) models.DailyStatistics {
	return models.DailyStatistics{
		StatisticsDate:    day,
		TotalProduction:   snap.TodayProduction,
		TotalPlan:         snap.PlanProduction,
		CompletionRate:    snap.ProductionRate,
		QualifiedQuantity: int(math.Round(float64(snap.TodayProduction) * snap.QualityRate / 100)),
		QualityRate:       snap.QualityRate,
		TotalDevices:      snap.TotalDevices,
		OnlineDevices:     snap.OnlineDevices,
		AlarmCount:        alarmCount,
		AvgOEE:            snap.EquipmentEfficiency,
	}
}

func (p *Persister) countAlarms(ctx context.Context, day time.Time) (int, error) {
	if p.alarms == nil {
		return 0, nil
	}
	return p.alarms.CountBetween(ctx, day, day.AddDate(0, 0, 1))
}

// SaveSnapshot 将快照写为当天的产量汇总和每日统计
func (p *Persister) SaveSnapshot(ctx context.Context, snap *models.DashboardSnapshot) error {
	if snap == nil || snap.IsEmpty() {
		p.logger.Debug("Skipping persistence of empty snapshot")
		return nil
	}
	day := startOfDay(time.UnixMilli(snap.UpdateTime).In(p.now().Location()))

	var errs []error
	if p.production != nil {
		rec := models.ProductionRecord{
			RecordDate:     day,
			Production:     snap.TodayProduction,
			PlanQuantity:   snap.PlanProduction,
			CompletionRate: snap.ProductionRate,
			QualityRate:    snap.QualityRate,
		}
		if err := p.production.UpsertSummary(ctx, rec); err != nil {
			p.fail("production_summary", err)
			errs = append(errs, err)
		}
	}

	alarmCount, err := p.countAlarms(ctx, day)
	if err != nil {
		p.logger.Warn("Failed to count alarms, daily alarm count set to 0", zap.Error(err))
	}
	if err := p.stats.UpsertDaily(ctx, p.dailyFromSnapshot(day, snap, alarmCount)); err != nil {
		p.fail("daily_statistics", err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SaveDeviceStatuses 记录状态发生变化的设备，返回写入条数
func (p *Persister) SaveDeviceStatuses(ctx context.Context, devices []models.Device) (int, error) {
	if p.statusLog == nil {
		return 0, nil
	}
	now := p.now()

	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	written := 0
	var errs []error
	for _, d := range devices {
		last, ok := p.lastStatus[d.DeviceID]
		if !ok {
			st, found, err := p.statusLog.LastStatus(ctx, d.DeviceID)
			if err != nil {
				p.fail("device_status_lookup", err)
				errs = append(errs, err)
				continue
			}
			last, ok = st, found
		}
		if ok && last == d.Status {
			p.lastStatus[d.DeviceID] = last
			continue
		}

		err := p.statusLog.InsertStatus(ctx, models.DeviceStatusLog{
			DeviceID:   d.DeviceID,
			DeviceName: d.DeviceName,
			Status:     d.Status,
			LogTime:    now,
		})
		if err != nil {
			p.fail("device_status_log", err)
			errs = append(errs, err)
			continue
		}
		p.lastStatus[d.DeviceID] = d.Status
		written++
	}

	if written > 0 {
		p.logger.Debug("Saved device status changes", zap.Int("count", written))
	}
	return written, errors.Join(errs...)
}

// FinalizeDay 收尾某天的统计
// 该天没有统计行时用最后一个快照补写；已有时只刷新报警数
func (p *Persister) FinalizeDay(ctx context.Context, day time.Time, last *models.DashboardSnapshot) error {
	day = startOfDay(day)

	alarmCount, err := p.countAlarms(ctx, day)
	if err != nil {
		p.fail("alarm_count", err)
		return fmt.Errorf("failed to count alarms for %s: %w", day.Format("2006-01-02"), err)
	}

	_, err = p.stats.GetDaily(ctx, day)
	switch {
	case err == nil:
		if err := p.stats.UpdateDailyAlarmCount(ctx, day, alarmCount); err != nil {
			p.fail("daily_statistics", err)
			return err
		}
		p.logger.Info("Finalized daily statistics",
			zap.String("date", day.Format("2006-01-02")),
			zap.Int("alarm_count", alarmCount))
		return nil

	case errors.Is(err, repository.ErrNotFound):
		if last == nil || last.IsEmpty() {
			p.logger.Warn("No snapshot available to finalize daily statistics", zap.String("date", day.Format("2006-01-02")))
			return nil
		}
		if err := p.stats.UpsertDaily(ctx, p.dailyFromSnapshot(day, last, alarmCount)); err != nil {
			p.fail("daily_statistics", err)
			return err
		}
		p.logger.Info("Finalized daily statistics from last snapshot", zap.String("date", day.Format("2006-01-02")))
		return nil

	default:
		p.fail("daily_statistics", err)
		return err
	}
}

// GenerateMonthly 汇总某月的每日统计并按 (year, month) 覆盖写入
// 该月没有每日统计时不写入，返回 nil
func (p *Persister) GenerateMonthly(ctx context.Context, year, month int) (*models.MonthlyStatistics, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month: %d", month)
	}

	loc := p.now().Location()
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, -1)

	daily, err := p.stats.ListDailyStatistics(ctx, start, end)
	if err != nil {
		p.fail("monthly_statistics", err)
		return nil, fmt.Errorf("failed to load daily statistics: %w", err)
	}

	monthly, ok := RollupMonth(year, month, daily, p.defaultQualityRate)
	if !ok {
		p.logger.Info("No daily statistics found for month", zap.Int("year", year), zap.Int("month", month))
		return nil, nil
	}

	if err := p.stats.UpsertMonthly(ctx, monthly); err != nil {
		p.fail("monthly_statistics", err)
		return nil, err
	}

	p.logger.Info("Generated monthly statistics",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("total_production", monthly.TotalProduction),
		zap.Int("work_days", monthly.WorkDays))
	return &monthly, nil
}
