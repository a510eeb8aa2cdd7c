package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"go.uber.org/zap"
)

const dailyColumns = `
	id, statistics_date, total_production, total_plan, completion_rate,
	qualified_quantity, quality_rate, total_devices, online_devices,
	alarm_count, avg_oee, total_running_minutes`

const monthlyColumns = `
	id, year, month, total_production, total_plan, completion_rate,
	qualified_quantity, quality_rate, avg_daily_production,
	max_daily_production, min_daily_production, total_alarm_count,
	avg_oee, work_days`

// StatisticsRepository 每日/月度统计
type StatisticsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatisticsRepository 创建统计仓库
func NewStatisticsRepository(db *sql.DB, logger *zap.Logger) *StatisticsRepository {
	return &StatisticsRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDaily(row rowScanner) (*models.DailyStatistics, error) {
	var s models.DailyStatistics
	err := row.Scan(
		&s.ID,
		&s.StatisticsDate,
		&s.TotalProduction,
		&s.TotalPlan,
		&s.CompletionRate,
		&s.QualifiedQuantity,
		&s.QualityRate,
		&s.TotalDevices,
		&s.OnlineDevices,
		&s.AlarmCount,
		&s.AvgOEE,
		&s.TotalRunningMinutes,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanMonthly(row rowScanner) (*models.MonthlyStatistics, error) {
	var s models.MonthlyStatistics
	err := row.Scan(
		&s.ID,
		&s.Year,
		&s.Month,
		&s.TotalProduction,
		&s.TotalPlan,
		&s.CompletionRate,
		&s.QualifiedQuantity,
		&s.QualityRate,
		&s.AvgDailyProduction,
		&s.MaxDailyProduction,
		&s.MinDailyProduction,
		&s.TotalAlarmCount,
		&s.AvgOEE,
		&s.WorkDays,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ============================================
// 每日统计
// ============================================

// UpsertDaily 按 statistics_date 写入或覆盖
func (r *StatisticsRepository) UpsertDaily(ctx context.Context, s models.DailyStatistics) error {
	query := `
		INSERT INTO daily_statistics (
			statistics_date, total_production, total_plan, completion_rate,
			qualified_quantity, quality_rate, total_devices, online_devices,
			alarm_count, avg_oee, total_running_minutes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (statistics_date) DO UPDATE SET
			total_production = EXCLUDED.total_production,
			total_plan = EXCLUDED.total_plan,
			completion_rate = EXCLUDED.completion_rate,
			qualified_quantity = EXCLUDED.qualified_quantity,
			quality_rate = EXCLUDED.quality_rate,
			total_devices = EXCLUDED.total_devices,
			online_devices = EXCLUDED.online_devices,
			alarm_count = EXCLUDED.alarm_count,
			avg_oee = EXCLUDED.avg_oee,
			total_running_minutes = EXCLUDED.total_running_minutes,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		dayOf(s.StatisticsDate).Format(dateLayout),
		s.TotalProduction,
		s.TotalPlan,
		s.CompletionRate,
		s.QualifiedQuantity,
		s.QualityRate,
		s.TotalDevices,
		s.OnlineDevices,
		s.AlarmCount,
		s.AvgOEE,
		s.TotalRunningMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily statistics: %w", err)
	}
	return nil
}

// UpdateDailyAlarmCount 只刷新某天的报警数
func (r *StatisticsRepository) UpdateDailyAlarmCount(ctx context.Context, day time.Time, count int) error {
	query := `
		UPDATE daily_statistics
		SET alarm_count = $2, updated_at = NOW()
		WHERE statistics_date = $1
	`
	result, err := r.db.ExecContext(ctx, query, dayOf(day).Format(dateLayout), count)
	if err != nil {
		return fmt.Errorf("failed to update daily alarm count: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDaily 获取某天的统计
func (r *StatisticsRepository) GetDaily(ctx context.Context, day time.Time) (*models.DailyStatistics, error) {
	query := `SELECT ` + dailyColumns + ` FROM daily_statistics WHERE statistics_date = $1`
	s, err := scanDaily(r.db.QueryRowContext(ctx, query, dayOf(day).Format(dateLayout)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get daily statistics: %w", err)
	}
	return s, nil
}

// ListDailyStatistics 日期区间内（含两端）的统计，按日期升序
func (r *StatisticsRepository) ListDailyStatistics(ctx context.Context, start, end time.Time) ([]models.DailyStatistics, error) {
	query := `SELECT ` + dailyColumns + `
		FROM daily_statistics
		WHERE statistics_date >= $1 AND statistics_date <= $2
		ORDER BY statistics_date ASC
	`
	rows, err := r.db.QueryContext(ctx, query, dayOf(start).Format(dateLayout), dayOf(end).Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list daily statistics: %w", err)
	}
	defer rows.Close()

	out := make([]models.DailyStatistics, 0)
	for rows.Next() {
		s, err := scanDaily(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily statistics: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily statistics: %w", err)
	}
	return out, nil
}

// ListRecentDaily 最近 days 天（含今天）
func (r *StatisticsRepository) ListRecentDaily(ctx context.Context, now time.Time, days int) ([]models.DailyStatistics, error) {
	if days <= 0 {
		days = 7
	}
	end := dayOf(now)
	return r.ListDailyStatistics(ctx, end.AddDate(0, 0, -(days-1)), end)
}

// ============================================
// 月度统计
// ============================================

// UpsertMonthly 按 (year, month) 写入或覆盖
func (r *StatisticsRepository) UpsertMonthly(ctx context.Context, s models.MonthlyStatistics) error {
	query := `
		INSERT INTO monthly_statistics (
			year, month, total_production, total_plan, completion_rate,
			qualified_quantity, quality_rate, avg_daily_production,
			max_daily_production, min_daily_production, total_alarm_count,
			avg_oee, work_days
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (year, month) DO UPDATE SET
			total_production = EXCLUDED.total_production,
			total_plan = EXCLUDED.total_plan,
			completion_rate = EXCLUDED.completion_rate,
			qualified_quantity = EXCLUDED.qualified_quantity,
			quality_rate = EXCLUDED.quality_rate,
			avg_daily_production = EXCLUDED.avg_daily_production,
			max_daily_production = EXCLUDED.max_daily_production,
			min_daily_production = EXCLUDED.min_daily_production,
			total_alarm_count = EXCLUDED.total_alarm_count,
			avg_oee = EXCLUDED.avg_oee,
			work_days = EXCLUDED.work_days,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		s.Year,
		s.Month,
		s.TotalProduction,
		s.TotalPlan,
		s.CompletionRate,
		s.QualifiedQuantity,
		s.QualityRate,
		s.AvgDailyProduction,
		s.MaxDailyProduction,
		s.MinDailyProduction,
		s.TotalAlarmCount,
		s.AvgOEE,
		s.WorkDays,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert monthly statistics: %w", err)
	}
	return nil
}

// GetMonthly 获取某月统计
func (r *StatisticsRepository) GetMonthly(ctx context.Context, year, month int) (*models.MonthlyStatistics, error) {
	query := `SELECT ` + monthlyColumns + ` FROM monthly_statistics WHERE year = $1 AND month = $2`
	s, err := scanMonthly(r.db.QueryRowContext(ctx, query, year, month))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get monthly statistics: %w", err)
	}
	return s, nil
}

// ListMonthlyByYear 某年的月度统计，按月升序
func (r *StatisticsRepository) ListMonthlyByYear(ctx context.Context, year int) ([]models.MonthlyStatistics, error) {
	query := `SELECT ` + monthlyColumns + `
		FROM monthly_statistics
		WHERE year = $1
		ORDER BY month ASC
	`
	return r.queryMonthly(ctx, query, year)
}

// ListRecentMonthly 最近 n 个月，按时间降序
func (r *StatisticsRepository) ListRecentMonthly(ctx context.Context, n int) ([]models.MonthlyStatistics, error) {
	if n <= 0 {
		n = 12
	}
	query := `SELECT ` + monthlyColumns + `
		FROM monthly_statistics
		ORDER BY year DESC, month DESC
		LIMIT $1
	`
	return r.queryMonthly(ctx, query, n)
}

func (r *StatisticsRepository) queryMonthly(ctx context.Context, query string, args ...interface{}) ([]models.MonthlyStatistics, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly statistics: %w", err)
	}
	defer rows.Close()

	out := make([]models.MonthlyStatistics, 0)
	for rows.Next() {
		s, err := scanMonthly(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monthly statistics: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly statistics: %w", err)
	}
	return out, nil
}
