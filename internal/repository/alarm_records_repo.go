package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"go.uber.org/zap"
)

// AlarmRecordRepository 报警记录
type AlarmRecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlarmRecordRepository 创建报警记录仓库
func NewAlarmRecordRepository(db *sql.DB, logger *zap.Logger) *AlarmRecordRepository {
	return &AlarmRecordRepository{db: db, logger: logger}
}

const alarmColumns = `
	id, device_id, device_name, alarm_type, alarm_content, alarm_level,
	status, alarm_time, handle_time, handler, handle_remark`

func scanAlarm(row rowScanner) (*models.AlarmRecord, error) {
	var rec models.AlarmRecord
	var handleTime sql.NullTime
	var handler, remark sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.DeviceID,
		&rec.DeviceName,
		&rec.AlarmType,
		&rec.AlarmContent,
		&rec.Level,
		&rec.Status,
		&rec.AlarmTime,
		&handleTime,
		&handler,
		&remark,
	)
	if err != nil {
		return nil, err
	}

	if handleTime.Valid {
		t := handleTime.Time
		rec.HandleTime = &t
	}
	if handler.Valid {
		rec.Handler = handler.String
	}
	if remark.Valid {
		rec.HandleRemark = remark.String
	}
	return &rec, nil
}

// InsertAlarm 写入一条报警记录，返回自增 id
func (r *AlarmRecordRepository) InsertAlarm(ctx context.Context, rec *models.AlarmRecord) (int64, error) {
	if rec == nil || rec.DeviceID == "" {
		return 0, fmt.Errorf("device_id is required")
	}

	query := `
		INSERT INTO alarm_records (
			device_id, device_name, alarm_type, alarm_content, alarm_level, status, alarm_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rec.DeviceID,
		rec.DeviceName,
		rec.AlarmType,
		rec.AlarmContent,
		rec.Level,
		rec.Status,
		rec.AlarmTime,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alarm record: %w", err)
	}
	rec.ID = id
	return id, nil
}

// GetAlarm 按 id 获取
func (r *AlarmRecordRepository) GetAlarm(ctx context.Context, id int64) (*models.AlarmRecord, error) {
	query := `SELECT ` + alarmColumns + ` FROM alarm_records WHERE id = $1`
	rec, err := scanAlarm(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alarm record: %w", err)
	}
	return rec, nil
}

// CountBetween 统计 [start, end) 内的报警数
func (r *AlarmRecordRepository) CountBetween(ctx context.Context, start, end time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM alarm_records WHERE alarm_time >= $1 AND alarm_time < $2`
	var n int
	if err := r.db.QueryRowContext(ctx, query, start, end).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alarm records: %w", err)
	}
	return n, nil
}

// ListRecent 最近 limit 条报警，按时间降序
func (r *AlarmRecordRepository) ListRecent(ctx context.Context, limit int) ([]models.AlarmRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + alarmColumns + `
		FROM alarm_records
		ORDER BY alarm_time DESC, id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarm records: %w", err)
	}
	defer rows.Close()

	out := make([]models.AlarmRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alarm records: %w", err)
	}
	return out, nil
}

// HandleAlarm 标记为已处理
func (r *AlarmRecordRepository) HandleAlarm(ctx context.Context, id int64, handler, remark string, at time.Time) error {
	query := `
		UPDATE alarm_records
		SET status = $2, handle_time = $3, handler = $4, handle_remark = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, models.AlarmStatusHandled, at, handler, remark)
	if err != nil {
		return fmt.Errorf("failed to handle alarm record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
