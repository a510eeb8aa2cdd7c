package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"go.uber.org/zap"
)

// DeviceStatusRepository 设备状态日志
type DeviceStatusRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceStatusRepository 创建设备状态日志仓库
func NewDeviceStatusRepository(db *sql.DB, logger *zap.Logger) *DeviceStatusRepository {
	return &DeviceStatusRepository{db: db, logger: logger}
}

// LastStatus 设备最近一次记录的状态；没有记录时 ok=false
func (r *DeviceStatusRepository) LastStatus(ctx context.Context, deviceID string) (models.DeviceStatus, bool, error) {
	query := `
		SELECT status FROM device_status_logs
		WHERE device_id = $1
		ORDER BY log_time DESC, id DESC
		LIMIT 1
	`
	var status int
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get last device status: %w", err)
	}
	return models.DeviceStatus(status), true, nil
}

// InsertStatus 追加一条状态记录
func (r *DeviceStatusRepository) InsertStatus(ctx context.Context, log models.DeviceStatusLog) error {
	query := `
		INSERT INTO device_status_logs (device_id, device_name, status, log_time)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, log.DeviceID, log.DeviceName, int(log.Status), log.LogTime)
	if err != nil {
		return fmt.Errorf("failed to insert device status log: %w", err)
	}
	return nil
}
