package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS production_records (
		id              BIGSERIAL PRIMARY KEY,
		record_date     DATE NOT NULL UNIQUE,
		production      INTEGER NOT NULL DEFAULT 0,
		plan_quantity   INTEGER NOT NULL DEFAULT 0,
		completion_rate NUMERIC(8,2) NOT NULL DEFAULT 0,
		quality_rate    NUMERIC(8,2) NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS alarm_records (
		id            BIGSERIAL PRIMARY KEY,
		device_id     VARCHAR(64) NOT NULL,
		device_name   VARCHAR(255) NOT NULL DEFAULT '',
		alarm_type    VARCHAR(64) NOT NULL,
		alarm_content TEXT NOT NULL DEFAULT '',
		alarm_level   INTEGER NOT NULL DEFAULT 2,
		status        INTEGER NOT NULL DEFAULT 0,
		alarm_time    TIMESTAMPTZ NOT NULL,
		handle_time   TIMESTAMPTZ,
		handler       VARCHAR(64),
		handle_remark TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alarm_records_alarm_time ON alarm_records (alarm_time)`,
	`CREATE TABLE IF NOT EXISTS device_status_logs (
		id          BIGSERIAL PRIMARY KEY,
		device_id   VARCHAR(64) NOT NULL,
		device_name VARCHAR(255) NOT NULL DEFAULT '',
		status      INTEGER NOT NULL,
		log_time    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_status_logs_device_time ON device_status_logs (device_id, log_time DESC)`,
	`CREATE TABLE IF NOT EXISTS daily_statistics (
		id                    BIGSERIAL PRIMARY KEY,
		statistics_date       DATE NOT NULL UNIQUE,
		total_production      INTEGER NOT NULL DEFAULT 0,
		total_plan            INTEGER NOT NULL DEFAULT 0,
		completion_rate       NUMERIC(8,2) NOT NULL DEFAULT 0,
		qualified_quantity    INTEGER NOT NULL DEFAULT 0,
		quality_rate          NUMERIC(8,2) NOT NULL DEFAULT 0,
		total_devices         INTEGER NOT NULL DEFAULT 0,
		online_devices        INTEGER NOT NULL DEFAULT 0,
		alarm_count           INTEGER NOT NULL DEFAULT 0,
		avg_oee               NUMERIC(8,2) NOT NULL DEFAULT 0,
		total_running_minutes INTEGER NOT NULL DEFAULT 0,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS monthly_statistics (
		id                   BIGSERIAL PRIMARY KEY,
		year                 INTEGER NOT NULL,
		month                INTEGER NOT NULL,
		total_production     INTEGER NOT NULL DEFAULT 0,
		total_plan           INTEGER NOT NULL DEFAULT 0,
		completion_rate      NUMERIC(8,2) NOT NULL DEFAULT 0,
		qualified_quantity   INTEGER NOT NULL DEFAULT 0,
		quality_rate         NUMERIC(8,2) NOT NULL DEFAULT 0,
		avg_daily_production NUMERIC(12,2) NOT NULL DEFAULT 0,
		max_daily_production INTEGER NOT NULL DEFAULT 0,
		min_daily_production INTEGER NOT NULL DEFAULT 0,
		total_alarm_count    INTEGER NOT NULL DEFAULT 0,
		avg_oee              NUMERIC(8,2) NOT NULL DEFAULT 0,
		work_days            INTEGER NOT NULL DEFAULT 0,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (year, month)
	)`,
}

// EnsureSchema 建表（已存在则跳过）
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
