package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"go.uber.org/zap"
)

// ProductionRepository 每日产量汇总
type ProductionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductionRepository 创建产量汇总仓库
func NewProductionRepository(db *sql.DB, logger *zap.Logger) *ProductionRepository {
	return &ProductionRepository{db: db, logger: logger}
}

// UpsertSummary 按 record_date 写入或覆盖当天汇总
func (r *ProductionRepository) UpsertSummary(ctx context.Context, rec models.ProductionRecord) error {
	query := `
		INSERT INTO production_records (
			record_date, production, plan_quantity, completion_rate, quality_rate
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (record_date) DO UPDATE SET
			production = EXCLUDED.production,
			plan_quantity = EXCLUDED.plan_quantity,
			completion_rate = EXCLUDED.completion_rate,
			quality_rate = EXCLUDED.quality_rate,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		dayOf(rec.RecordDate).Format(dateLayout),
		rec.Production,
		rec.PlanQuantity,
		rec.CompletionRate,
		rec.QualityRate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert production summary: %w", err)
	}
	return nil
}

// GetSummary 获取某天的汇总
func (r *ProductionRepository) GetSummary(ctx context.Context, day time.Time) (*models.ProductionRecord, error) {
	query := `
		SELECT record_date, production, plan_quantity, completion_rate, quality_rate
		FROM production_records
		WHERE record_date = $1
	`
	var rec models.ProductionRecord
	err := r.db.QueryRowContext(ctx, query, dayOf(day).Format(dateLayout)).Scan(
		&rec.RecordDate,
		&rec.Production,
		&rec.PlanQuantity,
		&rec.CompletionRate,
		&rec.QualityRate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get production summary: %w", err)
	}
	return &rec, nil
}
