package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"
)

func TestLastStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewDeviceStatusRepository(db, zap.NewNop())

	mock.ExpectQuery(`FROM device_status_logs`).
		WithArgs("D1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(2))
	mock.ExpectQuery(`FROM device_status_logs`).
		WithArgs("D9").
		WillReturnError(sql.ErrNoRows)

	st, ok, err := repo.LastStatus(context.Background(), "D1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.DeviceAlarm, st)

	_, ok, err = repo.LastStatus(context.Background(), "D9")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewDeviceStatusRepository(db, zap.NewNop())

	at := time.Now()
	mock.ExpectExec(`INSERT INTO device_status_logs`).
		WithArgs("D1", "注塑机1", 1, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.InsertStatus(context.Background(), models.DeviceStatusLog{
		DeviceID: "D1", DeviceName: "注塑机1", Status: models.DeviceOnline, LogTime: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductionUpsertSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewProductionRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO production_records`).
		WithArgs("2024-03-05", 750, 1000, 75.0, 96.5).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.UpsertSummary(context.Background(), models.ProductionRecord{
		RecordDate:     time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local),
		Production:     750,
		PlanQuantity:   1000,
		CompletionRate: 75,
		QualityRate:    96.5,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range schemaStatements {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, EnsureSchema(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}
