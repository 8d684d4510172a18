package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalwatch/internal/models"
)

func setupMockReadingsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *VitalReadingsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewVitalReadingsRepository(db, logger)

	return db, mock, repo
}

func intp(v int) *int {
	return &v
}

func floatp(v float64) *float64 {
	return &v
}

func TestInsertReading_Success(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	ctx := context.Background()
	tenantID := uuid.New().String()
	patientID := uuid.New().String()
	now := time.Now()

	reading := &models.VitalReading{
		TenantID:         tenantID,
		PatientID:        patientID,
		DeviceID:         "monitor-01",
		HeartRate:        intp(72),
		OxygenSaturation: intp(97),
		Timestamp:        now,
	}

	rows := sqlmock.NewRows([]string{"id"}).AddRow(42)
	mock.ExpectQuery(`INSERT INTO vital_readings`).
		WithArgs(tenantID, patientID, "monitor-01", nil, nil, 72, nil, 97, now).
		WillReturnRows(rows)

	id, err := repo.Insert(ctx, reading)

	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReading_MissingTenantID(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	ctx := context.Background()
	reading := &models.VitalReading{
		PatientID: uuid.New().String(),
	}

	_, err := repo.Insert(ctx, reading)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReading_MissingPatientID(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	ctx := context.Background()
	reading := &models.VitalReading{
		TenantID: uuid.New().String(),
	}

	_, err := repo.Insert(ctx, reading)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "patient_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentByPatient_Success(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	ctx := context.Background()
	tenantID := uuid.New().String()
	patientID := uuid.New().String()
	base := time.Now().Add(-time.Hour)

	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "patient_id", "device_id",
		"systolic", "diastolic", "heart_rate", "temperature", "oxygen_saturation",
		"timestamp",
	}).
		AddRow(1, tenantID, patientID, "monitor-01", 120, 80, 70, 98.6, 98, base).
		AddRow(2, tenantID, patientID, "monitor-01", nil, nil, 75, nil, 97, base.Add(10*time.Minute)).
		AddRow(3, tenantID, patientID, nil, nil, nil, 82, nil, nil, base.Add(20*time.Minute))

	mock.ExpectQuery(`SELECT`).
		WithArgs(tenantID, patientID, 20).
		WillReturnRows(rows)

	readings, err := repo.GetRecentByPatient(ctx, tenantID, patientID, 20)

	require.NoError(t, err)
	require.Len(t, readings, 3)

	// 第一行：全部字段有值
	assert.Equal(t, int64(1), readings[0].ID)
	require.NotNil(t, readings[0].Systolic)
	assert.Equal(t, 120, *readings[0].Systolic)
	require.NotNil(t, readings[0].Temperature)
	assert.InDelta(t, 98.6, *readings[0].Temperature, 1e-9)

	// 第二行：血压与体温缺测
	assert.Nil(t, readings[1].Systolic)
	assert.Nil(t, readings[1].Temperature)
	require.NotNil(t, readings[1].HeartRate)
	assert.Equal(t, 75, *readings[1].HeartRate)

	// 第三行：只有心率
	assert.Equal(t, "", readings[2].DeviceID)
	assert.Nil(t, readings[2].OxygenSaturation)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentByPatient_Empty(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	ctx := context.Background()
	tenantID := uuid.New().String()
	patientID := uuid.New().String()

	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "patient_id", "device_id",
		"systolic", "diastolic", "heart_rate", "temperature", "oxygen_saturation",
		"timestamp",
	})

	mock.ExpectQuery(`SELECT`).
		WithArgs(tenantID, patientID, 20).
		WillReturnRows(rows)

	readings, err := repo.GetRecentByPatient(ctx, tenantID, patientID, 20)

	require.NoError(t, err)
	assert.Empty(t, readings)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentByPatient_InvalidTenantID(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := repo.GetRecentByPatient(ctx, "", uuid.New().String(), 20)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tenant_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}
