package repository

import (
	"context"
	"database/sql"
	"fmt"

	"vitalwatch/internal/models"

	"go.uber.org/zap"
)

// VitalReadingsRepository 生命体征读数仓库（vital_readings 表）
type VitalReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVitalReadingsRepository 创建读数仓库
func NewVitalReadingsRepository(db *sql.DB, logger *zap.Logger) *VitalReadingsRepository {
	return &VitalReadingsRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 写入一条读数，返回自增 ID
func (r *VitalReadingsRepository) Insert(ctx context.Context, reading *models.VitalReading) (int64, error) {
	if reading.TenantID == "" {
		return 0, fmt.Errorf("tenant_id is required")
	}
	if reading.PatientID == "" {
		return 0, fmt.Errorf("patient_id is required")
	}

	query := `
		INSERT INTO vital_readings (
			tenant_id, patient_id, device_id,
			systolic, diastolic, heart_rate, temperature, oxygen_saturation,
			timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		reading.TenantID,
		reading.PatientID,
		nullString(reading.DeviceID),
		nullIntPtr(reading.Systolic),
		nullIntPtr(reading.Diastolic),
		nullIntPtr(reading.HeartRate),
		nullFloatPtr(reading.Temperature),
		nullIntPtr(reading.OxygenSaturation),
		reading.Timestamp,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vital reading: %w", err)
	}

	return id, nil
}

// GetRecentByPatient 获取患者最近的 limit 条读数，按时间升序返回
// （升序便于直接作为趋势估计的输入序列）
func (r *VitalReadingsRepository) GetRecentByPatient(ctx context.Context, tenantID, patientID string, limit int) ([]*models.VitalReading, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}

	// 内层取最近 limit 条，外层再按时间升序排列
	query := `
		SELECT id, tenant_id, patient_id, device_id,
			systolic, diastolic, heart_rate, temperature, oxygen_saturation,
			timestamp
		FROM (
			SELECT id, tenant_id, patient_id, device_id,
				systolic, diastolic, heart_rate, temperature, oxygen_saturation,
				timestamp
			FROM vital_readings
			WHERE tenant_id = $1 AND patient_id = $2
			ORDER BY timestamp DESC
			LIMIT $3
		) recent
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vital_readings: %w", err)
	}
	defer rows.Close()

	var readings []*models.VitalReading
	for rows.Next() {
		reading, err := scanVitalReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vital_readings: %w", err)
	}

	return readings, nil
}

// scanVitalReading 扫描一行读数（可空列转指针）
func scanVitalReading(rows *sql.Rows) (*models.VitalReading, error) {
	reading := &models.VitalReading{}
	var deviceID sql.NullString
	var systolic, diastolic, heartRate, oxygen sql.NullInt64
	var temperature sql.NullFloat64

	err := rows.Scan(
		&reading.ID,
		&reading.TenantID,
		&reading.PatientID,
		&deviceID,
		&systolic,
		&diastolic,
		&heartRate,
		&temperature,
		&oxygen,
		&reading.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if deviceID.Valid {
		reading.DeviceID = deviceID.String
	}
	if systolic.Valid {
		v := int(systolic.Int64)
		reading.Systolic = &v
	}
	if diastolic.Valid {
		v := int(diastolic.Int64)
		reading.Diastolic = &v
	}
	if heartRate.Valid {
		v := int(heartRate.Int64)
		reading.HeartRate = &v
	}
	if temperature.Valid {
		v := temperature.Float64
		reading.Temperature = &v
	}
	if oxygen.Valid {
		v := int(oxygen.Int64)
		reading.OxygenSaturation = &v
	}

	return reading, nil
}

// ============================================
// 可空值辅助
// ============================================

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIntPtr(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloatPtr(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
