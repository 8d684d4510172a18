package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vitalwatch/internal/models"

	"go.uber.org/zap"
)

// AlertEventsRepository 告警事件仓库（alert_events 表）
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository 创建告警事件仓库
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// AlertEventFilters 告警事件查询过滤条件
type AlertEventFilters struct {
	PatientID *string
	VitalType *string
	Status    *string
	StartTime *time.Time
	EndTime   *time.Time
}

// CreateAlertEvent 写入告警事件
func (r *AlertEventsRepository) CreateAlertEvent(ctx context.Context, tenantID string, event *models.AlertEvent) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}

	query := `
		INSERT INTO alert_events (
			event_id, tenant_id, patient_id, device_id, vital_type,
			alert_level, alert_status, triggered_at, ack_time, handler,
			trigger_data, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		tenantID,
		event.PatientID,
		event.DeviceID,
		event.VitalType,
		event.AlertLevel,
		event.AlertStatus,
		event.TriggeredAt,
		event.AckTime,
		event.Handler,
		event.TriggerData,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}

	return nil
}

// GetAlertEvent 按 ID 获取告警事件
func (r *AlertEventsRepository) GetAlertEvent(ctx context.Context, tenantID, eventID string) (*models.AlertEvent, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	query := `
		SELECT event_id, tenant_id, patient_id, device_id, vital_type,
			alert_level, alert_status, triggered_at, ack_time, handler,
			trigger_data, created_at, updated_at
		FROM alert_events
		WHERE event_id = $1 AND tenant_id = $2
	`

	event, err := scanAlertEvent(r.db.QueryRowContext(ctx, query, eventID, tenantID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert event not found: %s", eventID)
		}
		return nil, fmt.Errorf("failed to query alert event: %w", err)
	}

	return event, nil
}

// ListAlertEvents 分页查询告警事件，返回事件列表和总数
func (r *AlertEventsRepository) ListAlertEvents(ctx context.Context, tenantID string, filters AlertEventFilters, page, pageSize int) ([]*models.AlertEvent, int, error) {
	if tenantID == "" {
		return nil, 0, fmt.Errorf("tenant_id is required")
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	where := "WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filters.PatientID != nil {
		args = append(args, *filters.PatientID)
		where += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if filters.VitalType != nil {
		args = append(args, *filters.VitalType)
		where += fmt.Sprintf(" AND vital_type = $%d", len(args))
	}
	if filters.Status != nil {
		args = append(args, *filters.Status)
		where += fmt.Sprintf(" AND alert_status = $%d", len(args))
	}
	if filters.StartTime != nil {
		args = append(args, *filters.StartTime)
		where += fmt.Sprintf(" AND triggered_at >= $%d", len(args))
	}
	if filters.EndTime != nil {
		args = append(args, *filters.EndTime)
		where += fmt.Sprintf(" AND triggered_at <= $%d", len(args))
	}

	// 总数
	countQuery := "SELECT COUNT(*) FROM alert_events " + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alert events: %w", err)
	}

	// 列表
	args = append(args, pageSize, (page-1)*pageSize)
	listQuery := fmt.Sprintf(`
		SELECT event_id, tenant_id, patient_id, device_id, vital_type,
			alert_level, alert_status, triggered_at, ack_time, handler,
			trigger_data, created_at, updated_at
		FROM alert_events
		%s
		ORDER BY triggered_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	var events []*models.AlertEvent
	for rows.Next() {
		event, err := scanAlertEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate alert events: %w", err)
	}

	return events, total, nil
}

// GetRecentAlertEvent 获取患者某体征最近 withinMinutes 分钟内的告警（用于去重）
// 不存在时返回 (nil, nil)
func (r *AlertEventsRepository) GetRecentAlertEvent(ctx context.Context, tenantID, patientID, vitalType string, withinMinutes int) (*models.AlertEvent, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	query := `
		SELECT event_id, tenant_id, patient_id, device_id, vital_type,
			alert_level, alert_status, triggered_at, ack_time, handler,
			trigger_data, created_at, updated_at
		FROM alert_events
		WHERE tenant_id = $1 AND patient_id = $2 AND vital_type = $3
			AND triggered_at >= $4
		ORDER BY triggered_at DESC
		LIMIT 1
	`

	since := time.Now().Add(-time.Duration(withinMinutes) * time.Minute)
	event, err := scanAlertEvent(r.db.QueryRowContext(ctx, query, tenantID, patientID, vitalType, since))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query recent alert event: %w", err)
	}

	return event, nil
}

// AcknowledgeAlertEvent 确认告警事件
func (r *AlertEventsRepository) AcknowledgeAlertEvent(ctx context.Context, tenantID, eventID, handlerID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}

	query := `
		UPDATE alert_events
		SET alert_status = 'acknowledged', ack_time = $1, handler = $2, updated_at = $3
		WHERE event_id = $4 AND tenant_id = $5
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query, now, handlerID, now, eventID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert event: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert event not found: %s", eventID)
	}

	return nil
}

// rowScanner 兼容 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAlertEvent 扫描一行告警事件
func scanAlertEvent(row rowScanner) (*models.AlertEvent, error) {
	event := &models.AlertEvent{}
	var ackTime sql.NullTime
	var handler sql.NullString

	err := row.Scan(
		&event.EventID,
		&event.TenantID,
		&event.PatientID,
		&event.DeviceID,
		&event.VitalType,
		&event.AlertLevel,
		&event.AlertStatus,
		&event.TriggeredAt,
		&ackTime,
		&handler,
		&event.TriggerData,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ackTime.Valid {
		event.AckTime = &ackTime.Time
	}
	if handler.Valid {
		event.Handler = &handler.String
	}

	return event, nil
}
