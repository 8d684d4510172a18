package models

import (
	"time"
)

// AlertEvent 告警事件（对应 alert_events 表）
type AlertEvent struct {
	EventID     string     `json:"event_id" db:"event_id"`
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	PatientID   string     `json:"patient_id" db:"patient_id"`
	DeviceID    string     `json:"device_id" db:"device_id"`
	VitalType   string     `json:"vital_type" db:"vital_type"`     // bloodPressure, heartRate, temperature, oxygenSaturation
	AlertLevel  string     `json:"alert_level" db:"alert_level"`   // EMERGENCY, WARNING
	AlertStatus string     `json:"alert_status" db:"alert_status"` // active, acknowledged
	TriggeredAt time.Time  `json:"triggered_at" db:"triggered_at"`
	AckTime     *time.Time `json:"ack_time,omitempty" db:"ack_time"`
	Handler     *string    `json:"handler,omitempty" db:"handler"`
	TriggerData string     `json:"trigger_data" db:"trigger_data"` // JSONB
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TriggerData 触发数据快照（JSONB 结构）
type TriggerData struct {
	Systolic         *int     `json:"systolic,omitempty"`
	Diastolic        *int     `json:"diastolic,omitempty"`
	HeartRate        *int     `json:"heart_rate,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty"`
	Band             string   `json:"band"`
	Risk             string   `json:"risk"`
}
