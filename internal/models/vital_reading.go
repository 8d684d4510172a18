package models

import (
	"encoding/json"
	"fmt"
	"time"

	"vitalwatch/internal/vitals"
)

// VitalReading 一次生命体征观测（对应 vital_readings 表）
// 各体征字段均可选，同一行可携带多个体征
type VitalReading struct {
	ID               int64     `json:"id" db:"id"`
	TenantID         string    `json:"tenant_id" db:"tenant_id"`
	PatientID        string    `json:"patient_id" db:"patient_id"`
	DeviceID         string    `json:"device_id,omitempty" db:"device_id"`
	Systolic         *int      `json:"systolic,omitempty" db:"systolic"`
	Diastolic        *int      `json:"diastolic,omitempty" db:"diastolic"`
	HeartRate        *int      `json:"heart_rate,omitempty" db:"heart_rate"`
	Temperature      *float64  `json:"temperature,omitempty" db:"temperature"`
	OxygenSaturation *int      `json:"oxygen_saturation,omitempty" db:"oxygen_saturation"`
	Timestamp        time.Time `json:"timestamp" db:"timestamp"`
}

// ToReading 转换为分级用的读数结构
func (r *VitalReading) ToReading() vitals.Reading {
	return vitals.Reading{
		Systolic:         r.Systolic,
		Diastolic:        r.Diastolic,
		HeartRate:        r.HeartRate,
		Temperature:      r.Temperature,
		OxygenSaturation: r.OxygenSaturation,
	}
}

// PresentVitals 返回该读数携带的体征类型列表
func (r *VitalReading) PresentVitals() []vitals.VitalType {
	var present []vitals.VitalType
	if r.Systolic != nil && r.Diastolic != nil {
		present = append(present, vitals.VitalBloodPressure)
	}
	if r.HeartRate != nil {
		present = append(present, vitals.VitalHeartRate)
	}
	if r.Temperature != nil {
		present = append(present, vitals.VitalTemperature)
	}
	if r.OxygenSaturation != nil {
		present = append(present, vitals.VitalOxygenSaturation)
	}
	return present
}

// ParseReadingMessage 解析流消息中的读数（JSON 在 "data" 字段中）
func ParseReadingMessage(values map[string]interface{}) (*VitalReading, error) {
	raw, ok := values["data"]
	if !ok {
		return nil, fmt.Errorf("message has no data field")
	}

	rawStr, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("data field is not a string")
	}

	var reading VitalReading
	if err := json.Unmarshal([]byte(rawStr), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}

	if reading.PatientID == "" {
		return nil, fmt.Errorf("reading has no patient_id")
	}
	if reading.TenantID == "" {
		return nil, fmt.Errorf("reading has no tenant_id")
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	return &reading, nil
}
