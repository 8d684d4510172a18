package models

import (
	"vitalwatch/internal/vitals"
)

// Assessment 一次评估结果（写入 Redis 缓存，供前端实时读取）
type Assessment struct {
	PatientID       string                              `json:"patient_id"`
	TenantID        string                              `json:"tenant_id"`
	Classifications []vitals.ClassificationResult       `json:"classifications"`
	OverallRisk     vitals.RiskLevel                    `json:"overall_risk"`
	Trends          map[string]vitals.TrendResult       `json:"trends,omitempty"` // key: 体征类型
	Timestamp       int64                               `json:"timestamp"`        // Unix 时间戳
}

// RiskOf 返回某个体征的风险等级（未评估时返回 low）
func (a *Assessment) RiskOf(vital vitals.VitalType) vitals.RiskLevel {
	for _, c := range a.Classifications {
		if c.Vital == vital {
			return c.Risk
		}
	}
	return vitals.RiskLow
}
