// Package analyzer 提供生命体征评估
//
// 对每条新读数：
// - 对读数中出现的每个体征做分级（band + risk）
// - 综合风险取各体征风险的最高档
// - 基于患者最近的历史读数计算各体征的趋势
// - 风险达到 high/critical 时生成告警事件（同一患者同一体征在
//   去重窗口内不重复告警）
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vitalwatch/internal/models"
	"vitalwatch/internal/vitals"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadingStore 历史读数查询接口（由 repository.VitalReadingsRepository 实现）
type ReadingStore interface {
	GetRecentByPatient(ctx context.Context, tenantID, patientID string, limit int) ([]*models.VitalReading, error)
}

// AlertStore 告警事件存储接口（由 repository.AlertEventsRepository 实现）
type AlertStore interface {
	CreateAlertEvent(ctx context.Context, tenantID string, event *models.AlertEvent) error
	GetRecentAlertEvent(ctx context.Context, tenantID, patientID, vitalType string, withinMinutes int) (*models.AlertEvent, error)
}

// Analyzer 生命体征评估器
type Analyzer struct {
	readings    ReadingStore
	alerts      AlertStore
	logger      *zap.Logger
	trendWindow int // 趋势估计使用的历史读数条数
	dedupWindow int // 告警去重窗口（分钟）
}

// NewAnalyzer 创建评估器
func NewAnalyzer(readings ReadingStore, alerts AlertStore, logger *zap.Logger, trendWindow, dedupWindow int) *Analyzer {
	if trendWindow <= 0 {
		trendWindow = 20
	}
	if dedupWindow <= 0 {
		dedupWindow = 5
	}
	return &Analyzer{
		readings:    readings,
		alerts:      alerts,
		logger:      logger,
		trendWindow: trendWindow,
		dedupWindow: dedupWindow,
	}
}

// Analyze 评估一条读数，返回评估结果和新生成的告警事件
func (a *Analyzer) Analyze(ctx context.Context, reading *models.VitalReading) (*models.Assessment, []models.AlertEvent, error) {
	present := reading.PresentVitals()
	if len(present) == 0 {
		return nil, nil, fmt.Errorf("reading carries no vital signs")
	}

	assessment := &models.Assessment{
		PatientID:   reading.PatientID,
		TenantID:    reading.TenantID,
		OverallRisk: vitals.RiskLow,
		Timestamp:   reading.Timestamp.Unix(),
	}

	// 1. 逐个体征分级
	for _, vital := range present {
		result, err := vitals.Classify(vital, reading.ToReading())
		if err != nil {
			// PresentVitals 已保证字段齐全，这里不应发生
			a.logger.Error("Failed to classify vital",
				zap.String("patient_id", reading.PatientID),
				zap.String("vital", string(vital)),
				zap.Error(err),
			)
			continue
		}
		assessment.Classifications = append(assessment.Classifications, result)
		assessment.OverallRisk = vitals.MaxRisk(assessment.OverallRisk, result.Risk)
	}

	// 2. 趋势估计（基于历史读数，查询失败时降级为无趋势）
	history, err := a.readings.GetRecentByPatient(ctx, reading.TenantID, reading.PatientID, a.trendWindow)
	if err != nil {
		a.logger.Warn("Failed to load reading history, skipping trends",
			zap.String("patient_id", reading.PatientID),
			zap.Error(err),
		)
	} else {
		assessment.Trends = computeTrends(history)
	}

	// 3. 生成告警事件
	alerts := a.buildAlerts(ctx, reading, assessment)

	return assessment, alerts, nil
}

// computeTrends 对历史读数中的每个体征序列计算趋势
func computeTrends(history []*models.VitalReading) map[string]vitals.TrendResult {
	trends := make(map[string]vitals.TrendResult)

	for _, vital := range []vitals.VitalType{
		vitals.VitalHeartRate,
		vitals.VitalTemperature,
		vitals.VitalOxygenSaturation,
	} {
		series := SeriesOf(history, vital)
		trends[string(vital)] = vitals.ComputeTrend(series)
	}

	// 血压按收缩压序列估计趋势
	systolic := make([]*float64, 0, len(history))
	for _, r := range history {
		if r.Systolic != nil {
			v := float64(*r.Systolic)
			systolic = append(systolic, &v)
		} else {
			systolic = append(systolic, nil)
		}
	}
	trends[string(vitals.VitalBloodPressure)] = vitals.ComputeTrend(systolic)

	return trends
}

// SeriesOf 从读数序列中抽取某个单值体征的数值序列（缺测为 nil）
func SeriesOf(history []*models.VitalReading, vital vitals.VitalType) []*float64 {
	series := make([]*float64, 0, len(history))
	for _, r := range history {
		var v *float64
		switch vital {
		case vitals.VitalHeartRate:
			if r.HeartRate != nil {
				f := float64(*r.HeartRate)
				v = &f
			}
		case vitals.VitalTemperature:
			v = r.Temperature
		case vitals.VitalOxygenSaturation:
			if r.OxygenSaturation != nil {
				f := float64(*r.OxygenSaturation)
				v = &f
			}
		}
		series = append(series, v)
	}
	return series
}

// buildAlerts 为达到告警风险的体征生成事件并写入存储
func (a *Analyzer) buildAlerts(ctx context.Context, reading *models.VitalReading, assessment *models.Assessment) []models.AlertEvent {
	var alerts []models.AlertEvent

	for _, c := range assessment.Classifications {
		level := alertLevelFor(c.Risk)
		if level == "" {
			continue
		}

		// 去重：同一患者同一体征在窗口内已有告警则跳过
		recent, err := a.alerts.GetRecentAlertEvent(ctx, reading.TenantID, reading.PatientID, string(c.Vital), a.dedupWindow)
		if err != nil {
			a.logger.Error("Failed to check recent alert",
				zap.String("patient_id", reading.PatientID),
				zap.String("vital", string(c.Vital)),
				zap.Error(err),
			)
			continue
		}
		if recent != nil {
			a.logger.Debug("Alert suppressed by dedup window",
				zap.String("patient_id", reading.PatientID),
				zap.String("vital", string(c.Vital)),
				zap.String("recent_event_id", recent.EventID),
			)
			continue
		}

		triggerData, err := json.Marshal(models.TriggerData{
			Systolic:         c.Systolic,
			Diastolic:        c.Diastolic,
			HeartRate:        reading.HeartRate,
			Temperature:      reading.Temperature,
			OxygenSaturation: reading.OxygenSaturation,
			Band:             string(c.Band),
			Risk:             string(c.Risk),
		})
		if err != nil {
			a.logger.Error("Failed to marshal trigger data", zap.Error(err))
			continue
		}

		now := time.Now()
		event := models.AlertEvent{
			EventID:     uuid.New().String(),
			TenantID:    reading.TenantID,
			PatientID:   reading.PatientID,
			DeviceID:    reading.DeviceID,
			VitalType:   string(c.Vital),
			AlertLevel:  level,
			AlertStatus: "active",
			TriggeredAt: reading.Timestamp,
			TriggerData: string(triggerData),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := a.alerts.CreateAlertEvent(ctx, reading.TenantID, &event); err != nil {
			a.logger.Error("Failed to create alert event",
				zap.String("event_id", event.EventID),
				zap.String("vital", event.VitalType),
				zap.Error(err),
			)
			// 继续处理其他体征，不中断
			continue
		}

		a.logger.Info("Alert event created",
			zap.String("event_id", event.EventID),
			zap.String("patient_id", reading.PatientID),
			zap.String("vital", event.VitalType),
			zap.String("alert_level", event.AlertLevel),
		)

		alerts = append(alerts, event)
	}

	return alerts
}

// alertLevelFor 风险等级到告警级别的映射（低于 high 不告警）
func alertLevelFor(risk vitals.RiskLevel) string {
	switch risk {
	case vitals.RiskCritical:
		return "EMERGENCY"
	case vitals.RiskHigh:
		return "WARNING"
	default:
		return ""
	}
}
