package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalwatch/internal/models"
	"vitalwatch/internal/vitals"
)

// ============================================
// 测试用内存存储
// ============================================

type fakeReadingStore struct {
	readings []*models.VitalReading
	err      error
}

func (f *fakeReadingStore) GetRecentByPatient(_ context.Context, _, _ string, limit int) ([]*models.VitalReading, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.readings) > limit {
		return f.readings[len(f.readings)-limit:], nil
	}
	return f.readings, nil
}

type fakeAlertStore struct {
	created   []*models.AlertEvent
	recent    map[string]*models.AlertEvent // key: patientID+vitalType
	createErr error
}

func (f *fakeAlertStore) CreateAlertEvent(_ context.Context, _ string, event *models.AlertEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, event)
	return nil
}

func (f *fakeAlertStore) GetRecentAlertEvent(_ context.Context, _, patientID, vitalType string, _ int) (*models.AlertEvent, error) {
	if f.recent == nil {
		return nil, nil
	}
	return f.recent[patientID+vitalType], nil
}

func intp(v int) *int {
	return &v
}

func floatp(v float64) *float64 {
	return &v
}

func testReading(hr *int, temp *float64, spo2 *int) *models.VitalReading {
	return &models.VitalReading{
		TenantID:         "tenant-1",
		PatientID:        "patient-1",
		DeviceID:         "monitor-01",
		HeartRate:        hr,
		Temperature:      temp,
		OxygenSaturation: spo2,
		Timestamp:        time.Now(),
	}
}

// ============================================
// 评估测试
// ============================================

func TestAnalyze_NormalVitals(t *testing.T) {
	readings := &fakeReadingStore{}
	alerts := &fakeAlertStore{}
	a := NewAnalyzer(readings, alerts, zap.NewNop(), 20, 5)

	reading := testReading(intp(72), floatp(98.6), intp(98))
	assessment, events, err := a.Analyze(context.Background(), reading)

	require.NoError(t, err)
	require.NotNil(t, assessment)
	assert.Equal(t, "patient-1", assessment.PatientID)
	assert.Equal(t, vitals.RiskLow, assessment.OverallRisk)
	assert.Len(t, assessment.Classifications, 3)
	assert.Empty(t, events)
	assert.Empty(t, alerts.created)
}

func TestAnalyze_OverallRiskIsMax(t *testing.T) {
	readings := &fakeReadingStore{}
	alerts := &fakeAlertStore{}
	a := NewAnalyzer(readings, alerts, zap.NewNop(), 20, 5)

	// 心率正常，血氧 moderate，体温 critical
	reading := testReading(intp(72), floatp(105.5), intp(92))
	assessment, events, err := a.Analyze(context.Background(), reading)

	require.NoError(t, err)
	assert.Equal(t, vitals.RiskCritical, assessment.OverallRisk)

	// 只有体温达到告警阈值
	require.Len(t, events, 1)
	assert.Equal(t, "temperature", events[0].VitalType)
	assert.Equal(t, "EMERGENCY", events[0].AlertLevel)
}

func TestAnalyze_EmptyReading(t *testing.T) {
	a := NewAnalyzer(&fakeReadingStore{}, &fakeAlertStore{}, zap.NewNop(), 20, 5)

	reading := testReading(nil, nil, nil)
	_, _, err := a.Analyze(context.Background(), reading)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no vital signs")
}

func TestAnalyze_HighRiskCreatesWarning(t *testing.T) {
	readings := &fakeReadingStore{}
	alerts := &fakeAlertStore{}
	a := NewAnalyzer(readings, alerts, zap.NewNop(), 20, 5)

	// 心率 125 → risk high → WARNING
	reading := testReading(intp(125), nil, nil)
	_, events, err := a.Analyze(context.Background(), reading)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "heartRate", events[0].VitalType)
	assert.Equal(t, "WARNING", events[0].AlertLevel)
	assert.Equal(t, "active", events[0].AlertStatus)
	assert.NotEmpty(t, events[0].EventID)

	// trigger_data 记录触发时的快照
	var data models.TriggerData
	require.NoError(t, json.Unmarshal([]byte(events[0].TriggerData), &data))
	require.NotNil(t, data.HeartRate)
	assert.Equal(t, 125, *data.HeartRate)
	assert.Equal(t, "high", data.Risk)
}

func TestAnalyze_DedupSuppressesAlert(t *testing.T) {
	readings := &fakeReadingStore{}
	alerts := &fakeAlertStore{
		recent: map[string]*models.AlertEvent{
			"patient-1heartRate": {EventID: "existing"},
		},
	}
	a := NewAnalyzer(readings, alerts, zap.NewNop(), 20, 5)

	reading := testReading(intp(150), nil, nil)
	assessment, events, err := a.Analyze(context.Background(), reading)

	require.NoError(t, err)
	// 分级仍然发生，但不重复告警
	assert.Equal(t, vitals.RiskCritical, assessment.OverallRisk)
	assert.Empty(t, events)
	assert.Empty(t, alerts.created)
}

func TestAnalyze_CreateFailureDoesNotAbort(t *testing.T) {
	readings := &fakeReadingStore{}
	alerts := &fakeAlertStore{createErr: fmt.Errorf("db down")}
	a := NewAnalyzer(readings, alerts, zap.NewNop(), 20, 5)

	reading := testReading(intp(150), floatp(106.0), nil)
	assessment, events, err := a.Analyze(context.Background(), reading)

	require.NoError(t, err)
	assert.NotNil(t, assessment)
	assert.Empty(t, events)
}

func TestAnalyze_TrendsFromHistory(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	history := []*models.VitalReading{
		{TenantID: "tenant-1", PatientID: "patient-1", HeartRate: intp(70), Timestamp: base},
		{TenantID: "tenant-1", PatientID: "patient-1", HeartRate: intp(80), Timestamp: base.Add(10 * time.Minute)},
		{TenantID: "tenant-1", PatientID: "patient-1", HeartRate: intp(90), Timestamp: base.Add(20 * time.Minute)},
	}
	readings := &fakeReadingStore{readings: history}
	a := NewAnalyzer(readings, &fakeAlertStore{}, zap.NewNop(), 20, 5)

	reading := testReading(intp(95), nil, nil)
	assessment, _, err := a.Analyze(context.Background(), reading)

	require.NoError(t, err)
	require.Contains(t, assessment.Trends, "heartRate")

	hr := assessment.Trends["heartRate"]
	assert.Equal(t, vitals.TrendIncreasing, hr.Direction)
	assert.InDelta(t, 10.0, hr.Slope, 1e-9)
	require.NotNil(t, hr.Change)
	assert.InDelta(t, 20.0, *hr.Change, 1e-9)

	// 历史里没有体温读数 → 退化为 stable
	temp := assessment.Trends["temperature"]
	assert.Equal(t, vitals.TrendStable, temp.Direction)
	assert.Zero(t, temp.Slope)
	assert.Nil(t, temp.Change)
}

func TestAnalyze_HistoryFailureSkipsTrends(t *testing.T) {
	readings := &fakeReadingStore{err: fmt.Errorf("query timeout")}
	a := NewAnalyzer(readings, &fakeAlertStore{}, zap.NewNop(), 20, 5)

	reading := testReading(intp(72), nil, nil)
	assessment, _, err := a.Analyze(context.Background(), reading)

	require.NoError(t, err)
	assert.Nil(t, assessment.Trends)
	assert.Len(t, assessment.Classifications, 1)
}

func TestSeriesOf_MissingValuesAreNil(t *testing.T) {
	history := []*models.VitalReading{
		{HeartRate: intp(70)},
		{Temperature: floatp(98.6)},
		{HeartRate: intp(90)},
	}

	series := SeriesOf(history, vitals.VitalHeartRate)

	require.Len(t, series, 3)
	require.NotNil(t, series[0])
	assert.Equal(t, 70.0, *series[0])
	assert.Nil(t, series[1])
	require.NotNil(t, series[2])
	assert.Equal(t, 90.0, *series[2])
}
