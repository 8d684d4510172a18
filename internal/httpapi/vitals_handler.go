package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"vitalwatch/internal/analyzer"
	"vitalwatch/internal/consumer"
	"vitalwatch/internal/models"
	"vitalwatch/internal/repository"
	"vitalwatch/internal/vitals"

	"go.uber.org/zap"
)

// ReadingStore 历史读数查询
type ReadingStore interface {
	GetRecentByPatient(ctx context.Context, tenantID, patientID string, limit int) ([]*models.VitalReading, error)
}

// AlertStore 告警事件查询与确认
type AlertStore interface {
	ListAlertEvents(ctx context.Context, tenantID string, filters repository.AlertEventFilters, page, pageSize int) ([]*models.AlertEvent, int, error)
	AcknowledgeAlertEvent(ctx context.Context, tenantID, eventID, handlerID string) error
}

// AssessmentCache 患者最新评估缓存
type AssessmentCache interface {
	GetAssessment(ctx context.Context, patientID string) (*models.Assessment, error)
}

// SessionStore 患者会话查询
type SessionStore interface {
	Get(patientID string) (consumer.PatientSession, bool)
	Count() int
	Active(within time.Duration) []string
}

// activeSessionWindow 健康检查统计"活跃"会话的时间窗口
const activeSessionWindow = 15 * time.Minute

// AnalyticsHandler 分析服务 Handler
type AnalyticsHandler struct {
	readings    ReadingStore
	alerts      AlertStore
	cache       AssessmentCache
	sessions    SessionStore
	logger      *zap.Logger
	trendWindow int
}

// NewAnalyticsHandler 创建分析 Handler
func NewAnalyticsHandler(
	readings ReadingStore,
	alerts AlertStore,
	cache AssessmentCache,
	sessions SessionStore,
	logger *zap.Logger,
	trendWindow int,
) *AnalyticsHandler {
	if trendWindow <= 0 {
		trendWindow = 20
	}
	return &AnalyticsHandler{
		readings:    readings,
		alerts:      alerts,
		cache:       cache,
		sessions:    sessions,
		logger:      logger,
		trendWindow: trendWindow,
	}
}

// ============================================
// ClassifyVital 即席分级
// ============================================

type classifyRequest struct {
	Vital   string         `json:"vital"`
	Reading vitals.Reading `json:"reading"`
}

// ClassifyVital 对请求中的读数做一次分级
func (h *AnalyticsHandler) ClassifyVital(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	result, err := vitals.Classify(vitals.VitalType(req.Vital), req.Reading)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(result))
}

// ============================================
// GetPatientTrend 患者体征趋势
// ============================================

type trendResponse struct {
	PatientID string             `json:"patient_id"`
	Vital     string             `json:"vital"`
	Trend     vitals.TrendResult `json:"trend"`
	Samples   int                `json:"samples"`
}

// GetPatientTrend 基于患者最近读数计算某体征的趋势
func (h *AnalyticsHandler) GetPatientTrend(w http.ResponseWriter, r *http.Request, patientID string) {
	ctx := r.Context()

	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}

	vital := strings.TrimSpace(r.URL.Query().Get("vital"))
	if vital == "" {
		writeJSON(w, http.StatusOK, Fail("vital query parameter is required"))
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), h.trendWindow)
	if limit > 500 {
		limit = 500
	}

	readings, err := h.readings.GetRecentByPatient(ctx, tenantID, patientID, limit)
	if err != nil {
		h.logger.Error("Failed to load readings for trend",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail("failed to load readings"))
		return
	}

	var series []*float64
	switch vitals.VitalType(vital) {
	case vitals.VitalBloodPressure:
		// 血压按收缩压估计趋势
		for _, reading := range readings {
			var v *float64
			if reading.Systolic != nil {
				f := float64(*reading.Systolic)
				v = &f
			}
			series = append(series, v)
		}
	case vitals.VitalHeartRate, vitals.VitalTemperature, vitals.VitalOxygenSaturation:
		series = analyzer.SeriesOf(readings, vitals.VitalType(vital))
	default:
		writeJSON(w, http.StatusOK, Fail("unknown vital type: "+vital))
		return
	}

	samples := 0
	for _, v := range series {
		if v != nil {
			samples++
		}
	}

	writeJSON(w, http.StatusOK, Ok(trendResponse{
		PatientID: patientID,
		Vital:     vital,
		Trend:     vitals.ComputeTrend(series),
		Samples:   samples,
	}))
}

// ============================================
// GetPatientAssessment 患者最新评估
// ============================================

type assessmentResponse struct {
	Assessment *models.Assessment `json:"assessment"`
	Session    *sessionInfo       `json:"session,omitempty"`
}

type sessionInfo struct {
	LastReadingAt time.Time `json:"last_reading_at"`
	ReadingCount  int64     `json:"reading_count"`
}

// GetPatientAssessment 返回缓存中的最新评估结果
func (h *AnalyticsHandler) GetPatientAssessment(w http.ResponseWriter, r *http.Request, patientID string) {
	ctx := r.Context()

	if _, ok := tenantIDFromReq(w, r); !ok {
		return
	}

	assessment, err := h.cache.GetAssessment(ctx, patientID)
	if err != nil {
		h.logger.Error("Failed to load assessment",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail("failed to load assessment"))
		return
	}
	if assessment == nil {
		writeJSON(w, http.StatusOK, Fail("assessment not found for patient: "+patientID))
		return
	}

	resp := assessmentResponse{Assessment: assessment}
	if session, ok := h.sessions.Get(patientID); ok {
		resp.Session = &sessionInfo{
			LastReadingAt: session.LastReadingAt,
			ReadingCount:  session.ReadingCount,
		}
	}

	writeJSON(w, http.StatusOK, Ok(resp))
}

// ============================================
// Healthz 健康检查
// ============================================

// Healthz 存活检查，附带会话注册表统计
func (h *AnalyticsHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"sessions":        h.sessions.Count(),
		"active_sessions": len(h.sessions.Active(activeSessionWindow)),
	})
}

// ============================================
// ListAlerts / AcknowledgeAlert 告警事件
// ============================================

type alertListResponse struct {
	Items    []*models.AlertEvent `json:"items"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ListAlerts 分页查询告警事件
func (h *AnalyticsHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}

	page := parseInt(r.URL.Query().Get("page"), 1)
	pageSize := parseInt(r.URL.Query().Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}

	filters := repository.AlertEventFilters{}
	if patientID := strings.TrimSpace(r.URL.Query().Get("patient_id")); patientID != "" {
		filters.PatientID = &patientID
	}
	if vital := strings.TrimSpace(r.URL.Query().Get("vital")); vital != "" {
		filters.VitalType = &vital
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		filters.Status = &status
	}

	events, total, err := h.alerts.ListAlertEvents(ctx, tenantID, filters, page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list alert events", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to list alert events"))
		return
	}
	if events == nil {
		events = []*models.AlertEvent{}
	}

	writeJSON(w, http.StatusOK, Ok(alertListResponse{
		Items:    events,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}))
}

type acknowledgeRequest struct {
	Handler string `json:"handler"`
}

// AcknowledgeAlert 确认告警事件
func (h *AnalyticsHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request, eventID string) {
	ctx := r.Context()

	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}

	var req acknowledgeRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if req.Handler == "" {
		req.Handler = r.Header.Get("X-User-Id")
	}
	if req.Handler == "" {
		writeJSON(w, http.StatusOK, Fail("handler is required"))
		return
	}

	if err := h.alerts.AcknowledgeAlertEvent(ctx, tenantID, eventID, req.Handler); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		h.logger.Error("Failed to acknowledge alert event",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail("failed to acknowledge alert event"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]string{"event_id": eventID, "status": "acknowledged"}))
}
