package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAnalyticsRoutes 注册分析服务路由
func (r *Router) RegisterAnalyticsRoutes(h *AnalyticsHandler) {
	// ad-hoc 分级
	r.Handle("/analytics/api/v1/vitals/classify", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ClassifyVital(w, req)
	})

	// patients/{id}/trend 和 patients/{id}/assessment
	r.Handle("/analytics/api/v1/patients/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		rest := strings.TrimPrefix(req.URL.Path, "/analytics/api/v1/patients/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		switch parts[1] {
		case "trend":
			h.GetPatientTrend(w, req, parts[0])
		case "assessment":
			h.GetPatientAssessment(w, req, parts[0])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	// 告警事件列表
	r.Handle("/analytics/api/v1/alerts", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListAlerts(w, req)
	})

	// alerts/{id}/acknowledge
	r.Handle("/analytics/api/v1/alerts/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/acknowledge") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		eventID := strings.TrimSuffix(req.URL.Path, "/acknowledge")
		eventID = strings.TrimPrefix(eventID, "/analytics/api/v1/alerts/")
		if eventID == "" || strings.Contains(eventID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.AcknowledgeAlert(w, req, eventID)
	})

	// 健康检查
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		h.Healthz(w, req)
	})
}
