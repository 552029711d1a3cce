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

// HandleHandler 支持 http.Handler 接口（用于 pprof 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterInspectionRoutes 巡檢端路由
func (r *Router) RegisterInspectionRoutes(h *InspectionHandler) {
	r.Handle("/inspect/api/v1/models", methodOnly(http.MethodGet, h.GetModels))
	r.Handle("/inspect/api/v1/parts", methodOnly(http.MethodGet, h.GetParts))
	r.Handle("/inspect/api/v1/parts/refresh", methodOnly(http.MethodPost, h.RefreshParts))

	// parts/{part_no}/spec
	r.Handle("/inspect/api/v1/parts/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet || !strings.HasSuffix(req.URL.Path, "/spec") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		partNo := extractPathSegment(req.URL.Path, "/inspect/api/v1/parts/")
		if partNo == "" || partNo == "refresh" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.GetSpec(w, req, partNo)
	})

	r.Handle("/inspect/api/v1/submissions", methodOnly(http.MethodPost, h.Submit))
	r.Handle("/inspect/api/v1/history", methodOnly(http.MethodGet, h.GetHistory))

	r.Handle("/inspect/api/v1/sessions", methodOnly(http.MethodPost, h.StartSession))
	// sessions/{id}/select
	r.Handle("/inspect/api/v1/sessions/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/select") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		id := extractPathSegment(req.URL.Path, "/inspect/api/v1/sessions/")
		if id == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.SelectPart(w, req, id)
	})
}

// RegisterReviewRoutes 管理端（審核）路由
func (r *Router) RegisterReviewRoutes(h *ReviewHandler) {
	r.Handle("/review/api/v1/events", methodOnly(http.MethodGet, h.GetEvents))
	r.Handle("/review/api/v1/events/update", methodOnly(http.MethodPost, h.UpdateEvent))
	r.Handle("/review/api/v1/events/export", methodOnly(http.MethodGet, h.ExportEvents))
}

// RegisterDiagnosticsRoutes 健康檢查路由
func (r *Router) RegisterDiagnosticsRoutes(h *DiagnosticsHandler) {
	r.Handle("/inspect/api/v1/diagnostics", methodOnly(http.MethodGet, h.GetDiagnostics))
}
