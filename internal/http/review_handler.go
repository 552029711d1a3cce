package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ruiquan-inspection/internal/domain"
	"ruiquan-inspection/internal/service"

	"go.uber.org/zap"
)

// reviewer 審核引擎（service.ReviewEngine 實作）
type reviewer interface {
	Events(ctx context.Context, filter service.EventFilter) ([]domain.ChangePointEvent, error)
	UpdateEvent(ctx context.Context, req service.UpdateEventRequest) error
}

// ReviewHandler 管理端 Handler：變化點事件清單、審核、匯出
type ReviewHandler struct {
	review reviewer
	logger *zap.Logger
}

func NewReviewHandler(review reviewer, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{review: review, logger: logger}
}

// filterDateLayout 查詢參數的日期格式（整天區間）
const filterDateLayout = "2006-01-02"

func (h *ReviewHandler) parseFilter(r *http.Request) (service.EventFilter, error) {
	q := r.URL.Query()
	filter := service.EventFilter{
		Model:   q.Get("model"),
		PartNo:  q.Get("part_no"),
		ShowAll: q.Get("show_all") == "true",
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(filterDateLayout, v)
		if err != nil {
			return filter, fmt.Errorf("invalid from date %q (want YYYY-MM-DD)", v)
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(filterDateLayout, v)
		if err != nil {
			return filter, fmt.Errorf("invalid to date %q (want YYYY-MM-DD)", v)
		}
		// 含當天整天
		filter.To = t.Add(24*time.Hour - time.Second)
	}
	return filter, nil
}

// GetEvents 取變化點事件卡清單
// GET /review/api/v1/events?from=2026-08-01&to=2026-08-28&model=CX-5&part_no=ABC-123&show_all=true
func (h *ReviewHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	events, err := h.review.Events(r.Context(), filter)
	if err != nil {
		h.logger.Error("GetEvents failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": events,
		"count": len(events),
	}))
}

// updateEventRequest 審核更新 payload
type updateEventRequest struct {
	Timestamp      string  `json:"timestamp"`
	PartNo         string  `json:"part_no"`
	Status         string  `json:"status"`
	ManagerComment string  `json:"manager_comment"`
	ChangePoint    *string `json:"change_point"`
	ApplyBatch     bool    `json:"apply_batch"`
}

// UpdateEvent 管理者審核：狀態/備註/變化點修訂
// POST /review/api/v1/events/update
func (h *ReviewHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body: "+err.Error()))
		return
	}

	err := h.review.UpdateEvent(r.Context(), service.UpdateEventRequest{
		Timestamp:      req.Timestamp,
		PartNo:         req.PartNo,
		NewStatus:      req.Status,
		ManagerComment: req.ManagerComment,
		ChangePoint:    req.ChangePoint,
		ApplyBatch:     req.ApplyBatch,
	})
	if err != nil {
		h.logger.Warn("UpdateEvent failed",
			zap.String("timestamp", req.Timestamp),
			zap.String("part_no", req.PartNo),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// ExportEvents 匯出事件清單為 xlsx
// GET /review/api/v1/events/export?from=...&to=...&show_all=true
func (h *ReviewHandler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	events, err := h.review.Events(r.Context(), filter)
	if err != nil {
		h.logger.Error("ExportEvents failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	data, err := GenerateReviewExport(events)
	if err != nil {
		h.logger.Error("ExportEvents generate failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	filename := fmt.Sprintf("change_points_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
