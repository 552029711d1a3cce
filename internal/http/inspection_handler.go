package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ruiquan-inspection/internal/domain"
	"ruiquan-inspection/internal/ledger"
	"ruiquan-inspection/internal/service"
	"ruiquan-inspection/internal/specparse"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// partSource 品番主檔查詢（partmaster.Loader 實作）
type partSource interface {
	Models() ([]string, error)
	PartsForModel(model string) ([]domain.PartMaster, error)
	Find(partNo string) (domain.PartMaster, bool, error)
	Refresh() ([]domain.PartMaster, error)
}

// submitter 提交協調（service.SubmissionCoordinator 實作）
type submitter interface {
	Submit(ctx context.Context, spec domain.ResolvedSpec, in service.SubmissionInput, photo *ledger.Photo) (*service.SubmissionResult, error)
}

// historyReader 履歷查詢（service.HistoryService 實作）
type historyReader interface {
	History(ctx context.Context, partNo string, limit int) (*service.PartHistory, error)
}

// InspectionHandler 巡檢端 Handler：品番選取、規格、提交、履歷
type InspectionHandler struct {
	parts    partSource
	resolver *specparse.Resolver
	submit   submitter
	history  historyReader
	sessions *service.SessionManager
	logger   *zap.Logger
}

func NewInspectionHandler(parts partSource, resolver *specparse.Resolver, submit submitter, history historyReader, sessions *service.SessionManager, logger *zap.Logger) *InspectionHandler {
	return &InspectionHandler{
		parts:    parts,
		resolver: resolver,
		submit:   submit,
		history:  history,
		sessions: sessions,
		logger:   logger,
	}
}

// cavitySpecDTO 前端消費的模穴規格格式
type cavitySpecDTO struct {
	Label     string   `json:"label"`
	Suffix    string   `json:"suffix"`
	StdWeight *float64 `json:"std_weight"`
	WeightMin *float64 `json:"weight_min"`
	WeightMax *float64 `json:"weight_max"`
	StdLength *float64 `json:"std_length"`
	LengthMin *float64 `json:"length_min"`
	LengthMax *float64 `json:"length_max"`
}

type resolvedSpecDTO struct {
	Model            string          `json:"model"`
	PartNo           string          `json:"part_no"`
	PartName         string          `json:"part_name"`
	MaterialID       string          `json:"material_id"`
	MaterialName     string          `json:"material_name"`
	KeyControlPoints []string        `json:"key_control_points"`
	ProductImage     string          `json:"product_image,omitempty"`
	DefectImages     []string        `json:"defect_images,omitempty"`
	IsDual           bool            `json:"is_dual"`
	HasLength        bool            `json:"has_length"`
	Cavities         []cavitySpecDTO `json:"cavities"`
}

func toSpecDTO(spec domain.ResolvedSpec) resolvedSpecDTO {
	dto := resolvedSpecDTO{
		Model:            spec.Model,
		PartNo:           spec.PartNo,
		PartName:         spec.PartName,
		MaterialID:       spec.MaterialID,
		MaterialName:     spec.MaterialName,
		KeyControlPoints: spec.KeyControlPoints,
		ProductImage:     spec.ProductImage,
		DefectImages:     spec.DefectImages,
		IsDual:           spec.IsDual(),
		HasLength:        spec.HasLength(),
	}
	for _, c := range spec.Cavities {
		dto.Cavities = append(dto.Cavities, cavitySpecDTO{
			Label:     c.Label,
			Suffix:    c.Suffix,
			StdWeight: c.StdWeight,
			WeightMin: c.WeightMin,
			WeightMax: c.WeightMax,
			StdLength: c.StdLength,
			LengthMin: c.LengthMin,
			LengthMax: c.LengthMax,
		})
	}
	return dto
}

// GetModels 取車型清單
// GET /inspect/api/v1/models
func (h *InspectionHandler) GetModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.parts.Models()
	if err != nil {
		h.logger.Error("GetModels failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(models))
}

// GetParts 取某車型下的品番清單
// GET /inspect/api/v1/parts?model=CX-5
func (h *InspectionHandler) GetParts(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	parts, err := h.parts.PartsForModel(model)
	if err != nil {
		h.logger.Error("GetParts failed", zap.String("model", model), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	items := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		items = append(items, map[string]any{
			"part_no":   p.PartNo,
			"part_name": p.PartName,
			"model":     p.Model,
		})
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// GetSpec 取品番解析後的規格（1 或 2 模穴）
// GET /inspect/api/v1/parts/{part_no}/spec
func (h *InspectionHandler) GetSpec(w http.ResponseWriter, r *http.Request, partNo string) {
	part, found, err := h.parts.Find(partNo)
	if err != nil {
		h.logger.Error("GetSpec failed", zap.String("part_no", partNo), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, Fail("part not found: "+partNo))
		return
	}
	writeJSON(w, http.StatusOK, Ok(toSpecDTO(h.resolver.Resolve(part))))
}

// RefreshParts 強制重讀品番主檔
// POST /inspect/api/v1/parts/refresh
func (h *InspectionHandler) RefreshParts(w http.ResponseWriter, r *http.Request) {
	parts, err := h.parts.Refresh()
	if err != nil {
		h.logger.Error("RefreshParts failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"parts": len(parts)}))
}

// submitRequest 提交 payload
type submitRequest struct {
	PartNo         string `json:"part_no"`
	InspectionType string `json:"inspection_type"`
	Measurements   []struct {
		Weight float64 `json:"weight"`
		Length float64 `json:"length"`
	} `json:"measurements"`
	MaterialOK  bool   `json:"material_ok"`
	ChangePoint string `json:"change_point"`
	ActionTaken string `json:"action_taken"`
	QuickLog    bool   `json:"quick_log"`
	Photo       *struct {
		Filename string `json:"filename"`
		Base64   string `json:"base64"`
	} `json:"photo"`
}

// Submit 提交一次巡檢事件（1 或 2 模穴列）
// POST /inspect/api/v1/submissions
func (h *InspectionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	// 照片走 base64，放寬到 20MB
	if err := readBodyJSON(r, 20<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body: "+err.Error()))
		return
	}
	if req.PartNo == "" {
		writeJSON(w, http.StatusOK, Fail("part_no is required"))
		return
	}

	part, found, err := h.parts.Find(req.PartNo)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, Fail("part not found: "+req.PartNo))
		return
	}
	spec := h.resolver.Resolve(part)

	in := service.SubmissionInput{
		InspectionType: req.InspectionType,
		MaterialOK:     req.MaterialOK,
		ChangePoint:    req.ChangePoint,
		ActionTaken:    req.ActionTaken,
		QuickLog:       req.QuickLog,
	}
	for _, m := range req.Measurements {
		in.Measurements = append(in.Measurements, service.CavityMeasurement{Weight: m.Weight, Length: m.Length})
	}

	var photo *ledger.Photo
	if req.Photo != nil && req.Photo.Base64 != "" {
		photo = &ledger.Photo{Filename: req.Photo.Filename, Base64: req.Photo.Base64}
		if photo.Filename == "" {
			// 平板端沒給檔名時補一個，避免雲端資料夾撞名
			photo.Filename = fmt.Sprintf("%s_%s_%s.jpg", spec.Model, spec.PartNo, uuid.NewString()[:8])
		}
	}

	result, err := h.submit.Submit(r.Context(), spec, in, photo)
	if err != nil {
		h.logger.Warn("Submit failed",
			zap.String("part_no", req.PartNo),
			zap.Error(err),
		)
		// 部分失敗時仍回傳逐模穴結果，前端要顯示哪些列已入帳
		if result != nil {
			resp := Fail(err.Error())
			resp.Result = result
			writeJSON(w, http.StatusOK, resp)
			return
		}
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(result))
}

// GetHistory 取帳本品番（含後綴）的巡檢履歷與重量趨勢
// GET /inspect/api/v1/history?part_no=ABC-123-R&limit=50
func (h *InspectionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	partNo := r.URL.Query().Get("part_no")
	if partNo == "" {
		writeJSON(w, http.StatusOK, Fail("part_no is required"))
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 0)

	history, err := h.history.History(r.Context(), partNo, limit)
	if err != nil {
		h.logger.Error("GetHistory failed", zap.String("part_no", partNo), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(history))
}

// StartSession 建立操作端 session
// POST /inspect/api/v1/sessions
func (h *InspectionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.sessions.Start()))
}

// SelectPart 更新 session 的車型/品番選取
// POST /inspect/api/v1/sessions/{id}/select
func (h *InspectionHandler) SelectPart(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		Model  string `json:"model"`
		PartNo string `json:"part_no"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body: "+err.Error()))
		return
	}

	s, ok := h.sessions.Select(sessionID, req.Model, req.PartNo)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("session not found or expired"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

// extractPathSegment 取 prefix 後的第一段路徑
func extractPathSegment(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
