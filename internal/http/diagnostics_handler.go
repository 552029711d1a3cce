package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// pinger 外部帳本連通性檢查
type pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker MQTT broker 連線狀態（選配，main 注入）
type ConnChecker interface {
	IsConnected() bool
}

// DiagnosticsHandler 依賴健康狀態：帳本、品番主檔、Andon broker
// 現場排障用——平板上只會看到「送出失敗」，這裡能看出斷在哪一層
type DiagnosticsHandler struct {
	ledger pinger
	parts  partSource
	andon  ConnChecker // nil = 未啟用
	logger *zap.Logger
}

func NewDiagnosticsHandler(ledger pinger, parts partSource, andon ConnChecker, logger *zap.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{ledger: ledger, parts: parts, andon: andon, logger: logger}
}

// GetDiagnostics 逐依賴回報狀態
// GET /inspect/api/v1/diagnostics
func (h *DiagnosticsHandler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	result := map[string]any{}

	if err := h.ledger.Ping(ctx); err != nil {
		result["ledger"] = map[string]any{"ok": false, "error": err.Error()}
	} else {
		result["ledger"] = map[string]any{"ok": true}
	}

	if parts, err := h.parts.Models(); err != nil {
		result["part_master"] = map[string]any{"ok": false, "error": err.Error()}
	} else {
		result["part_master"] = map[string]any{"ok": true, "models": len(parts)}
	}

	if h.andon == nil {
		result["andon"] = map[string]any{"ok": true, "enabled": false}
	} else {
		result["andon"] = map[string]any{"ok": h.andon.IsConnected(), "enabled": true}
	}

	writeJSON(w, http.StatusOK, Ok(result))
}
