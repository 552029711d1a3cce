package repository

import (
	"context"
	"time"

	"ruiquan-inspection/internal/domain"
)

// MirrorFilters 本地鏡像查詢條件
type MirrorFilters struct {
	Model     string
	PartNo    string // 含模穴後綴，精確比對
	StartTime *time.Time
	EndTime   *time.Time
}

// LedgerMirrorRepository 帳本本地鏡像：外部帳本寫入成功後
// best-effort 落一份到本地 DB，供報表/追溯查詢（外部帳本仍是唯一事實）
type LedgerMirrorRepository interface {
	// SaveRow 寫入一列鏡像；同 (recorded_at, part_no) 已存在時覆寫
	SaveRow(ctx context.Context, row domain.InspectionRecord) error

	// MarkStatus 跟進帳本端的狀態更新（同一精確時間戳字串 + 品番）
	MarkStatus(ctx context.Context, timestamp, partNo, status, managerComment string, applyFamily bool) (int64, error)

	// ListRows 分頁查鏡像列，新到舊
	ListRows(ctx context.Context, filters MirrorFilters, page, size int) ([]*domain.InspectionRecord, int, error)
}
