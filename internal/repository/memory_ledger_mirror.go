package repository

import (
	"context"
	"fmt"
	"sync"

	"ruiquan-inspection/internal/domain"
)

// MemoryLedgerMirrorRepository 記憶體鏡像（未配置 DB 時使用，重啟即失）
type MemoryLedgerMirrorRepository struct {
	mu   sync.RWMutex
	rows []domain.InspectionRecord
}

func NewMemoryLedgerMirrorRepository() *MemoryLedgerMirrorRepository {
	return &MemoryLedgerMirrorRepository{}
}

var _ LedgerMirrorRepository = (*MemoryLedgerMirrorRepository)(nil)

func (r *MemoryLedgerMirrorRepository) SaveRow(ctx context.Context, row domain.InspectionRecord) error {
	if row.Timestamp == "" || row.PartNo == "" {
		return fmt.Errorf("timestamp and part_no are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.rows {
		if existing.Timestamp == row.Timestamp && existing.PartNo == row.PartNo {
			r.rows[i] = row
			return nil
		}
	}
	r.rows = append(r.rows, row)
	return nil
}

func (r *MemoryLedgerMirrorRepository) MarkStatus(ctx context.Context, timestamp, partNo, status, managerComment string, applyFamily bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := domain.BasePartNo(partNo)
	var affected int64
	for i := range r.rows {
		if r.rows[i].Timestamp != timestamp {
			continue
		}
		match := r.rows[i].PartNo == partNo
		if applyFamily {
			match = domain.BasePartNo(r.rows[i].PartNo) == base
		}
		if match {
			r.rows[i].Status = status
			r.rows[i].ManagerComment = managerComment
			affected++
		}
	}
	return affected, nil
}

func (r *MemoryLedgerMirrorRepository) ListRows(ctx context.Context, filters MirrorFilters, page, size int) ([]*domain.InspectionRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.InspectionRecord, 0, len(r.rows))
	// 新到舊
	for i := len(r.rows) - 1; i >= 0; i-- {
		rec := r.rows[i]
		if filters.Model != "" && rec.Model != filters.Model {
			continue
		}
		if filters.PartNo != "" && rec.PartNo != filters.PartNo {
			continue
		}
		matched = append(matched, &rec)
	}

	total := len(matched)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	start := (page - 1) * size
	if start >= total {
		return []*domain.InspectionRecord{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
