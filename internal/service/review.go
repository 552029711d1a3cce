package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ruiquan-inspection/internal/domain"
	"ruiquan-inspection/internal/ledger"
	"ruiquan-inspection/internal/repository"
	"ruiquan-inspection/internal/store"

	"go.uber.org/zap"
)

const snapshotCacheKey = "ledger:snapshot"

func historyCacheKey(partNo string) string {
	return "ledger:history:" + partNo
}

// reviewTimestampLayout 寬鬆時間戳解析：非補零的月/日/時也能讀
// 只用於日期區間過濾；分組與回寫一律用原始字串
const reviewTimestampLayout = "2006-1-2 15:4:5"

// EventFilter 審核清單過濾條件（全部 AND 結合）
type EventFilter struct {
	From  time.Time
	To    time.Time
	Model string
	// PartNo 以基底品番比對（不含模穴後綴）
	PartNo string
	// ShowAll 為假時隱藏已結案/無異常事件（預設視圖）
	ShowAll bool
}

// UpdateEventRequest 管理者對一個事件的編輯
type UpdateEventRequest struct {
	// Timestamp 事件代表列的帳本原始時間戳字串（逐字）
	Timestamp string
	// PartNo 代表列品番（含後綴）
	PartNo         string
	NewStatus      string
	ManagerComment string
	// ChangePoint 非 nil 時一併修訂變化點內容
	ChangePoint *string
	// ApplyBatch 套用到同時間戳、同品番家族的所有列
	ApplyBatch bool
}

// ReviewEngine 變化點審核引擎：分組去重、狀態機、批次更新
type ReviewEngine struct {
	ledger   ledger.Client
	kv       store.KV
	cacheTTL time.Duration
	// mirror 選配：審核結果跟進到本地快照
	mirror repository.LedgerMirrorRepository
	logger *zap.Logger
}

func NewReviewEngine(lc ledger.Client, kv store.KV, cacheTTL time.Duration, logger *zap.Logger) *ReviewEngine {
	if cacheTTL <= 0 {
		cacheTTL = 3 * time.Minute
	}
	return &ReviewEngine{ledger: lc, kv: kv, cacheTTL: cacheTTL, logger: logger}
}

// WithMirror 啟用帳本鏡像跟進
func (e *ReviewEngine) WithMirror(m repository.LedgerMirrorRepository) *ReviewEngine {
	e.mirror = m
	return e
}

// GroupEvents 把帳本列聚合成變化點事件
//
// 鍵是 (timestamp, change_point) 的精確組合：同一次實體巡檢事件的
// 多個模穴列共用同一時間戳與變化點文字，收成一張卡。沒有變化點
// 文字的列不構成事件。兩個真實事件恰好撞鍵時會被併成一張
// （已知限制，不在此處解決）。
func GroupEvents(records []domain.InspectionRecord) []domain.ChangePointEvent {
	type key struct{ ts, cp string }

	order := make([]key, 0, len(records))
	groups := make(map[key]*domain.ChangePointEvent)

	for _, rec := range records {
		rec = domain.NormalizeRecord(rec)
		if rec.ChangePoint == "" {
			continue
		}
		k := key{ts: rec.Timestamp, cp: rec.ChangePoint}
		ev, ok := groups[k]
		if !ok {
			ev = &domain.ChangePointEvent{
				Timestamp:      rec.Timestamp,
				ChangePoint:    rec.ChangePoint,
				Model:          rec.Model,
				BasePartNo:     domain.BasePartNo(rec.PartNo),
				PartName:       rec.PartName,
				Status:         rec.Status,
				ManagerComment: rec.ManagerComment,
				ActionTaken:    rec.ActionTaken,
				Result:         rec.Result,
				Image:          rec.Image,
			}
			groups[k] = ev
			order = append(order, k)
		}
		ev.Members = append(ev.Members, rec)
		ev.CavityCount = len(ev.Members)
		// 任一成員有影像/結果就補到卡上
		if ev.Image == "" && rec.Image != "" {
			ev.Image = rec.Image
		}
		if ev.Result != domain.ResultNG && rec.Result == domain.ResultNG {
			ev.Result = domain.ResultNG
		}
	}

	events := make([]domain.ChangePointEvent, 0, len(order))
	for _, k := range order {
		events = append(events, *groups[k])
	}

	// 新事件在前；解析不了的時間戳退回字串比較
	sort.SliceStable(events, func(i, j int) bool {
		ti, erri := time.Parse(reviewTimestampLayout, events[i].Timestamp)
		tj, errj := time.Parse(reviewTimestampLayout, events[j].Timestamp)
		if erri == nil && errj == nil {
			return ti.After(tj)
		}
		return events[i].Timestamp > events[j].Timestamp
	})
	return events
}

// Events 取過濾後的事件卡清單
func (e *ReviewEngine) Events(ctx context.Context, filter EventFilter) ([]domain.ChangePointEvent, error) {
	records, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	events := GroupEvents(records)
	out := make([]domain.ChangePointEvent, 0, len(events))
	for _, ev := range events {
		if !filter.ShowAll && ev.IsTerminal() {
			continue
		}
		if filter.Model != "" && ev.Model != filter.Model {
			continue
		}
		if filter.PartNo != "" && ev.BasePartNo != filter.PartNo {
			continue
		}
		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(reviewTimestampLayout, ev.Timestamp)
			if err != nil {
				// 時間戳壞掉的列不因日期過濾消失
				out = append(out, ev)
				continue
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// BatchTargets 批次更新會波及的列：同一（原始）時間戳、同基底品番家族
// 不限變化點文字——同事件各模穴列的變化點一定相同，但家族裡的
// 無變化點列（同次提交的其他模穴）也要一起改
func BatchTargets(records []domain.InspectionRecord, timestamp, partNo string) []domain.InspectionRecord {
	base := domain.BasePartNo(partNo)
	out := make([]domain.InspectionRecord, 0, 2)
	for _, rec := range records {
		if rec.Timestamp == timestamp && domain.BasePartNo(rec.PartNo) == base {
			out = append(out, rec)
		}
	}
	return out
}

// UpdateEvent 管理者編輯：驗證狀態轉移合法性後回寫帳本
//
// 時間戳逐字傳遞（帳本端字串比對）；成功後立即失效快照快取。
// 併發管理者互踩是接受的競態（外部儲存 last-write-wins）。
func (e *ReviewEngine) UpdateEvent(ctx context.Context, req UpdateEventRequest) error {
	if req.Timestamp == "" || req.PartNo == "" {
		return fmt.Errorf("timestamp and part_no are required")
	}

	records, err := e.snapshot(ctx)
	if err != nil {
		return err
	}

	targets := BatchTargets(records, req.Timestamp, req.PartNo)
	if len(targets) == 0 {
		return fmt.Errorf("no ledger rows match timestamp %q part %q", req.Timestamp, req.PartNo)
	}

	current := targets[0].Status
	if req.NewStatus != current && !domain.CanTransition(current, req.NewStatus) {
		return fmt.Errorf("illegal status transition %q -> %q", current, req.NewStatus)
	}

	err = e.ledger.UpdateStatus(ctx, ledger.UpdateStatusRequest{
		Timestamp:      req.Timestamp,
		PartNo:         req.PartNo,
		Status:         req.NewStatus,
		ManagerComment: req.ManagerComment,
		ChangePoint:    req.ChangePoint,
		ApplyBatch:     req.ApplyBatch,
	})
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	if e.mirror != nil {
		if _, err := e.mirror.MarkStatus(ctx, req.Timestamp, req.PartNo, req.NewStatus, req.ManagerComment, req.ApplyBatch); err != nil {
			e.logger.Warn("mirror status follow-up failed", zap.Error(err))
		}
	}

	if e.kv != nil {
		keys := []string{snapshotCacheKey}
		for _, t := range targets {
			keys = append(keys, historyCacheKey(t.PartNo))
		}
		if err := e.kv.Del(ctx, keys...); err != nil {
			e.logger.Warn("failed to invalidate ledger cache after update", zap.Error(err))
		}
	}

	e.logger.Info("change-point event updated",
		zap.String("timestamp", req.Timestamp),
		zap.String("part_no", req.PartNo),
		zap.String("status", req.NewStatus),
		zap.Bool("apply_batch", req.ApplyBatch),
		zap.Int("local_targets", len(targets)),
	)
	return nil
}

// snapshot 取完整帳本快照（短效快取；寫入後由寫入方失效）
func (e *ReviewEngine) snapshot(ctx context.Context) ([]domain.InspectionRecord, error) {
	if e.kv != nil {
		if raw, err := e.kv.Get(ctx, snapshotCacheKey); err == nil {
			var records []domain.InspectionRecord
			if err := json.Unmarshal([]byte(raw), &records); err == nil {
				return records, nil
			}
			// 壞掉的快取當 miss 處理
			e.logger.Warn("corrupt snapshot cache, refetching")
		} else if err != store.ErrMiss {
			e.logger.Warn("snapshot cache read failed", zap.Error(err))
		}
	}

	records, err := e.ledger.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger snapshot: %w", err)
	}

	if e.kv != nil {
		if raw, err := json.Marshal(records); err == nil {
			if err := e.kv.Set(ctx, snapshotCacheKey, string(raw), e.cacheTTL); err != nil {
				e.logger.Warn("snapshot cache write failed", zap.Error(err))
			}
		}
	}
	return records, nil
}
