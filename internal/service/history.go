package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ruiquan-inspection/internal/domain"
	"ruiquan-inspection/internal/ledger"
	"ruiquan-inspection/internal/store"

	"go.uber.org/zap"
)

// TrendPoint 重量趨勢圖的一個點；無法數值化的列不產點
type TrendPoint struct {
	Timestamp string  `json:"timestamp"`
	Weight    float64 `json:"weight"`
	Result    string  `json:"result"`
}

// PartHistory 單一品番（含模穴後綴）的巡檢履歷
type PartHistory struct {
	PartNo  string                    `json:"part_no"`
	Records []domain.InspectionRecord `json:"records"`
	Trend   []TrendPoint              `json:"trend"`
}

// HistoryService 品番履歷查詢：帳本逐品番查詢 + 短效快取 + 趨勢整形
type HistoryService struct {
	ledger   ledger.Client
	kv       store.KV
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewHistoryService(lc ledger.Client, kv store.KV, cacheTTL time.Duration, logger *zap.Logger) *HistoryService {
	if cacheTTL <= 0 {
		cacheTTL = 3 * time.Minute
	}
	return &HistoryService{ledger: lc, kv: kv, cacheTTL: cacheTTL, logger: logger}
}

// History 取單一帳本品番的履歷（limit ≤ 0 代表不截斷）
// 帳本回的是舊到新；趨勢沿用同序，清單反轉成新到舊
func (s *HistoryService) History(ctx context.Context, partNo string, limit int) (*PartHistory, error) {
	if partNo == "" {
		return nil, fmt.Errorf("part_no is required")
	}

	records, err := s.fetch(ctx, partNo)
	if err != nil {
		return nil, err
	}

	trend := make([]TrendPoint, 0, len(records))
	for _, rec := range records {
		w, err := strconv.ParseFloat(rec.Weight, 64)
		if err != nil || w <= 0 {
			continue
		}
		trend = append(trend, TrendPoint{Timestamp: rec.Timestamp, Weight: w, Result: rec.Result})
	}

	// 新到舊
	reversed := make([]domain.InspectionRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		reversed = append(reversed, records[i])
	}
	if limit > 0 && len(reversed) > limit {
		reversed = reversed[:limit]
	}

	return &PartHistory{PartNo: partNo, Records: reversed, Trend: trend}, nil
}

func (s *HistoryService) fetch(ctx context.Context, partNo string) ([]domain.InspectionRecord, error) {
	cacheKey := historyCacheKey(partNo)

	if s.kv != nil {
		if raw, err := s.kv.Get(ctx, cacheKey); err == nil {
			var records []domain.InspectionRecord
			if err := json.Unmarshal([]byte(raw), &records); err == nil {
				return records, nil
			}
			s.logger.Warn("corrupt history cache, refetching", zap.String("part_no", partNo))
		} else if err != store.ErrMiss {
			s.logger.Warn("history cache read failed", zap.Error(err))
		}
	}

	records, err := s.ledger.FetchHistory(ctx, partNo)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", partNo, err)
	}

	if s.kv != nil {
		if raw, err := json.Marshal(records); err == nil {
			if err := s.kv.Set(ctx, cacheKey, string(raw), s.cacheTTL); err != nil {
				s.logger.Warn("history cache write failed", zap.Error(err))
			}
		}
	}
	return records, nil
}
