package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ruiquan-inspection/internal/domain"
	"ruiquan-inspection/internal/ledger"
	"ruiquan-inspection/internal/repository"
	"ruiquan-inspection/internal/store"

	"go.uber.org/zap"
)

// ledgerTimestampLayout 提交時寫入帳本的時間戳格式
// 寫入後以帳本回傳的原始字串為準，本端不再重排
const ledgerTimestampLayout = "2006-01-02 15:04:05"

// AndonNotifier NG / 變化點提交時對現場廣播（選配，MQTT 實作）
type AndonNotifier interface {
	NotifySubmission(ctx context.Context, rec domain.InspectionRecord)
}

// CavityOutcome 單一模穴列的寫入結果
type CavityOutcome struct {
	PartNo    string `json:"part_no"` // 含模穴後綴
	Persisted bool   `json:"persisted"`
	Error     string `json:"error,omitempty"`
}

// SubmissionResult 一次提交事件的總結果
type SubmissionResult struct {
	// Timestamp 本次事件共用的時間戳（所有模穴列逐字相同，
	// 是審核引擎日後的分組鍵）
	Timestamp string          `json:"timestamp"`
	ImageURL  string          `json:"image_url,omitempty"`
	Outcomes  []CavityOutcome `json:"outcomes"`
	// Succeeded success_count == cavity_count 才算整體成功
	Succeeded bool `json:"succeeded"`
}

// SubmissionCoordinator 驅動多模穴寫入序列：一次巡檢事件 → N 帳本列、
// 一張共用照片
type SubmissionCoordinator struct {
	ledger   ledger.Client
	kv       store.KV
	notifier AndonNotifier
	// mirror 選配：入帳成功後 best-effort 落本地快照
	mirror repository.LedgerMirrorRepository
	logger *zap.Logger
	// now 可注入，測試固定時鐘；一次提交只取一次時間
	now func() time.Time
}

func NewSubmissionCoordinator(lc ledger.Client, kv store.KV, notifier AndonNotifier, logger *zap.Logger) *SubmissionCoordinator {
	return &SubmissionCoordinator{
		ledger:   lc,
		kv:       kv,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMirror 啟用帳本鏡像（DB 配置存在時由 main 注入）
func (c *SubmissionCoordinator) WithMirror(m repository.LedgerMirrorRepository) *SubmissionCoordinator {
	c.mirror = m
	return c
}

// Submit 提交一次巡檢事件
//
// 模穴依 spec 順序寫入；照片只隨第一個模穴上傳，後續模穴列
// 共用回傳的影像參照（不重傳、也不可默默丟掉參照）。各模穴
// append 彼此獨立：混合結果回報部分失敗並指名失敗模穴的品番，
// 已成功的列絕不自動重送——重試是使用者明確的動作。
func (c *SubmissionCoordinator) Submit(ctx context.Context, spec domain.ResolvedSpec, in SubmissionInput, photo *ledger.Photo) (*SubmissionResult, error) {
	if err := CheckPreconditions(spec, in); err != nil {
		return nil, err
	}

	// 時鐘只讀一次：同事件所有列共用同一時間戳字串
	ts := c.now().Format(ledgerTimestampLayout)

	result := &SubmissionResult{
		Timestamp: ts,
		Outcomes:  make([]CavityOutcome, 0, len(spec.Cavities)),
	}

	successCount := 0
	var failedParts []string

	for i, cavity := range spec.Cavities {
		var m CavityMeasurement
		if i < len(in.Measurements) {
			m = in.Measurements[i]
		}

		row := c.buildRow(spec, cavity, in, m, ts)
		if i > 0 {
			// 共用第一列上傳後的影像參照
			row.Image = result.ImageURL
		}

		var rowPhoto *ledger.Photo
		if i == 0 {
			rowPhoto = photo
		}

		imageURL, err := c.ledger.Append(ctx, row, rowPhoto)
		outcome := CavityOutcome{PartNo: row.PartNo}
		if err != nil {
			outcome.Error = err.Error()
			failedParts = append(failedParts, row.PartNo)
			c.logger.Error("cavity append failed",
				zap.String("part_no", row.PartNo),
				zap.String("timestamp", ts),
				zap.Error(err),
			)
		} else {
			outcome.Persisted = true
			successCount++
			if i == 0 && imageURL != "" {
				result.ImageURL = imageURL
			}
			if c.mirror != nil {
				row.Image = imageURL
				if err := c.mirror.SaveRow(ctx, row); err != nil {
					// 鏡像失敗不影響提交：帳本才是唯一事實
					c.logger.Warn("mirror save failed", zap.String("part_no", row.PartNo), zap.Error(err))
				}
			}
			c.notify(ctx, row)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Succeeded = successCount == len(spec.Cavities)

	if successCount > 0 {
		c.invalidateCache(ctx, spec, result)
	}

	if !result.Succeeded {
		if successCount == 0 {
			return result, fmt.Errorf("submission failed for %s", strings.Join(failedParts, ", "))
		}
		// 部分失敗：指名失敗模穴；成功列已入帳，不得自動重送
		return result, fmt.Errorf("partial failure: %s not persisted (%d/%d rows appended, persisted rows will not be retried)",
			strings.Join(failedParts, ", "), successCount, len(spec.Cavities))
	}

	c.logger.Info("inspection submitted",
		zap.String("part_no", spec.PartNo),
		zap.String("timestamp", ts),
		zap.Int("cavities", len(spec.Cavities)),
	)
	return result, nil
}

func (c *SubmissionCoordinator) buildRow(spec domain.ResolvedSpec, cavity domain.CavitySpec, in SubmissionInput, m CavityMeasurement, ts string) domain.InspectionRecord {
	// 快速記錄不經過原料確認，欄位留白
	materialOK := ""
	if !in.QuickLog {
		materialOK = "NG"
		if in.MaterialOK {
			materialOK = "OK"
		}
	}

	weight := ""
	length := ""
	if !in.QuickLog {
		if m.Weight > 0 {
			weight = strconv.FormatFloat(m.Weight, 'f', -1, 64)
		}
		if m.Length > 0 {
			length = strconv.FormatFloat(m.Length, 'f', -1, 64)
		}
	}

	return domain.InspectionRecord{
		Timestamp:      ts,
		Model:          spec.Model,
		PartNo:         spec.LedgerPartNo(cavity),
		PartName:       spec.PartName,
		InspectionType: in.InspectionType,
		Weight:         weight,
		Length:         length,
		MaterialOK:     materialOK,
		ChangePoint:    in.ChangePoint,
		ActionTaken:    in.ActionTaken,
		Status:         domain.StatusUnreviewed,
		Result:         ResultFor(cavity, m, in.QuickLog),
	}
}

func (c *SubmissionCoordinator) notify(ctx context.Context, row domain.InspectionRecord) {
	if c.notifier == nil {
		return
	}
	if row.Result == domain.ResultNG || row.ChangePoint != "" {
		c.notifier.NotifySubmission(ctx, row)
	}
}

// invalidateCache 寫入成功後立即讓帳本讀取快取失效
func (c *SubmissionCoordinator) invalidateCache(ctx context.Context, spec domain.ResolvedSpec, result *SubmissionResult) {
	if c.kv == nil {
		return
	}
	keys := []string{snapshotCacheKey}
	for _, o := range result.Outcomes {
		if o.Persisted {
			keys = append(keys, historyCacheKey(o.PartNo))
		}
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		c.logger.Warn("failed to invalidate ledger cache", zap.Error(err))
	}
}
