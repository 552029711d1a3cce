// Package ledger 外部帳本（GAS 式 web app）的 request/response 客戶端。
// 帳本是遠端 append-only 試算表：一列 = 一次提交事件的一個模穴。
//
// 硬性契約：update 在帳本端是「字串比對」時間戳，不是 datetime 比對。
// 呼叫端必須原封不動使用帳本回傳的 timestamp 字串，任何重排格式
// （例如補零）都會變成靜默 no-op。
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ruiquan-inspection/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client 外部帳本操作介面（§外部介面）
type Client interface {
	// Append 寫入一列；photo 非 nil 時一併上傳，回傳儲存後的影像 URL
	Append(ctx context.Context, row domain.InspectionRecord, photo *Photo) (string, error)
	// FetchHistory 取單一模穴品番（含後綴）的歷史列，依帳本順序
	FetchHistory(ctx context.Context, partNoWithSuffix string) ([]domain.InspectionRecord, error)
	// FetchAll 取完整帳本快照（審核引擎跨品番分組用）
	FetchAll(ctx context.Context) ([]domain.InspectionRecord, error)
	// UpdateStatus 更新審核狀態/評語/變化點內容；ApplyBatch 時擴及同時間戳的成批列
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) error
	// Ping 連線診斷
	Ping(ctx context.Context) error
}

// Photo 提交時隨附的照片（已由外層壓縮），base64 編碼
type Photo struct {
	Filename string
	Base64   string
}

// UpdateStatusRequest 審核更新請求
type UpdateStatusRequest struct {
	// Timestamp 帳本原始時間戳字串，逐字傳回（字串比對契約）
	Timestamp      string
	PartNo         string
	Status         string
	ManagerComment string
	// ChangePoint 非 nil 時一併改寫變化點內容
	ChangePoint *string
	// ApplyBatch 為真時帳本端會更新同時間戳的所有目標列
	ApplyBatch bool
}

// gasResponse GAS web app 的統一回應外殼
type gasResponse struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	ImageURL string          `json:"image_url"`
	Data     json.RawMessage `json:"data"`
}

// GASClient 透過 GAS web app 存取 Google Sheet 帳本
//
// 讀寫分兩個 resty client：讀取可重試；append 絕不自動重試——
// 成功列重送會在 append-only 帳本上產生重複列，重試必須是使用者
// 明確的動作（部分失敗語意見 SubmissionCoordinator）
type GASClient struct {
	readClient  *resty.Client
	writeClient *resty.Client
	folderID    string
	logger      *zap.Logger
}

var _ Client = (*GASClient)(nil)

// NewGASClient 建立帳本客戶端
// baseURL: GAS web app 的 exec URL；folderID: 照片上傳目的資料夾
func NewGASClient(baseURL, folderID string, timeout time.Duration, logger *zap.Logger) *GASClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	read := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	// 寫入不重試（見型別註解）
	write := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &GASClient{
		readClient:  read,
		writeClient: write,
		folderID:    folderID,
		logger:      logger,
	}
}

// Append 上傳一列（與照片）
func (c *GASClient) Append(ctx context.Context, row domain.InspectionRecord, photo *Photo) (string, error) {
	payload := map[string]any{
		"action":          "upload",
		"timestamp":       row.Timestamp,
		"model":           row.Model,
		"part_no":         row.PartNo,
		"part_name":       row.PartName,
		"inspection_type": row.InspectionType,
		"weight":          row.Weight,
		"length":          row.Length,
		"material_ok":     row.MaterialOK,
		"change_point":    row.ChangePoint,
		"action_taken":    row.ActionTaken,
		"status":          row.Status,
		"result":          row.Result,
		"folder_id":       c.folderID,
	}
	if photo != nil {
		payload["image_base64"] = photo.Base64
		payload["filename"] = photo.Filename
	} else if row.Image != "" {
		// 同一提交事件的後續模穴列：共用第一列已上傳的影像參照，不重傳
		payload["image_url"] = row.Image
	}

	var response gasResponse
	resp, err := c.writeClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&response).
		Post("")
	if err != nil {
		return "", fmt.Errorf("failed to call ledger append: %w", err)
	}
	if response.Status != "Success" {
		c.logger.Error("ledger append rejected",
			zap.String("part_no", row.PartNo),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", response.Message),
		)
		return "", fmt.Errorf("ledger append error: %s", response.Message)
	}

	return response.ImageURL, nil
}

// FetchHistory 取單一模穴品番的歷史列
func (c *GASClient) FetchHistory(ctx context.Context, partNoWithSuffix string) ([]domain.InspectionRecord, error) {
	payload := map[string]any{
		"action":  "get_history",
		"part_no": partNoWithSuffix,
	}
	records, err := c.fetchRecords(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", partNoWithSuffix, err)
	}
	return records, nil
}

// FetchAll 取完整帳本快照
func (c *GASClient) FetchAll(ctx context.Context) ([]domain.InspectionRecord, error) {
	payload := map[string]any{"action": "get_all_data"}
	records, err := c.fetchRecords(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger snapshot: %w", err)
	}
	return records, nil
}

func (c *GASClient) fetchRecords(ctx context.Context, payload map[string]any) ([]domain.InspectionRecord, error) {
	var response gasResponse
	_, err := c.readClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&response).
		Post("")
	if err != nil {
		return nil, err
	}
	if response.Status != "Success" {
		return nil, fmt.Errorf("ledger error: %s", response.Message)
	}

	var rows []domain.InspectionRecord
	if err := json.Unmarshal(response.Data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger rows: %w", err)
	}

	// 攝取邊界正規化：缺 status/comment 的舊列補預設值
	for i := range rows {
		rows[i] = domain.NormalizeRecord(rows[i])
	}
	return rows, nil
}

// UpdateStatus 審核更新（批次旗標由帳本端展開）
func (c *GASClient) UpdateStatus(ctx context.Context, req UpdateStatusRequest) error {
	payload := map[string]any{
		"action":          "update_status",
		"timestamp":       req.Timestamp,
		"part_no":         req.PartNo,
		"status":          req.Status,
		"manager_comment": req.ManagerComment,
		"apply_all":       req.ApplyBatch,
	}
	if req.ChangePoint != nil {
		payload["change_point"] = *req.ChangePoint
	}

	var response gasResponse
	_, err := c.writeClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&response).
		Post("")
	if err != nil {
		return fmt.Errorf("failed to call ledger update: %w", err)
	}
	if response.Status != "Success" {
		return fmt.Errorf("ledger update error: %s", response.Message)
	}

	c.logger.Info("ledger status updated",
		zap.String("timestamp", req.Timestamp),
		zap.String("part_no", req.PartNo),
		zap.String("status", req.Status),
		zap.Bool("apply_batch", req.ApplyBatch),
	)
	return nil
}

// Ping 連線診斷：打一次 get_all_data 之外最便宜的動作
// GAS 沒有專用健康端點，用 get_history 帶不存在品番驗證可達性
func (c *GASClient) Ping(ctx context.Context) error {
	payload := map[string]any{
		"action":  "get_history",
		"part_no": "__ping__",
	}
	var response gasResponse
	_, err := c.readClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&response).
		Post("")
	if err != nil {
		return fmt.Errorf("ledger unreachable: %w", err)
	}
	if response.Status != "Success" {
		return fmt.Errorf("ledger responded with error: %s", response.Message)
	}
	return nil
}
