package domain

import "strings"

// 審核狀態 token（與帳本儲存字串一致，比對用字串本身）
const (
	StatusUnreviewed = "未審核"
	StatusInReview   = "審核中"
	StatusClosed     = "結案"
	StatusNoIssue    = "無異常"

	// StatusClosedLegacy 舊版英文 token，過濾時視同結案
	StatusClosedLegacy = "Closed"
)

// 判定結果 token
const (
	ResultOK = "OK"
	ResultNG = "NG"
	// ResultCP 快速記錄（只登記變化點、不做量測判定）的哨兵值
	ResultCP = "CP"
)

// 巡檢階段 token
const (
	InspectionFirst  = "首件"
	InspectionMiddle = "中件"
	InspectionLast   = "末件"
)

// ValidInspectionType 巡檢階段是否合法
func ValidInspectionType(t string) bool {
	switch t {
	case InspectionFirst, InspectionMiddle, InspectionLast:
		return true
	}
	return false
}

// IsTerminalStatus 結案/無異常（含舊版 "Closed"）視為終態
func IsTerminalStatus(status string) bool {
	switch strings.TrimSpace(status) {
	case StatusClosed, StatusNoIssue, StatusClosedLegacy:
		return true
	}
	return false
}

// CanTransition 審核狀態機的合法轉移：
// 未審核 → 審核中 / 結案 / 無異常（允許跳過審核中）
// 審核中 → 結案 / 無異常
// 終態不可再轉移；所有轉移皆由管理者觸發，無時間觸發
func CanTransition(from, to string) bool {
	if IsTerminalStatus(from) {
		return false
	}
	switch from {
	case StatusUnreviewed, "":
		return to == StatusInReview || to == StatusClosed || to == StatusNoIssue
	case StatusInReview:
		return to == StatusClosed || to == StatusNoIssue
	}
	return false
}

// InspectionRecord 帳本上的一列：一次提交事件的一個模穴
// Timestamp 必須保留帳本回傳的原始字串，後續 update 走字串比對
type InspectionRecord struct {
	Timestamp      string `json:"timestamp"`
	Model          string `json:"model"`
	PartNo         string `json:"part_no"` // 基底品番 + 模穴後綴
	PartName       string `json:"part_name"`
	InspectionType string `json:"inspection_type"`
	Weight         string `json:"weight"` // 帳本為字串欄位，數值解析在使用端
	Length         string `json:"length"`
	MaterialOK     string `json:"material_ok"`
	ChangePoint    string `json:"change_point"`
	ActionTaken    string `json:"action_taken"`
	Status         string `json:"status"`
	ManagerComment string `json:"manager_comment"`
	Result         string `json:"result"`
	Image          string `json:"image"`
}

// NormalizeRecord 攝取邊界的正規化：外部帳本回來的列可能缺欄位
// （手動插入的舊資料），這裡補預設值，讓內部邏輯假設欄位齊全
func NormalizeRecord(rec InspectionRecord) InspectionRecord {
	if strings.TrimSpace(rec.Status) == "" {
		rec.Status = StatusUnreviewed
	}
	rec.ManagerComment = strings.TrimSpace(rec.ManagerComment)
	rec.ChangePoint = strings.TrimSpace(rec.ChangePoint)
	return rec
}

// cavitySuffixes 已知的模穴後綴（與 specparse 的標籤約定一致）
var cavitySuffixes = []string{"-R", "-L", "-1", "-2"}

// BasePartNo 去掉模穴後綴的基底品番：批次更新以「同一時間戳 + 同基底品番」為鍵
func BasePartNo(partNo string) string {
	for _, suf := range cavitySuffixes {
		if strings.HasSuffix(partNo, suf) {
			return strings.TrimSuffix(partNo, suf)
		}
	}
	return partNo
}
