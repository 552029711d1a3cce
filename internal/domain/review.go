package domain

// ChangePointEvent 變化點事件：同一 (timestamp, change_point) 的列聚合成一張卡
// 每次查詢時物化，不落地；身分就是鍵本身，所以任何異動都得回寫到
// 每一個成員列（批次更新）
type ChangePointEvent struct {
	// Timestamp 帳本原始時間戳字串（勿重排格式，update 依字串比對）
	Timestamp   string `json:"timestamp"`
	ChangePoint string `json:"change_point"`

	Model      string `json:"model"`
	BasePartNo string `json:"base_part_no"`
	PartName   string `json:"part_name"`

	// Status/ManagerComment 取代表列（第一個成員）的值
	Status         string `json:"status"`
	ManagerComment string `json:"manager_comment"`
	ActionTaken    string `json:"action_taken"`
	Result         string `json:"result"`
	Image          string `json:"image"`

	// CavityCount 貢獻列數；>1 時前端顯示模穴數註記
	CavityCount int `json:"cavity_count"`

	// Members 組成此事件的原始列（代表列在前）
	Members []InspectionRecord `json:"members"`
}

// Representative 代表列：批次更新的目標起點
func (e *ChangePointEvent) Representative() InspectionRecord {
	if len(e.Members) == 0 {
		return InspectionRecord{}
	}
	return e.Members[0]
}

// IsTerminal 事件是否已結案（結案/無異常/舊版 Closed）
func (e *ChangePointEvent) IsTerminal() bool {
	return IsTerminalStatus(e.Status)
}
