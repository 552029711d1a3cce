package domain

// PartMaster 品番主檔（part master）一行：一個實體品番
// 數值欄位保留原始字串（顯示用），解析交給 specparse
type PartMaster struct {
	Model    string // 車型
	PartNo   string // 品番
	PartName string // 品名

	// 公差原始文字欄位（可能含單位、±、雙模 "A/B" 寫法）
	RawStdWeight string // 標準重量(g)
	RawWeightMax string // 重量上限(g)
	RawWeightMin string // 重量下限(g)
	RawStdLength string // 標準長度(mm)
	RawLengthMax string // 長度上限(mm)
	RawLengthMin string // 長度下限(mm)

	MaterialID   string // 原料編號
	MaterialName string // 原料名稱

	// 重點管理項目（自由文字，最多數條）
	KeyControlPoints []string

	ProductImage string   // 成品寫真
	DefectImages []string // 異常履歷寫真 1~3

	// CavityOverride 模穴標記：明確指定雙模的覆寫 token（如 "R/L"、"#1/#2"）
	// 空字串 = 依標準重量欄位自動推斷
	CavityOverride string
}

// CavitySpec 單一模穴解析後的數值公差
// 指標為 nil 代表該值不存在（資料品質問題降級為「無法判定」，不是錯誤）
type CavitySpec struct {
	// Suffix 帳本品番後綴（如 "-R"、"-1"），單模為空字串
	Suffix string
	// Label 顯示用模穴標籤（如 "R"、"#1"），單模為空字串
	Label string

	StdWeight *float64
	WeightMin *float64
	WeightMax *float64

	StdLength *float64
	LengthMin *float64
	LengthMax *float64
}

// ResolvedSpec 一個品番的完整解析結果：1 或 2 個 CavitySpec
// 下游一律走 Cavities 迴圈，不再分支判斷單/雙模
type ResolvedSpec struct {
	Model    string
	PartNo   string
	PartName string

	MaterialID   string
	MaterialName string

	KeyControlPoints []string
	ProductImage     string
	DefectImages     []string

	// Cavities 長度恆為 1 或 2
	Cavities []CavitySpec
}

// IsDual 是否雙模
func (s *ResolvedSpec) IsDual() bool {
	return len(s.Cavities) == 2
}

// HasLength 任一模穴有標準長度（>0）時，前端才顯示長度輸入
func (s *ResolvedSpec) HasLength() bool {
	for _, c := range s.Cavities {
		if c.StdLength != nil && *c.StdLength > 0 {
			return true
		}
	}
	return false
}

// LedgerPartNo 模穴在帳本上的完整品番（基底品番 + 後綴）
func (s *ResolvedSpec) LedgerPartNo(cavity CavitySpec) string {
	return s.PartNo + cavity.Suffix
}
