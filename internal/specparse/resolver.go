package specparse

import (
	"strings"

	"ruiquan-inspection/internal/domain"

	"go.uber.org/zap"
)

// 模穴標記 token 集合：品番主檔上明確宣告雙模的覆寫字串
// R/L 系 → 標籤 R / L，帳本後綴 -R / -L（預設約定）
// #1/#2 系 → 標籤 #1 / #2，帳本後綴 -1 / -2
//
// 標籤與後綴約定對同一品番必須終身一致：改約定會讓舊後綴下的
// 歷史列變成孤兒（已接受的限制，不做靜默修正）
var (
	rlMarkers      = map[string]bool{"R/L": true, "RL": true, "雙模": true, "左右": true}
	numericMarkers = map[string]bool{"#1/#2": true, "#1#2": true, "1/2": true}
)

type cavityLabeling struct {
	labels   [2]string
	suffixes [2]string
}

var (
	rlLabeling      = cavityLabeling{labels: [2]string{"R", "L"}, suffixes: [2]string{"-R", "-L"}}
	numericLabeling = cavityLabeling{labels: [2]string{"#1", "#2"}, suffixes: [2]string{"-1", "-2"}}
)

// Resolver 把 PartMaster 原始列組裝成 ResolvedSpec
type Resolver struct {
	logger *zap.Logger
}

func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve 解析一個品番：回傳 1 或 2 個 CavitySpec
//
// 雙模推斷：(a) 標準重量解析為數對，或 (b) 品番主檔帶明確模穴標記。
// 只有 (b) 成立時，單值規格複製到兩個模穴（覆寫優先於隱含單值：
// 「模具確實是雙穴，只是有人填了一個共用值」）。
func (r *Resolver) Resolve(part domain.PartMaster) domain.ResolvedSpec {
	stdWeight := Parse(part.RawStdWeight)
	weightMin := Parse(part.RawWeightMin)
	weightMax := Parse(part.RawWeightMax)
	stdLength := Parse(part.RawStdLength)
	lengthMin := Parse(part.RawLengthMin)
	lengthMax := Parse(part.RawLengthMax)

	override := strings.TrimSpace(part.CavityOverride)
	dual := stdWeight.Dual() || override != ""

	labeling := rlLabeling
	if numericMarkers[override] {
		labeling = numericLabeling
	} else if override != "" && !rlMarkers[override] {
		// 不認得的標記：仍視為雙模宣告，採預設 R/L 約定
		r.logger.Warn("unrecognized cavity override marker, using R/L labeling",
			zap.String("part_no", part.PartNo),
			zap.String("marker", override),
		)
	}

	count := 1
	if dual {
		count = 2
	}

	cavities := make([]domain.CavitySpec, 0, count)
	for i := 0; i < count; i++ {
		c := domain.CavitySpec{
			StdWeight: stdWeight.At(i),
			WeightMin: weightMin.At(i),
			WeightMax: weightMax.At(i),
			StdLength: stdLength.At(i),
			LengthMin: lengthMin.At(i),
			LengthMax: lengthMax.At(i),
		}
		if dual {
			c.Label = labeling.labels[i]
			c.Suffix = labeling.suffixes[i]
		}
		r.warnInconsistent(part.PartNo, c)
		cavities = append(cavities, c)
	}

	return domain.ResolvedSpec{
		Model:            part.Model,
		PartNo:           part.PartNo,
		PartName:         part.PartName,
		MaterialID:       part.MaterialID,
		MaterialName:     part.MaterialName,
		KeyControlPoints: part.KeyControlPoints,
		ProductImage:     part.ProductImage,
		DefectImages:     part.DefectImages,
		Cavities:         cavities,
	}
}

// warnInconsistent min ≤ std ≤ max 不成立時記資料品質警告
// 規格不在建構時強制此不變量：主檔髒資料要降級，不能讓巡檢掛掉
func (r *Resolver) warnInconsistent(partNo string, c domain.CavitySpec) {
	if c.StdWeight == nil || c.WeightMin == nil || c.WeightMax == nil {
		return
	}
	if *c.WeightMin > *c.StdWeight || *c.StdWeight > *c.WeightMax {
		r.logger.Warn("weight spec inconsistent: min <= std <= max violated",
			zap.String("part_no", partNo),
			zap.String("cavity", c.Label),
			zap.Float64("std", *c.StdWeight),
			zap.Float64("min", *c.WeightMin),
			zap.Float64("max", *c.WeightMax),
		)
	}
}
