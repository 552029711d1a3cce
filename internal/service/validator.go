package service

import (
	"fmt"

	"ruiquan-inspection/internal/domain"
)

// Verdict 單一模穴的判定結果
// nil = 不適用（規格限值缺或尚未量測），不是不合格
type Verdict struct {
	WeightOK *bool `json:"weight_ok"`
	LengthOK *bool `json:"length_ok"`
}

// CavityMeasurement 一個模穴的實測值；0 代表「尚未量測」而非量到 0
type CavityMeasurement struct {
	Weight float64 `json:"weight"`
	Length float64 `json:"length"`
}

// SubmissionInput 一次提交事件的共用輸入
type SubmissionInput struct {
	InspectionType string
	// Measurements 依 spec.Cavities 順序對位
	Measurements []CavityMeasurement
	MaterialOK   bool
	ChangePoint  string
	ActionTaken  string
	// QuickLog 快速記錄模式：只登記變化點、跳過所有量測判定（result=CP）
	QuickLog bool
}

// PreconditionError 本地前置檢查未過：在任何外部呼叫前就擋下
type PreconditionError struct {
	Reason string
	// Cavity 涉及的模穴標籤（空字串 = 不分模穴）
	Cavity string
}

func (e *PreconditionError) Error() string {
	if e.Cavity != "" {
		return fmt.Sprintf("%s (模穴 %s)", e.Reason, e.Cavity)
	}
	return e.Reason
}

// Judge 以一個 CavitySpec 判定一組實測值
//
// 只有 min 與 max 同時存在、且實測 > 0 時才做判定；判定為
// min ≤ m ≤ max（兩端含）。其餘情況回 nil（不適用）——
// 缺限值是資料品質問題、量測 0 是「還沒量」，都不能變成不合格。
func Judge(spec domain.CavitySpec, m CavityMeasurement) Verdict {
	return Verdict{
		WeightOK: judgeDimension(spec.WeightMin, spec.WeightMax, m.Weight),
		LengthOK: judgeDimension(spec.LengthMin, spec.LengthMax, m.Length),
	}
}

func judgeDimension(min, max *float64, measured float64) *bool {
	if min == nil || max == nil || measured <= 0 {
		return nil
	}
	ok := *min <= measured && measured <= *max
	return &ok
}

// ResultFor 單一模穴的結果 token：CP（快速記錄）/ NG（任一判定不合格）/ OK
func ResultFor(spec domain.CavitySpec, m CavityMeasurement, quickLog bool) string {
	if quickLog {
		return domain.ResultCP
	}
	v := Judge(spec, m)
	if (v.WeightOK != nil && !*v.WeightOK) || (v.LengthOK != nil && !*v.LengthOK) {
		return domain.ResultNG
	}
	return domain.ResultOK
}

// CheckPreconditions 提交前的本地檢查；回傳第一個未滿足的條件
//
// 回報順序配合現場流程：缺重量優先於原料未確認（先把輸入補齊
// 再回頭勾原料）。長度永遠選填。快速記錄模式跳過量測/原料檢查，
// 但變化點說明不可為空。
func CheckPreconditions(spec domain.ResolvedSpec, in SubmissionInput) error {
	if !domain.ValidInspectionType(in.InspectionType) && !in.QuickLog {
		return &PreconditionError{Reason: fmt.Sprintf("無效的巡檢階段: %q", in.InspectionType)}
	}

	if in.QuickLog {
		if in.ChangePoint == "" {
			return &PreconditionError{Reason: "快速記錄需填寫變化點說明"}
		}
		return nil
	}

	if len(in.Measurements) < len(spec.Cavities) {
		return &PreconditionError{Reason: "量測值數量與模穴數不符"}
	}
	for i, cavity := range spec.Cavities {
		if in.Measurements[i].Weight <= 0 {
			return &PreconditionError{Reason: "請輸入重量", Cavity: cavity.Label}
		}
	}
	if !in.MaterialOK {
		return &PreconditionError{Reason: "請確認原料正確"}
	}
	return nil
}
