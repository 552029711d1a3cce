package specparse

import (
	"testing"

	"ruiquan-inspection/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestResolver() *Resolver {
	return NewResolver(zap.NewNop())
}

// TestResolve_SingleCavity 單值重量、無模穴標記 → 恰好一個 CavitySpec，後綴空字串
func TestResolve_SingleCavity(t *testing.T) {
	part := domain.PartMaster{
		Model:        "CX-5",
		PartNo:       "XYZ-001",
		RawStdWeight: "2430g",
		RawWeightMin: "2380",
		RawWeightMax: "2480",
		RawStdLength: "120.5",
	}

	spec := newTestResolver().Resolve(part)
	require.Len(t, spec.Cavities, 1)
	require.False(t, spec.IsDual())

	c := spec.Cavities[0]
	require.Equal(t, "", c.Suffix)
	require.Equal(t, "", c.Label)
	require.Equal(t, 2430.0, *c.StdWeight)
	require.Equal(t, 2380.0, *c.WeightMin)
	require.Equal(t, 2480.0, *c.WeightMax)
	require.Equal(t, 120.5, *c.StdLength)
	require.Nil(t, c.LengthMin)
	require.Equal(t, "XYZ-001", spec.LedgerPartNo(c))
}

// TestResolve_DualFromWeightPair 重量為數對 → 兩個 CavitySpec，限值依位置取槽
// 規格場景：重量 "100/102"、下限 "95/97"、上限 "105/107"
func TestResolve_DualFromWeightPair(t *testing.T) {
	part := domain.PartMaster{
		PartNo:       "ABC-123",
		RawStdWeight: "100/102",
		RawWeightMin: "95/97",
		RawWeightMax: "105/107",
	}

	spec := newTestResolver().Resolve(part)
	require.Len(t, spec.Cavities, 2)
	require.True(t, spec.IsDual())

	c0, c1 := spec.Cavities[0], spec.Cavities[1]
	require.Equal(t, 100.0, *c0.StdWeight)
	require.Equal(t, 95.0, *c0.WeightMin)
	require.Equal(t, 105.0, *c0.WeightMax)
	require.Equal(t, 102.0, *c1.StdWeight)
	require.Equal(t, 97.0, *c1.WeightMin)
	require.Equal(t, 107.0, *c1.WeightMax)

	// 預設 R/L 標籤與後綴
	require.Equal(t, "R", c0.Label)
	require.Equal(t, "-R", c0.Suffix)
	require.Equal(t, "L", c1.Label)
	require.Equal(t, "-L", c1.Suffix)
	require.Equal(t, "ABC-123-R", spec.LedgerPartNo(c0))
	require.Equal(t, "ABC-123-L", spec.LedgerPartNo(c1))
}

// TestResolve_DualScalarLimits 重量為數對、限值為單值 → 兩穴共用同一限值
func TestResolve_DualScalarLimits(t *testing.T) {
	part := domain.PartMaster{
		PartNo:       "ABC-200",
		RawStdWeight: "100/102",
		RawWeightMin: "95",
		RawWeightMax: "107",
	}

	spec := newTestResolver().Resolve(part)
	require.Len(t, spec.Cavities, 2)
	require.Equal(t, 95.0, *spec.Cavities[0].WeightMin)
	require.Equal(t, 95.0, *spec.Cavities[1].WeightMin)
	require.Equal(t, 107.0, *spec.Cavities[0].WeightMax)
	require.Equal(t, 107.0, *spec.Cavities[1].WeightMax)
}

// TestResolve_OverrideWithScalarWeight 模穴標記 + 單值規格 → 雙穴複製同值
// （覆寫優先：模具確實雙穴，只是填了共用規格）
func TestResolve_OverrideWithScalarWeight(t *testing.T) {
	part := domain.PartMaster{
		PartNo:         "DEF-300",
		RawStdWeight:   "88",
		RawWeightMin:   "85",
		RawWeightMax:   "91",
		CavityOverride: "R/L",
	}

	spec := newTestResolver().Resolve(part)
	require.Len(t, spec.Cavities, 2)
	require.Equal(t, 88.0, *spec.Cavities[0].StdWeight)
	require.Equal(t, 88.0, *spec.Cavities[1].StdWeight)
	require.Equal(t, "-R", spec.Cavities[0].Suffix)
	require.Equal(t, "-L", spec.Cavities[1].Suffix)
}

// TestResolve_NumericLabeling "#1/#2" 標記 → 數字標籤與對應後綴
func TestResolve_NumericLabeling(t *testing.T) {
	part := domain.PartMaster{
		PartNo:         "GHI-400",
		RawStdWeight:   "60/61",
		CavityOverride: "#1/#2",
	}

	spec := newTestResolver().Resolve(part)
	require.Len(t, spec.Cavities, 2)
	require.Equal(t, "#1", spec.Cavities[0].Label)
	require.Equal(t, "-1", spec.Cavities[0].Suffix)
	require.Equal(t, "#2", spec.Cavities[1].Label)
	require.Equal(t, "-2", spec.Cavities[1].Suffix)
	require.Equal(t, "GHI-400-1", spec.LedgerPartNo(spec.Cavities[0]))
}

// TestResolve_TrailingSlashTypo "50/" → 單模（斜線手誤不觸發雙模）
func TestResolve_TrailingSlashTypo(t *testing.T) {
	part := domain.PartMaster{
		PartNo:       "XYZ",
		RawStdWeight: "50/",
	}

	spec := newTestResolver().Resolve(part)
	require.Len(t, spec.Cavities, 1)
	require.Equal(t, 50.0, *spec.Cavities[0].StdWeight)
}

// TestResolve_MissingPairSlot 數對缺槽 → 該模穴該欄位為 nil
func TestResolve_MissingPairSlot(t *testing.T) {
	part := domain.PartMaster{
		PartNo:       "JKL-500",
		RawStdWeight: "100/102",
		RawWeightMin: "95/97",
		// 上限只填了一邊之外還帶垃圾段，確保依位置取槽
		RawWeightMax: "105/x/107",
	}

	spec := newTestResolver().Resolve(part)
	require.Len(t, spec.Cavities, 2)
	require.Equal(t, 105.0, *spec.Cavities[0].WeightMax)
	require.Nil(t, spec.Cavities[1].WeightMax)
}

// TestResolve_InconsistentSpecIsNotFatal min>std 只記警告，不失敗
func TestResolve_InconsistentSpecIsNotFatal(t *testing.T) {
	part := domain.PartMaster{
		PartNo:       "MNO-600",
		RawStdWeight: "100",
		RawWeightMin: "110",
		RawWeightMax: "120",
	}

	spec := newTestResolver().Resolve(part)
	require.Len(t, spec.Cavities, 1)
	require.Equal(t, 100.0, *spec.Cavities[0].StdWeight)
	require.Equal(t, 110.0, *spec.Cavities[0].WeightMin)
}
