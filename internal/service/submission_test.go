package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ruiquan-inspection/internal/domain"
	"ruiquan-inspection/internal/ledger"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dualSpec() domain.ResolvedSpec {
	return domain.ResolvedSpec{
		Model:    "CX-5",
		PartNo:   "ABC-123",
		PartName: "側飾板",
		Cavities: []domain.CavitySpec{
			{Label: "R", Suffix: "-R", WeightMin: f(95), WeightMax: f(105)},
			{Label: "L", Suffix: "-L", WeightMin: f(97), WeightMax: f(107)},
		},
	}
}

func newCoordinator(fl *fakeLedger, kv *fakeKV, n AndonNotifier) *SubmissionCoordinator {
	c := NewSubmissionCoordinator(fl, kv, n, zap.NewNop())
	c.now = func() time.Time { return time.Date(2026, 8, 28, 9, 5, 0, 0, time.UTC) }
	return c
}

func TestSubmit_DualCavitySharesTimestampAndPhoto(t *testing.T) {
	fl := &fakeLedger{imageURL: "https://drive.example/abc.jpg"}
	kv := newFakeKV()
	c := newCoordinator(fl, kv, nil)

	photo := &ledger.Photo{Filename: "abc.jpg", Base64: "Zm9v"}
	res, err := c.Submit(context.Background(), dualSpec(), SubmissionInput{
		InspectionType: domain.InspectionFirst,
		Measurements:   []CavityMeasurement{{Weight: 100}, {Weight: 100}},
		MaterialOK:     true,
	}, photo)
	require.NoError(t, err)
	require.True(t, res.Succeeded)
	require.Equal(t, "2026-08-28 09:05:00", res.Timestamp)
	require.Equal(t, "https://drive.example/abc.jpg", res.ImageURL)

	require.Len(t, fl.appended, 2)
	// 兩列共用同一時間戳字串
	require.Equal(t, fl.appended[0].row.Timestamp, fl.appended[1].row.Timestamp)
	require.Equal(t, "ABC-123-R", fl.appended[0].row.PartNo)
	require.Equal(t, "ABC-123-L", fl.appended[1].row.PartNo)
	// 照片只隨第一列；第二列帶回傳的影像參照
	require.NotNil(t, fl.appended[0].photo)
	require.Nil(t, fl.appended[1].photo)
	require.Equal(t, "https://drive.example/abc.jpg", fl.appended[1].row.Image)
	// 新列一律未審核
	require.Equal(t, domain.StatusUnreviewed, fl.appended[0].row.Status)
}

func TestSubmit_PartialFailureNamesFailedCavity(t *testing.T) {
	fl := &fakeLedger{appendErr: map[string]error{"ABC-123-L": errors.New("quota exceeded")}}
	kv := newFakeKV()
	c := newCoordinator(fl, kv, nil)

	res, err := c.Submit(context.Background(), dualSpec(), SubmissionInput{
		InspectionType: domain.InspectionFirst,
		Measurements:   []CavityMeasurement{{Weight: 100}, {Weight: 100}},
		MaterialOK:     true,
	}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ABC-123-L")
	require.Contains(t, err.Error(), "will not be retried")

	require.NotNil(t, res)
	require.False(t, res.Succeeded)
	require.Len(t, res.Outcomes, 2)
	require.True(t, res.Outcomes[0].Persisted)
	require.False(t, res.Outcomes[1].Persisted)
	// 成功的那列不會被重送
	require.Len(t, fl.appended, 1)
}

func TestSubmit_InvalidatesReadCaches(t *testing.T) {
	fl := &fakeLedger{}
	kv := newFakeKV()
	kv.data[snapshotCacheKey] = "[]"
	c := newCoordinator(fl, kv, nil)

	_, err := c.Submit(context.Background(), dualSpec(), SubmissionInput{
		InspectionType: domain.InspectionLast,
		Measurements:   []CavityMeasurement{{Weight: 100}, {Weight: 100}},
		MaterialOK:     true,
	}, nil)
	require.NoError(t, err)
	require.Contains(t, kv.deleted, snapshotCacheKey)
	require.Contains(t, kv.deleted, historyCacheKey("ABC-123-R"))
	require.Contains(t, kv.deleted, historyCacheKey("ABC-123-L"))
}

func TestSubmit_PreconditionFailureTouchesNothing(t *testing.T) {
	fl := &fakeLedger{}
	c := newCoordinator(fl, newFakeKV(), nil)

	_, err := c.Submit(context.Background(), dualSpec(), SubmissionInput{
		InspectionType: domain.InspectionFirst,
		Measurements:   []CavityMeasurement{{Weight: 100}, {}},
		MaterialOK:     true,
	}, nil)
	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	require.Empty(t, fl.appended)
}

func TestSubmit_NotifiesOnNGAndChangePoint(t *testing.T) {
	fl := &fakeLedger{}
	n := &fakeNotifier{}
	c := newCoordinator(fl, newFakeKV(), n)

	// 全 OK、無變化點：不廣播
	_, err := c.Submit(context.Background(), dualSpec(), SubmissionInput{
		InspectionType: domain.InspectionFirst,
		Measurements:   []CavityMeasurement{{Weight: 100}, {Weight: 100}},
		MaterialOK:     true,
	}, nil)
	require.NoError(t, err)
	require.Empty(t, n.rows)

	// 第二模穴超上限 → NG，該列廣播
	_, err = c.Submit(context.Background(), dualSpec(), SubmissionInput{
		InspectionType: domain.InspectionFirst,
		Measurements:   []CavityMeasurement{{Weight: 100}, {Weight: 120}},
		MaterialOK:     true,
	}, nil)
	require.NoError(t, err)
	require.Len(t, n.rows, 1)
	require.Equal(t, domain.ResultNG, n.rows[0].Result)
	require.Equal(t, "ABC-123-L", n.rows[0].PartNo)
}

func TestSubmit_QuickLogWritesCPRows(t *testing.T) {
	fl := &fakeLedger{}
	c := newCoordinator(fl, newFakeKV(), nil)

	res, err := c.Submit(context.Background(), dualSpec(), SubmissionInput{
		InspectionType: domain.InspectionMiddle,
		ChangePoint:    "模具保養後首啟動",
		ActionTaken:    "加嚴全檢",
		QuickLog:       true,
	}, nil)
	require.NoError(t, err)
	require.True(t, res.Succeeded)
	require.Len(t, fl.appended, 2)
	for _, call := range fl.appended {
		require.Equal(t, domain.ResultCP, call.row.Result)
		require.Equal(t, "模具保養後首啟動", call.row.ChangePoint)
		require.Empty(t, call.row.Weight)
	}
}
