package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ruiquan-inspection/internal/domain"
	"ruiquan-inspection/internal/ledger"
	"ruiquan-inspection/internal/service"
	"ruiquan-inspection/internal/specparse"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePartSource struct {
	parts []domain.PartMaster
	err   error
}

func (f *fakePartSource) Models() ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	var models []string
	for _, p := range f.parts {
		if !seen[p.Model] {
			seen[p.Model] = true
			models = append(models, p.Model)
		}
	}
	return models, nil
}

func (f *fakePartSource) PartsForModel(model string) ([]domain.PartMaster, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.PartMaster
	for _, p := range f.parts {
		if model == "" || p.Model == model {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePartSource) Find(partNo string) (domain.PartMaster, bool, error) {
	if f.err != nil {
		return domain.PartMaster{}, false, f.err
	}
	for _, p := range f.parts {
		if p.PartNo == partNo {
			return p, true, nil
		}
	}
	return domain.PartMaster{}, false, nil
}

func (f *fakePartSource) Refresh() ([]domain.PartMaster, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.parts, nil
}

type fakeSubmitter struct {
	lastSpec  domain.ResolvedSpec
	lastIn    service.SubmissionInput
	lastPhoto *ledger.Photo
	result    *service.SubmissionResult
	err       error
}

func (f *fakeSubmitter) Submit(ctx context.Context, spec domain.ResolvedSpec, in service.SubmissionInput, photo *ledger.Photo) (*service.SubmissionResult, error) {
	f.lastSpec = spec
	f.lastIn = in
	f.lastPhoto = photo
	return f.result, f.err
}

type fakeHistory struct {
	history *service.PartHistory
	err     error
}

func (f *fakeHistory) History(ctx context.Context, partNo string, limit int) (*service.PartHistory, error) {
	return f.history, f.err
}

func testParts() []domain.PartMaster {
	return []domain.PartMaster{
		{Model: "CX-5", PartNo: "ABC-123", PartName: "側飾板", RawStdWeight: "100/102", RawWeightMin: "95/97", RawWeightMax: "105/107"},
		{Model: "ND", PartNo: "DEF-300", PartName: "儀表飾蓋", RawStdWeight: "88"},
	}
}

func newTestRouter(parts *fakePartSource, sub *fakeSubmitter, hist *fakeHistory) *Router {
	logger := zap.NewNop()
	h := NewInspectionHandler(parts, specparse.NewResolver(logger), sub, hist, service.NewSessionManager(time.Hour), logger)
	r := NewRouter(logger)
	r.RegisterInspectionRoutes(h)
	return r
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result[json.RawMessage] {
	t.Helper()
	var res Result[json.RawMessage]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestGetSpec_DualCavity(t *testing.T) {
	r := newTestRouter(&fakePartSource{parts: testParts()}, &fakeSubmitter{}, &fakeHistory{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect/api/v1/parts/ABC-123/spec", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, res.Code)

	var dto resolvedSpecDTO
	require.NoError(t, json.Unmarshal(res.Result, &dto))
	require.True(t, dto.IsDual)
	require.Len(t, dto.Cavities, 2)
	require.Equal(t, "R", dto.Cavities[0].Label)
	require.Equal(t, "-L", dto.Cavities[1].Suffix)
	require.Equal(t, 97.0, *dto.Cavities[1].WeightMin)
}

func TestGetSpec_NotFound(t *testing.T) {
	r := newTestRouter(&fakePartSource{parts: testParts()}, &fakeSubmitter{}, &fakeHistory{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect/api/v1/parts/NOPE/spec", nil))

	res := decodeResult(t, rec)
	require.Equal(t, ResultError, res.Code)
	require.Contains(t, res.Message, "NOPE")
}

func TestGetModels(t *testing.T) {
	r := newTestRouter(&fakePartSource{parts: testParts()}, &fakeSubmitter{}, &fakeHistory{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect/api/v1/models", nil))

	res := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, res.Code)
	var models []string
	require.NoError(t, json.Unmarshal(res.Result, &models))
	require.Equal(t, []string{"CX-5", "ND"}, models)
}

func TestSubmit_PassesResolvedSpecAndPhoto(t *testing.T) {
	sub := &fakeSubmitter{result: &service.SubmissionResult{
		Timestamp: "2026-08-28 09:05:00",
		Succeeded: true,
	}}
	r := newTestRouter(&fakePartSource{parts: testParts()}, sub, &fakeHistory{})

	body, _ := json.Marshal(map[string]any{
		"part_no":         "ABC-123",
		"inspection_type": "首件",
		"measurements":    []map[string]any{{"weight": 100.0}, {"weight": 101.0}},
		"material_ok":     true,
		"photo":           map[string]any{"filename": "a.jpg", "base64": "Zm9v"},
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inspect/api/v1/submissions", bytes.NewReader(body)))

	res := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, res.Code)

	require.Equal(t, "ABC-123", sub.lastSpec.PartNo)
	require.Len(t, sub.lastSpec.Cavities, 2)
	require.Len(t, sub.lastIn.Measurements, 2)
	require.NotNil(t, sub.lastPhoto)
	require.Equal(t, "a.jpg", sub.lastPhoto.Filename)
}

func TestSubmit_PartialFailureStillReturnsOutcomes(t *testing.T) {
	sub := &fakeSubmitter{
		result: &service.SubmissionResult{
			Timestamp: "2026-08-28 09:05:00",
			Outcomes: []service.CavityOutcome{
				{PartNo: "ABC-123-R", Persisted: true},
				{PartNo: "ABC-123-L", Error: "quota exceeded"},
			},
		},
		err: errors.New("partial failure: ABC-123-L not persisted"),
	}
	r := newTestRouter(&fakePartSource{parts: testParts()}, sub, &fakeHistory{})

	body, _ := json.Marshal(map[string]any{
		"part_no":         "ABC-123",
		"inspection_type": "首件",
		"measurements":    []map[string]any{{"weight": 100.0}, {"weight": 101.0}},
		"material_ok":     true,
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inspect/api/v1/submissions", bytes.NewReader(body)))

	res := decodeResult(t, rec)
	require.Equal(t, ResultError, res.Code)
	require.Contains(t, res.Message, "ABC-123-L")

	// 錯誤回應仍帶逐模穴結果
	var sr service.SubmissionResult
	require.NoError(t, json.Unmarshal(res.Result, &sr))
	require.Len(t, sr.Outcomes, 2)
	require.True(t, sr.Outcomes[0].Persisted)
}

func TestSubmit_MissingPartNo(t *testing.T) {
	r := newTestRouter(&fakePartSource{parts: testParts()}, &fakeSubmitter{}, &fakeHistory{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inspect/api/v1/submissions", bytes.NewReader([]byte(`{}`))))

	res := decodeResult(t, rec)
	require.Equal(t, ResultError, res.Code)
	require.Contains(t, res.Message, "part_no")
}

func TestGetHistory(t *testing.T) {
	hist := &fakeHistory{history: &service.PartHistory{
		PartNo: "ABC-123-R",
		Trend:  []service.TrendPoint{{Timestamp: "2026-08-28 08:00:00", Weight: 100.2, Result: "OK"}},
	}}
	r := newTestRouter(&fakePartSource{parts: testParts()}, &fakeSubmitter{}, hist)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect/api/v1/history?part_no=ABC-123-R", nil))

	res := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, res.Code)

	var ph service.PartHistory
	require.NoError(t, json.Unmarshal(res.Result, &ph))
	require.Len(t, ph.Trend, 1)
}

func TestSessions_StartAndSelect(t *testing.T) {
	r := newTestRouter(&fakePartSource{parts: testParts()}, &fakeSubmitter{}, &fakeHistory{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inspect/api/v1/sessions", nil))
	res := decodeResult(t, rec)
	require.Equal(t, ResultSuccess, res.Code)

	var s service.Session
	require.NoError(t, json.Unmarshal(res.Result, &s))
	require.NotEmpty(t, s.ID)

	body, _ := json.Marshal(map[string]string{"model": "CX-5", "part_no": "ABC-123"})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inspect/api/v1/sessions/"+s.ID+"/select", bytes.NewReader(body)))
	res = decodeResult(t, rec)
	require.Equal(t, ResultSuccess, res.Code)

	require.NoError(t, json.Unmarshal(res.Result, &s))
	require.Equal(t, "ABC-123", s.PartNo)
	require.Equal(t, 1, s.UploadNonce)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	r := newTestRouter(&fakePartSource{parts: testParts()}, &fakeSubmitter{}, &fakeHistory{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inspect/api/v1/models", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
