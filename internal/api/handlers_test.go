package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/filingsync/internal/api/mocks"
	"github.com/ginjaninja78/filingsync/internal/config"
	"github.com/ginjaninja78/filingsync/internal/runner"
	"github.com/ginjaninja78/filingsync/internal/store"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/ginjaninja78/filingsync/internal/validation"
	"github.com/ginjaninja78/filingsync/pkg/utils"
	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router http.Handler
	store  *mocks.MockRunStore
	exec   *mocks.MockExecutor
	files  *utils.FileManager
}

func newFixture(t *testing.T, ctrl *gomock.Controller) *fixture {
	t.Helper()
	f := &fixture{
		store: mocks.NewMockRunStore(ctrl),
		exec:  mocks.NewMockExecutor(ctrl),
		files: utils.NewFileManager(t.TempDir()),
	}
	h := NewHandler(f.store, f.exec, f.files, Config{MaxUploadBytes: 1 << 20}, zerolog.Nop())
	f.router = NewRouter(h, nil)
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func uploadingRun() *store.Run {
	return &store.Run{ID: "run-1", Year: 2024, Category: types.CategoryFinancial, Status: store.StatusUploading}
}

func bothUploads() []store.RunFile {
	return []store.RunFile{
		{ID: "f-a", RunID: "run-1", Role: store.RoleSourceA, StoredPath: "/data/a.xlsx"},
		{ID: "f-b", RunID: "run-1", Role: store.RoleSourceB, StoredPath: "/data/b.xlsx"},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// =============================================================================
// RUNS
// =============================================================================

func TestCreateRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().
		CreateRun(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, run *store.Run) error {
			assert.Equal(t, 2024, run.Year)
			assert.Equal(t, types.CategoryAnnual, run.Category)
			assert.Equal(t, store.StatusUploading, run.Status)
			return nil
		})

	rec := f.do(http.MethodPost, "/api/runs", CreateRunRequest{Year: 2024, Category: " Annual "})
	require.Equal(t, http.StatusCreated, rec.Code)

	var run store.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.NotEmpty(t, run.ID)
	assert.DirExists(t, f.files.UploadDir(run.ID))
}

func TestCreateRunRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"malformed body", "{"},
		{"year too early", CreateRunRequest{Year: 2019, Category: "annual"}},
		{"unknown category", CreateRunRequest{Year: 2024, Category: "quarterly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			f := newFixture(t, ctrl)

			rec := f.do(http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListRuns(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().
		ListRuns(gomock.Any(), store.RunFilter{Year: 2024, Category: types.CategoryFinancial, Limit: 10}).
		Return(nil, nil)

	rec := f.do(http.MethodGet, "/api/runs?year=2024&category=financial&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = f.do(http.MethodGet, "/api/runs?year=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRunMapsStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().GetRun(gomock.Any(), "missing").Return(nil, store.ErrNotFound)

	rec := f.do(http.MethodGet, "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "run not found", decodeError(t, rec).Error)
}

func TestGetRunDetail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	run := uploadingRun()
	run.Status = store.StatusReview
	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(run, nil)
	f.store.EXPECT().ListFiles(gomock.Any(), "run-1").Return(bothUploads(), nil)
	f.store.EXPECT().GetMetrics(gomock.Any(), "run-1").Return(&store.Metrics{Counts: types.Counts{Matched: 4}}, nil)
	f.store.EXPECT().ListExceptions(gomock.Any(), "run-1", store.ExceptionFilter{}).Return([]store.ExceptionRecord{
		{Kind: types.ExceptionNoCounterpart, Resolution: store.ResolutionPending},
		{Kind: types.ExceptionNoCounterpart, Resolution: store.ResolutionDismissed},
		{Kind: types.ExceptionDuplicateKey, Resolution: store.ResolutionPending},
	}, nil)

	rec := f.do(http.MethodGet, "/api/runs/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail RunDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, store.StatusReview, detail.Status)
	assert.Len(t, detail.Files, 2)
	require.NotNil(t, detail.Metrics)
	assert.Equal(t, 4, detail.Metrics.Matched)
	assert.Equal(t, 2, detail.ExceptionCounts[types.ExceptionNoCounterpart])
	assert.Equal(t, 1, detail.ExceptionCounts[types.ExceptionDuplicateKey])
	assert.Equal(t, 2, detail.PendingExceptions)
}

func TestDeleteRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	require.NoError(t, f.files.EnsureRunDirs("run-1"))
	f.store.EXPECT().DeleteRun(gomock.Any(), "run-1").Return(nil)
	f.store.EXPECT().DeleteRun(gomock.Any(), "run-2").Return(store.ErrRunLocked)

	rec := f.do(http.MethodDelete, "/api/runs/run-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoDirExists(t, f.files.RunDir("run-1"))

	rec = f.do(http.MethodDelete, "/api/runs/run-2", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// UPLOAD
// =============================================================================

func multipartBody(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)
	f.store.EXPECT().
		AddUpload(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, file store.RunFile) error {
			assert.Equal(t, store.RoleSourceB, file.Role)
			assert.Equal(t, "export.csv", file.OriginalName)
			assert.Equal(t, int64(5), file.SizeBytes)
			assert.FileExists(t, file.StoredPath)
			return nil
		})

	body, contentType := multipartBody(t, "export.csv", "a,b\n1")
	req := httptest.NewRequest(http.MethodPost, "/api/runs/run-1/upload?role=source_b", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name    string
		status  store.RunStatus
		role    string
		content string
		want    int
	}{
		{"run already processing", store.StatusProcessing, "source_a", "x", http.StatusConflict},
		{"unknown role", store.StatusUploading, "import_output", "x", http.StatusBadRequest},
		{"file too large", store.StatusUploading, "source_a", strings.Repeat("x", 1<<20+10), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			f := newFixture(t, ctrl)

			run := uploadingRun()
			run.Status = tt.status
			f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(run, nil)

			body, contentType := multipartBody(t, "idom.xlsx", tt.content)
			req := httptest.NewRequest(http.MethodPost, "/api/runs/run-1/upload?role="+tt.role, body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestUploadTooLargeKeepsAcceptedFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	accepted, _, err := f.files.SaveUpload("run-1", "source_a", "idom.xlsx", strings.NewReader("kept"), 0)
	require.NoError(t, err)

	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)

	body, contentType := multipartBody(t, "idom.xlsx", strings.Repeat("x", 1<<20+10))
	req := httptest.NewRequest(http.MethodPost, "/api/runs/run-1/upload?role=source_a", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	data, err := os.ReadFile(accepted)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}

// =============================================================================
// EXECUTE
// =============================================================================

func TestExecuteRequiresBothUploads(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)
	f.store.EXPECT().ListFiles(gomock.Any(), "run-1").Return(bothUploads()[:1], nil)

	rec := f.do(http.MethodPost, "/api/runs/run-1/execute", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "source_b")
}

func TestExecutePreflightGate(t *testing.T) {
	invalid := &validation.Report{
		IsValid: false,
		Issues:  []*validation.Issue{{Severity: validation.SeverityError, Check: "tax_year", Message: "no records for 2024"}},
	}

	t.Run("blocked", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newFixture(t, ctrl)

		f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)
		f.store.EXPECT().ListFiles(gomock.Any(), "run-1").Return(bothUploads(), nil)
		f.exec.EXPECT().Preflight(gomock.Any(), gomock.Any()).Return(invalid, nil)

		rec := f.do(http.MethodPost, "/api/runs/run-1/execute", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, runner.ErrPreflightFailed.Error(), resp.Error)
		assert.Contains(t, resp.Details, "no records for 2024")
	})

	t.Run("forced", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newFixture(t, ctrl)

		f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)
		f.store.EXPECT().ListFiles(gomock.Any(), "run-1").Return(bothUploads(), nil)
		f.exec.EXPECT().Preflight(gomock.Any(), gomock.Any()).Return(invalid, nil)
		f.store.EXPECT().TransitionStatus(gomock.Any(), "run-1", store.StatusUploading, store.StatusProcessing).Return(nil)
		f.exec.EXPECT().Run(gomock.Any(), gomock.Any()).Return(&runner.Outcome{Result: &types.Result{}}, nil)
		f.store.EXPECT().SaveOutcome(gomock.Any(), "run-1", store.StatusCompleted, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		rec := f.do(http.MethodPost, "/api/runs/run-1/execute?force=true", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestExecuteLostRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)
	f.store.EXPECT().ListFiles(gomock.Any(), "run-1").Return(bothUploads(), nil)
	f.exec.EXPECT().Preflight(gomock.Any(), gomock.Any()).Return(&validation.Report{IsValid: true}, nil)
	f.store.EXPECT().
		TransitionStatus(gomock.Any(), "run-1", store.StatusUploading, store.StatusProcessing).
		Return(store.ErrConflict)

	rec := f.do(http.MethodPost, "/api/runs/run-1/execute", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecuteRejectsRunPastUploading(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	run := uploadingRun()
	run.Status = store.StatusCompleted
	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(run, nil)
	f.store.EXPECT().ListFiles(gomock.Any(), "run-1").Return(bothUploads(), nil)

	rec := f.do(http.MethodPost, "/api/runs/run-1/execute", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecuteSavesOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	result := &types.Result{
		Category: types.CategoryFinancial,
		TaxYear:  2024,
		Counts:   types.Counts{TotalA: 3, TotalB: 2, Matched: 2, Unmatched: 1},
		Exceptions: []types.Exception{
			{Kind: types.ExceptionNoCounterpart, SourceAKey: "516666666", Detail: "no match"},
		},
		Warnings: []string{"1 row skipped"},
	}

	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)
	f.store.EXPECT().ListFiles(gomock.Any(), "run-1").Return(bothUploads(), nil)
	gomock.InOrder(
		f.exec.EXPECT().Preflight(gomock.Any(), gomock.Any()).Return(&validation.Report{IsValid: true}, nil),
		f.store.EXPECT().TransitionStatus(gomock.Any(), "run-1", store.StatusUploading, store.StatusProcessing).Return(nil),
		f.exec.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, opts runner.Options) (*runner.Outcome, error) {
				assert.Equal(t, "/data/a.xlsx", opts.SourceAPath)
				assert.Equal(t, "/data/b.xlsx", opts.SourceBPath)
				assert.Equal(t, 2024, opts.TaxYear)
				assert.Equal(t, f.files.OutputDir("run-1"), opts.OutputDir)
				assert.True(t, opts.Force)
				return &runner.Outcome{Result: result, Stats: runner.Stats{ProcessingTime: 1500 * time.Millisecond}}, nil
			}),
		f.store.EXPECT().
			SaveOutcome(gomock.Any(), "run-1", store.StatusReview, gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ store.RunStatus, m store.Metrics, files []store.RunFile, exceptions []store.ExceptionRecord) error {
				assert.Equal(t, 2, m.Matched)
				assert.Equal(t, 1.5, m.ProcessingSeconds)
				assert.Empty(t, files)
				require.Len(t, exceptions, 1)
				assert.Equal(t, store.SeverityHigh, exceptions[0].Severity)
				return nil
			}),
	)

	rec := f.do(http.MethodPost, "/api/runs/run-1/execute", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ExecuteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, store.StatusReview, resp.Status)
	assert.Equal(t, 1, resp.ExceptionCount)
	assert.Equal(t, []string{"1 row skipped"}, resp.Warnings)
}

func TestExecuteFailureMarksRunFailed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"schema mismatch", types.NewSchemaError("source A", "case_number"), http.StatusUnprocessableEntity},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			f := newFixture(t, ctrl)

			f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)
			f.store.EXPECT().ListFiles(gomock.Any(), "run-1").Return(bothUploads(), nil)
			f.exec.EXPECT().Preflight(gomock.Any(), gomock.Any()).Return(&validation.Report{IsValid: true}, nil)
			f.store.EXPECT().TransitionStatus(gomock.Any(), "run-1", store.StatusUploading, store.StatusProcessing).Return(nil)
			f.exec.EXPECT().Run(gomock.Any(), gomock.Any()).Return(nil, tt.err)
			f.store.EXPECT().TransitionStatus(gomock.Any(), "run-1", store.StatusProcessing, store.StatusFailed).Return(nil)

			rec := f.do(http.MethodPost, "/api/runs/run-1/execute", nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestPreflightEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)
	f.store.EXPECT().ListFiles(gomock.Any(), "run-1").Return(bothUploads(), nil)
	f.exec.EXPECT().Preflight(gomock.Any(), gomock.Any()).Return(&validation.Report{IsValid: true, ExpectedMatches: 7}, nil)

	rec := f.do(http.MethodPost, "/api/runs/run-1/preflight", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report validation.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.True(t, report.IsValid)
	assert.Equal(t, 7, report.ExpectedMatches)
}

func TestComplete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	done := uploadingRun()
	done.Status = store.StatusCompleted
	f.store.EXPECT().TransitionStatus(gomock.Any(), "run-1", store.StatusReview, store.StatusCompleted).Return(nil)
	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(done, nil)
	f.store.EXPECT().TransitionStatus(gomock.Any(), "run-2", store.StatusReview, store.StatusCompleted).Return(store.ErrConflict)

	rec := f.do(http.MethodPost, "/api/runs/run-1/complete", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/runs/run-2/complete", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// REVIEW
// =============================================================================

func TestListExceptionsFilters(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().GetRun(gomock.Any(), "run-1").Return(uploadingRun(), nil)
	f.store.EXPECT().
		ListExceptions(gomock.Any(), "run-1", store.ExceptionFilter{Kind: types.ExceptionStatusAnomaly, Resolution: store.ResolutionPending}).
		Return([]store.ExceptionRecord{{ID: "e1", Kind: types.ExceptionStatusAnomaly}}, nil)

	rec := f.do(http.MethodGet, "/api/runs/run-1/exceptions?kind=status_anomaly&resolution=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []store.ExceptionRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "e1", records[0].ID)

	rec = f.do(http.MethodGet, "/api/runs/run-1/exceptions?kind=typo", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodGet, "/api/runs/run-1/exceptions?resolution=later", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveException(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().
		ResolveException(gomock.Any(), "run-1", "e1", store.ResolutionAcknowledged, "new client").
		Return(&store.ExceptionRecord{ID: "e1", Resolution: store.ResolutionAcknowledged, Note: "new client"}, nil)
	f.store.EXPECT().
		ResolveException(gomock.Any(), "run-1", "e2", store.ResolutionDismissed, "").
		Return(nil, store.ErrRunLocked)

	rec := f.do(http.MethodPatch, "/api/runs/run-1/exceptions/e1", PatchExceptionRequest{Resolution: "acknowledged", Note: " new client "})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPatch, "/api/runs/run-1/exceptions/e2", PatchExceptionRequest{Resolution: "dismissed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPatch, "/api/runs/run-1/exceptions/e3", PatchExceptionRequest{Resolution: "ignored"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkResolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().ResolvePending(gomock.Any(), "run-1", store.ResolutionDismissed).Return(3, nil)

	rec := f.do(http.MethodPatch, "/api/runs/run-1/exceptions", BulkPatchRequest{Resolution: "dismissed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated_count":3}`, rec.Body.String())

	// Resolving pending exceptions to pending changes nothing.
	rec = f.do(http.MethodPatch, "/api/runs/run-1/exceptions", BulkPatchRequest{Resolution: "pending"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated_count":0}`, rec.Body.String())
}

// =============================================================================
// FILES AND HEALTH
// =============================================================================

func TestDownloadFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	path, size, err := f.files.SaveUpload("run-1", "source_a", "idom.csv", strings.NewReader("a,b\n"), 0)
	require.NoError(t, err)

	f.store.EXPECT().GetFile(gomock.Any(), "run-1", "f-a").
		Return(&store.RunFile{ID: "f-a", OriginalName: "עידום.csv", StoredPath: path, SizeBytes: size, MimeType: "text/csv"}, nil)
	f.store.EXPECT().GetFile(gomock.Any(), "run-1", "f-gone").
		Return(&store.RunFile{ID: "f-gone", StoredPath: path + ".missing"}, nil)

	rec := f.do(http.MethodGet, "/api/runs/run-1/files/f-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a,b\n", rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	rec = f.do(http.MethodGet, "/api/runs/run-1/files/f-gone", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestHealth(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newFixture(t, ctrl)

	f.store.EXPECT().Ping(gomock.Any()).Return(nil)
	f.store.EXPECT().Ping(gomock.Any()).Return(errors.New("database is locked"))

	rec := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Volume)
}

func TestNewHandlerDefaults(t *testing.T) {
	h := NewHandler(nil, nil, utils.NewFileManager(t.TempDir()), Config{CSV: config.DefaultCSVSettings()}, zerolog.Nop())
	assert.Equal(t, int64(50<<20), h.cfg.MaxUploadBytes)
}
