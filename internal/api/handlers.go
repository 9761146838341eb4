/*
handlers.go - HTTP API handlers for the reconciliation service

PURPOSE:
  Exposes the reconciliation pipeline as a run-oriented REST API. Handles
  HTTP request/response and JSON serialization, and delegates to the run
  store, the file manager and the executor.

ENDPOINTS:
  Health:
    GET    /health                                   Volume and database probe

  Runs:
    GET    /api/runs                                 List runs (?year=&category=&limit=&offset=)
    POST   /api/runs                                 Create run
    GET    /api/runs/{id}                            Run with files, metrics, exception counts
    DELETE /api/runs/{id}                            Delete run and its files

  Execution:
    POST   /api/runs/{id}/upload?role=source_a       Multipart upload (field "file")
    POST   /api/runs/{id}/preflight                  Validate uploads without running
    POST   /api/runs/{id}/execute                    Reconcile (?force=true skips the preflight gate)
    POST   /api/runs/{id}/complete                   Close a run under review

  Review:
    GET    /api/runs/{id}/exceptions                 List (?kind=&resolution=)
    PATCH  /api/runs/{id}/exceptions                 Resolve every pending exception
    PATCH  /api/runs/{id}/exceptions/{exceptionID}   Resolve one exception

  Files:
    GET    /api/runs/{id}/files/{fileID}             Download an upload or an output

RUN LIFECYCLE:
  uploading -> processing -> review | completed | failed
  review -> completed

  Every transition is a compare-and-swap in the store, so two concurrent
  execute calls cannot both start processing. Completed runs are locked.

ERROR RESPONSES:
  All errors return ErrorResponse{error, details}. Store sentinels map to
  status codes in writeStoreError.

SEE ALSO:
  - server.go: Route definitions
  - dto.go: Request/response types
  - internal/runner: The pipeline behind execute and preflight
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/filingsync/internal/config"
	"github.com/ginjaninja78/filingsync/internal/runner"
	"github.com/ginjaninja78/filingsync/internal/store"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/ginjaninja78/filingsync/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Config holds the settings the handlers need from the main configuration.
type Config struct {
	MaxUploadBytes   int64
	OutputNameFormat string
	CSV              config.CSVSettings

	// MinExpected returns a per-category record threshold, zero for the
	// registry default. May be nil.
	MinExpected func(category string) int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store  RunStore
	exec   Executor
	files  *utils.FileManager
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewHandler creates a new handler.
func NewHandler(st RunStore, exec Executor, files *utils.FileManager, cfg Config, logger zerolog.Logger) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	return &Handler{
		store:  st,
		exec:   exec,
		files:  files,
		cfg:    cfg,
		logger: logger.With().Str("component", "api").Logger(),
		now:    time.Now,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the data volume is writable and the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Volume: "ok", Database: "ok"}
	status := http.StatusOK

	if err := h.files.Writable(); err != nil {
		h.logger.Error().Err(err).Msg("data volume is not writable")
		resp.Volume = err.Error()
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("database ping failed")
		resp.Database = err.Error()
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// =============================================================================
// RUN ENDPOINTS
// =============================================================================

// ListRuns returns runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{Category: types.Category(q.Get("category"))}

	for name, dst := range map[string]*int{"year": &filter.Year, "limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid "+name, err)
			return
		}
		*dst = n
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		h.writeStoreError(w, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// CreateRun opens a new run in the uploading state.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	run, err := store.NewRun(req.Year, types.Category(strings.ToLower(strings.TrimSpace(req.Category))), req.Notes, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run", err)
		return
	}
	if err := h.files.EnsureRunDirs(run.ID); err != nil {
		h.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to create run directories")
		writeError(w, http.StatusInternalServerError, "failed to create run directories", err)
		return
	}
	if err := h.store.CreateRun(r.Context(), run); err != nil {
		h.writeStoreError(w, "failed to create run", err)
		return
	}

	h.logger.Info().Str("run_id", run.ID).Int("year", run.Year).Str("category", string(run.Category)).Msg("run created")
	writeJSON(w, http.StatusCreated, run)
}

// GetRun returns a run with its files, metrics and exception counts.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		h.writeStoreError(w, "run not found", err)
		return
	}

	files, err := h.store.ListFiles(ctx, id)
	if err != nil {
		h.writeStoreError(w, "failed to list files", err)
		return
	}
	if files == nil {
		files = []store.RunFile{}
	}

	metrics, err := h.store.GetMetrics(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.writeStoreError(w, "failed to load metrics", err)
		return
	}

	exceptions, err := h.store.ListExceptions(ctx, id, store.ExceptionFilter{})
	if err != nil {
		h.writeStoreError(w, "failed to list exceptions", err)
		return
	}

	detail := RunDetail{
		Run:             *run,
		Files:           files,
		Metrics:         metrics,
		ExceptionCounts: make(map[types.ExceptionKind]int),
	}
	for _, e := range exceptions {
		detail.ExceptionCounts[e.Kind]++
		if e.Resolution == store.ResolutionPending {
			detail.PendingExceptions++
		}
	}

	writeJSON(w, http.StatusOK, detail)
}

// DeleteRun removes a run, its records and its directory.
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteRun(r.Context(), id); err != nil {
		h.writeStoreError(w, "failed to delete run", err)
		return
	}
	if err := h.files.RemoveRun(id); err != nil {
		h.logger.Warn().Err(err).Str("run_id", id).Msg("run deleted but its files could not be removed")
	}

	h.logger.Info().Str("run_id", id).Msg("run deleted")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EXECUTION ENDPOINTS
// =============================================================================

// Upload stores one source file for a run. A second upload with the same
// role replaces the first.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		h.writeStoreError(w, "run not found", err)
		return
	}
	if run.Status != store.StatusUploading {
		h.writeStoreError(w, "run no longer accepts uploads", fmt.Errorf("%w: run is %s", store.ErrConflict, run.Status))
		return
	}

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "missing file field", err)
		return
	}
	defer file.Close()

	roleName := r.URL.Query().Get("role")
	if roleName == "" {
		roleName = r.FormValue("role")
	}
	role, err := store.ParseUploadRole(roleName)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid role", err)
		return
	}

	name := filepath.Base(header.Filename)
	path, size, err := h.files.SaveUpload(id, strings.TrimSuffix(string(role), "_upload"), name, file, h.cfg.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, utils.ErrUploadTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large", err)
			return
		}
		h.logger.Error().Err(err).Str("run_id", id).Msg("failed to save upload")
		writeError(w, http.StatusInternalServerError, "failed to save upload", err)
		return
	}

	record := store.NewRunFile(id, role, name, path, size, header.Header.Get("Content-Type"), h.now())
	if err := h.store.AddUpload(ctx, record); err != nil {
		h.writeStoreError(w, "failed to record upload", err)
		return
	}

	h.logger.Info().Str("run_id", id).Str("role", string(role)).Str("file", name).Int64("bytes", size).Msg("file uploaded")
	writeJSON(w, http.StatusCreated, record)
}

// Preflight validates the uploaded files without changing the run.
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	run, opts, ok := h.prepare(w, r, id)
	if !ok {
		return
	}

	report, err := h.exec.Preflight(ctx, opts)
	if err != nil {
		h.writeRunError(w, run.ID, "preflight failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Execute reconciles the uploaded files.
//
// FLOW:
//  1. Require both uploads and the uploading state
//  2. Preflight; errors stop here with 422 unless ?force=true
//  3. uploading -> processing (compare-and-swap, 409 on a lost race)
//  4. Run the pipeline into the run's output directory
//  5. Persist metrics, outputs and exceptions, moving to review or completed
//
// A pipeline failure moves the run to failed.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		var err error
		if force, err = strconv.ParseBool(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid force", err)
			return
		}
	}

	run, opts, ok := h.prepare(w, r, id)
	if !ok {
		return
	}
	if run.Status != store.StatusUploading {
		h.writeStoreError(w, "run cannot be executed", fmt.Errorf("%w: run is %s", store.ErrConflict, run.Status))
		return
	}

	// The run outlives a dropped client connection.
	ctx := context.WithoutCancel(r.Context())

	report, err := h.exec.Preflight(ctx, opts)
	if err != nil {
		h.writeRunError(w, id, "preflight failed", err)
		return
	}
	if !report.IsValid && !force {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   runner.ErrPreflightFailed.Error(),
			Details: strings.Join(report.Errors(), "; "),
			Report:  report,
		})
		return
	}

	if err := h.store.TransitionStatus(ctx, id, store.StatusUploading, store.StatusProcessing); err != nil {
		h.writeStoreError(w, "run cannot be executed", err)
		return
	}
	log := h.logger.With().Str("run_id", id).Logger()
	log.Info().Bool("force", force).Msg("execution started")

	opts.Force = true
	outcome, err := h.exec.Run(ctx, opts)
	if err != nil {
		h.fail(ctx, id, err)
		h.writeRunError(w, id, "reconciliation failed", err)
		return
	}

	result := outcome.Result
	to := store.NextStatus(result)
	metrics := store.Metrics{
		Counts:            result.Counts,
		ProcessingSeconds: outcome.Stats.ProcessingTime.Seconds(),
	}
	outputs := h.outputFiles(id, outcome)
	exceptions := store.NewExceptionRecords(id, result.Exceptions, h.now())

	if err := h.store.SaveOutcome(ctx, id, to, metrics, outputs, exceptions); err != nil {
		h.fail(ctx, id, err)
		h.writeStoreError(w, "failed to save results", err)
		return
	}

	log.Info().
		Str("status", string(to)).
		Int("matched", result.Counts.Matched).
		Int("exceptions", len(exceptions)).
		Msg("execution finished")

	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, ExecuteResponse{
		RunID:          id,
		Status:         to,
		Metrics:        metrics,
		ExceptionCount: len(exceptions),
		OutputFiles:    outputs,
		Warnings:       warnings,
	})
}

// Complete closes a run under review.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.store.TransitionStatus(ctx, id, store.StatusReview, store.StatusCompleted); err != nil {
		h.writeStoreError(w, "run cannot be completed", err)
		return
	}
	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		h.writeStoreError(w, "run not found", err)
		return
	}

	h.logger.Info().Str("run_id", id).Msg("run completed")
	writeJSON(w, http.StatusOK, run)
}

// prepare loads a run and builds runner options from its uploads. It writes
// the error response itself and reports false when the request cannot go on.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request, id string) (*store.Run, runner.Options, bool) {
	ctx := r.Context()

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		h.writeStoreError(w, "run not found", err)
		return nil, runner.Options{}, false
	}
	files, err := h.store.ListFiles(ctx, id)
	if err != nil {
		h.writeStoreError(w, "failed to list files", err)
		return nil, runner.Options{}, false
	}

	opts := runner.Options{
		Category:         run.Category,
		TaxYear:          run.Year,
		OutputDir:        h.files.OutputDir(id),
		OutputNameFormat: h.cfg.OutputNameFormat,
		CSV:              h.cfg.CSV,
	}
	if h.cfg.MinExpected != nil {
		opts.MinExpectedRecords = h.cfg.MinExpected(string(run.Category))
	}
	for _, f := range files {
		switch f.Role {
		case store.RoleSourceA:
			opts.SourceAPath = f.StoredPath
		case store.RoleSourceB:
			opts.SourceBPath = f.StoredPath
		}
	}

	var missing []string
	if opts.SourceAPath == "" {
		missing = append(missing, "source_a")
	}
	if opts.SourceBPath == "" {
		missing = append(missing, "source_b")
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "both source files must be uploaded first",
			fmt.Errorf("missing: %s", strings.Join(missing, ", ")))
		return nil, runner.Options{}, false
	}

	return run, opts, true
}

// outputFiles turns the written workbooks into file records.
func (h *Handler) outputFiles(runID string, outcome *runner.Outcome) []store.RunFile {
	now := h.now()
	var files []store.RunFile
	for _, out := range []struct {
		role store.FileRole
		path string
	}{
		{store.RoleImport, outcome.Paths.Import},
		{store.RoleChangeReport, outcome.Paths.ChangeReport},
		{store.RoleExceptions, outcome.Paths.Exceptions},
	} {
		if out.path == "" {
			continue
		}
		size, err := utils.GetFileSize(out.path)
		if err != nil {
			h.logger.Warn().Err(err).Str("path", out.path).Msg("output file not readable")
		}
		files = append(files, store.NewRunFile(runID, out.role, filepath.Base(out.path), out.path, size, xlsxMimeType, now))
	}
	return files
}

// fail moves a processing run to failed, logging rather than returning
// errors since the caller is already reporting one.
func (h *Handler) fail(ctx context.Context, runID string, cause error) {
	h.logger.Error().Err(cause).Str("run_id", runID).Msg("execution failed")
	if err := h.store.TransitionStatus(ctx, runID, store.StatusProcessing, store.StatusFailed); err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Msg("failed to mark run as failed")
	}
}

// =============================================================================
// REVIEW ENDPOINTS
// =============================================================================

// ListExceptions returns a run's exceptions in creation order.
func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	var filter store.ExceptionFilter
	if kind := q.Get("kind"); kind != "" {
		switch k := types.ExceptionKind(kind); k {
		case types.ExceptionNoCounterpart, types.ExceptionDuplicateKey, types.ExceptionStatusAnomaly:
			filter.Kind = k
		default:
			writeError(w, http.StatusBadRequest, "invalid kind", fmt.Errorf("unknown exception kind %q", kind))
			return
		}
	}
	if raw := q.Get("resolution"); raw != "" {
		res, err := store.ParseResolution(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid resolution", err)
			return
		}
		filter.Resolution = res
	}

	if _, err := h.store.GetRun(r.Context(), id); err != nil {
		h.writeStoreError(w, "run not found", err)
		return
	}
	exceptions, err := h.store.ListExceptions(r.Context(), id, filter)
	if err != nil {
		h.writeStoreError(w, "failed to list exceptions", err)
		return
	}
	if exceptions == nil {
		exceptions = []store.ExceptionRecord{}
	}
	writeJSON(w, http.StatusOK, exceptions)
}

// ResolveException sets the resolution and note of one exception.
func (h *Handler) ResolveException(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exceptionID := chi.URLParam(r, "exceptionID")

	var req PatchExceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	res, err := store.ParseResolution(req.Resolution)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resolution", err)
		return
	}

	record, err := h.store.ResolveException(r.Context(), id, exceptionID, res, strings.TrimSpace(req.Note))
	if err != nil {
		h.writeStoreError(w, "failed to update exception", err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// BulkResolve sets the resolution of every pending exception in a run.
func (h *Handler) BulkResolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req BulkPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	res, err := store.ParseResolution(req.Resolution)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resolution", err)
		return
	}

	n := 0
	if res != store.ResolutionPending {
		if n, err = h.store.ResolvePending(r.Context(), id, res); err != nil {
			h.writeStoreError(w, "failed to update exceptions", err)
			return
		}
	}

	h.logger.Info().Str("run_id", id).Str("resolution", string(res)).Int("updated", n).Msg("exceptions resolved")
	writeJSON(w, http.StatusOK, BulkPatchResponse{UpdatedCount: n})
}

// =============================================================================
// FILE ENDPOINTS
// =============================================================================

// DownloadFile streams an upload or an output under its original name.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fileID := chi.URLParam(r, "fileID")

	record, err := h.store.GetFile(r.Context(), id, fileID)
	if err != nil {
		h.writeStoreError(w, "file not found", err)
		return
	}

	if !utils.FileExists(record.StoredPath) {
		writeError(w, http.StatusGone, "file no longer on disk", nil)
		return
	}
	f, err := os.Open(record.StoredPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open file", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stat file", err)
		return
	}

	if record.MimeType != "" {
		w.Header().Set("Content-Type", record.MimeType)
	}
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": record.OriginalName}))
	http.ServeContent(w, r, record.OriginalName, info.ModTime(), f)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps store sentinels to status codes.
func (h *Handler) writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, store.ErrRunLocked), errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.logger.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// writeRunError maps pipeline errors. Bad input files are the caller's
// problem; anything else is ours.
func (h *Handler) writeRunError(w http.ResponseWriter, runID, message string, err error) {
	switch {
	case errors.Is(err, types.ErrSchema), errors.Is(err, types.ErrInput), errors.Is(err, runner.ErrPreflightFailed):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		h.logger.Error().Err(err).Str("run_id", runID).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
