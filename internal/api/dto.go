package api

import (
	"github.com/ginjaninja78/filingsync/internal/store"
	"github.com/ginjaninja78/filingsync/internal/types"
)

// =============================================================================
// REQUESTS
// =============================================================================

// CreateRunRequest is the body of POST /api/runs.
type CreateRunRequest struct {
	Year     int    `json:"year"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

// PatchExceptionRequest is the body of PATCH /api/runs/{id}/exceptions/{exceptionID}.
type PatchExceptionRequest struct {
	Resolution string `json:"resolution"`
	Note       string `json:"note"`
}

// BulkPatchRequest is the body of PATCH /api/runs/{id}/exceptions.
type BulkPatchRequest struct {
	Resolution string `json:"resolution"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// RunDetail is a run with everything attached to it.
type RunDetail struct {
	store.Run
	Files             []store.RunFile             `json:"files"`
	Metrics           *store.Metrics              `json:"metrics,omitempty"`
	ExceptionCounts   map[types.ExceptionKind]int `json:"exception_counts"`
	PendingExceptions int                         `json:"pending_exceptions"`
}

// ExecuteResponse is returned by POST /api/runs/{id}/execute.
type ExecuteResponse struct {
	RunID          string          `json:"run_id"`
	Status         store.RunStatus `json:"status"`
	Metrics        store.Metrics   `json:"metrics"`
	ExceptionCount int             `json:"exception_count"`
	OutputFiles    []store.RunFile `json:"output_files"`
	Warnings       []string        `json:"warnings"`
}

// BulkPatchResponse reports how many exceptions a bulk update changed.
type BulkPatchResponse struct {
	UpdatedCount int `json:"updated_count"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Volume   string `json:"volume"`
	Database string `json:"database"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Report  any    `json:"report,omitempty"`
}
