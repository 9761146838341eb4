// Package store holds the persisted model of reconciliation runs: the run
// itself, its files, its metrics and its exceptions with their review state.
//
// STATUS MACHINE:
//
//	uploading -> processing -> review -> completed
//	                        -> completed
//	                        -> failed
//
// Every transition is a compare-and-swap on the current status, so at most
// one execution of a run can be in flight. A completed run is locked: no
// uploads, deletes or exception resolutions.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates a missing run, file or exception.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the run is not in the status the operation
	// requires.
	ErrConflict = errors.New("run status conflict")

	// ErrRunLocked indicates an attempt to modify a completed run.
	ErrRunLocked = errors.New("run is completed and locked")

	// ErrInvalid indicates a request value outside its allowed set.
	ErrInvalid = errors.New("invalid value")
)

// Tax years accepted for a run.
const (
	MinYear = 2020
	MaxYear = 2100
)

// =============================================================================
// ENUMS
// =============================================================================

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusUploading  RunStatus = "uploading"
	StatusProcessing RunStatus = "processing"
	StatusReview     RunStatus = "review"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

var transitions = map[RunStatus][]RunStatus{
	StatusUploading:  {StatusProcessing},
	StatusProcessing: {StatusReview, StatusCompleted, StatusFailed},
	StatusReview:     {StatusCompleted},
}

// CanTransition reports whether from -> to is an edge of the status machine.
func CanTransition(from, to RunStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatus is the status a successful execution moves to.
func NextStatus(result *types.Result) RunStatus {
	if result.NeedsReview() {
		return StatusReview
	}
	return StatusCompleted
}

// FileRole says what a stored file is.
type FileRole string

const (
	RoleSourceA      FileRole = "source_a_upload"
	RoleSourceB      FileRole = "source_b_upload"
	RoleImport       FileRole = "import_output"
	RoleChangeReport FileRole = "change_report"
	RoleExceptions   FileRole = "exceptions_report"
)

// IsUpload reports whether the role is an operator-supplied input.
func (r FileRole) IsUpload() bool {
	return r == RoleSourceA || r == RoleSourceB
}

// ParseUploadRole accepts "source_a", "source_b" or the full role names.
func ParseUploadRole(s string) (FileRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source_a", string(RoleSourceA):
		return RoleSourceA, nil
	case "source_b", string(RoleSourceB):
		return RoleSourceB, nil
	}
	return "", fmt.Errorf("%w: file role %q (expected source_a or source_b)", ErrInvalid, s)
}

// Severity ranks an exception for the review queue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor returns the review severity of an exception kind.
func SeverityFor(kind types.ExceptionKind) Severity {
	switch kind {
	case types.ExceptionNoCounterpart:
		return SeverityHigh
	case types.ExceptionDuplicateKey:
		return SeverityLow
	}
	return SeverityMedium
}

// Resolution is the review state of an exception.
type Resolution string

const (
	ResolutionPending      Resolution = "pending"
	ResolutionAcknowledged Resolution = "acknowledged"
	ResolutionDismissed    Resolution = "dismissed"
)

// ParseResolution validates a resolution name.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(s))); r {
	case ResolutionPending, ResolutionAcknowledged, ResolutionDismissed:
		return r, nil
	}
	return "", fmt.Errorf("%w: resolution %q", ErrInvalid, s)
}

// =============================================================================
// MODELS
// =============================================================================

// Run is one reconciliation of a category and tax year.
type Run struct {
	ID          string         `json:"id"`
	Year        int            `json:"year"`
	Category    types.Category `json:"category"`
	Status      RunStatus      `json:"status"`
	Notes       string         `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// NewRun validates the inputs and returns a run in the uploading state.
func NewRun(year int, category types.Category, notes string, now time.Time) (*Run, error) {
	if year < MinYear || year > MaxYear {
		return nil, fmt.Errorf("%w: year %d outside %d-%d", ErrInvalid, year, MinYear, MaxYear)
	}
	if category != types.CategoryFinancial && category != types.CategoryAnnual {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalid, types.ErrUnknownCategory, category)
	}
	return &Run{
		ID:        uuid.NewString(),
		Year:      year,
		Category:  category,
		Status:    StatusUploading,
		Notes:     strings.TrimSpace(notes),
		CreatedAt: now.UTC(),
	}, nil
}

// RunFile is an uploaded input or a generated output.
type RunFile struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Role         FileRole  `json:"role"`
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"-"`
	SizeBytes    int64     `json:"size_bytes"`
	MimeType     string    `json:"mime_type,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// NewRunFile returns a file record with a fresh id.
func NewRunFile(runID string, role FileRole, name, path string, size int64, mime string, now time.Time) RunFile {
	return RunFile{
		ID:           uuid.NewString(),
		RunID:        runID,
		Role:         role,
		OriginalName: name,
		StoredPath:   path,
		SizeBytes:    size,
		MimeType:     mime,
		UploadedAt:   now.UTC(),
	}
}

// Metrics are the counts of a finished execution.
type Metrics struct {
	types.Counts
	ProcessingSeconds float64 `json:"processing_seconds"`
}

// ExceptionRecord is a persisted exception with its review state.
type ExceptionRecord struct {
	ID          string              `json:"id"`
	RunID       string              `json:"run_id"`
	Kind        types.ExceptionKind `json:"kind"`
	Severity    Severity            `json:"severity"`
	SourceARef  string              `json:"source_a_ref,omitempty"`
	SourceBRef  string              `json:"source_b_ref,omitempty"`
	Name        string              `json:"name,omitempty"`
	Description string              `json:"description"`
	Fields      map[string]string   `json:"fields,omitempty"`
	Resolution  Resolution          `json:"resolution"`
	Note        string              `json:"note,omitempty"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NewExceptionRecords converts engine exceptions into pending records.
func NewExceptionRecords(runID string, exceptions []types.Exception, now time.Time) []ExceptionRecord {
	records := make([]ExceptionRecord, 0, len(exceptions))
	for _, e := range exceptions {
		records = append(records, ExceptionRecord{
			ID:          uuid.NewString(),
			RunID:       runID,
			Kind:        e.Kind,
			Severity:    SeverityFor(e.Kind),
			SourceARef:  e.SourceAKey,
			SourceBRef:  e.SourceBID,
			Name:        e.Name,
			Description: e.Detail,
			Fields:      e.Fields,
			Resolution:  ResolutionPending,
			CreatedAt:   now.UTC(),
		})
	}
	return records
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Year     int
	Category types.Category
	Limit    int
	Offset   int
}

// ExceptionFilter narrows ListExceptions. Zero values match everything.
type ExceptionFilter struct {
	Kind       types.ExceptionKind
	Resolution Resolution
}
