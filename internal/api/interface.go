package api

import (
	"context"

	"github.com/ginjaninja78/filingsync/internal/runner"
	"github.com/ginjaninja78/filingsync/internal/store"
	"github.com/ginjaninja78/filingsync/internal/validation"
)

// RunStore persists runs and their artifacts. The handlers depend on this
// interface, not on a concrete database.
//
//go:generate mockgen -destination=mocks/mock_api.go -package=mocks -source=interface.go RunStore,Executor
type RunStore interface {
	Ping(ctx context.Context) error

	CreateRun(ctx context.Context, run *store.Run) error
	GetRun(ctx context.Context, id string) (*store.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]store.Run, error)
	DeleteRun(ctx context.Context, id string) error
	TransitionStatus(ctx context.Context, id string, from, to store.RunStatus) error

	AddUpload(ctx context.Context, file store.RunFile) error
	ListFiles(ctx context.Context, runID string) ([]store.RunFile, error)
	GetFile(ctx context.Context, runID, fileID string) (*store.RunFile, error)

	SaveOutcome(ctx context.Context, runID string, to store.RunStatus, metrics store.Metrics, files []store.RunFile, exceptions []store.ExceptionRecord) error
	GetMetrics(ctx context.Context, runID string) (*store.Metrics, error)

	ListExceptions(ctx context.Context, runID string, filter store.ExceptionFilter) ([]store.ExceptionRecord, error)
	ResolveException(ctx context.Context, runID, exceptionID string, resolution store.Resolution, note string) (*store.ExceptionRecord, error)
	ResolvePending(ctx context.Context, runID string, resolution store.Resolution) (int, error)
}

// Executor runs the reconciliation pipeline.
type Executor interface {
	Preflight(ctx context.Context, opts runner.Options) (*validation.Report, error)
	Run(ctx context.Context, opts runner.Options) (*runner.Outcome, error)
}
