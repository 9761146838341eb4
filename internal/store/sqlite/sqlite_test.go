package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ginjaninja78/filingsync/internal/store"
	"github.com/ginjaninja78/filingsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func createRun(t *testing.T, st *Store, year int, category types.Category) *store.Run {
	t.Helper()
	run, err := store.NewRun(year, category, "", time.Now())
	require.NoError(t, err)
	require.NoError(t, st.CreateRun(context.Background(), run))
	return run
}

func TestRunCRUD(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.Ping(ctx))

	a := createRun(t, st, 2024, types.CategoryFinancial)
	createRun(t, st, 2024, types.CategoryAnnual)
	createRun(t, st, 2023, types.CategoryAnnual)

	got, err := st.GetRun(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, store.StatusUploading, got.Status)
	assert.WithinDuration(t, a.CreatedAt, got.CreatedAt, time.Millisecond)
	assert.Nil(t, got.StartedAt)

	runs, err := st.ListRuns(ctx, store.RunFilter{Year: 2024})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = st.ListRuns(ctx, store.RunFilter{Category: types.CategoryAnnual, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	require.NoError(t, st.DeleteRun(ctx, a.ID))
	_, err = st.GetRun(ctx, a.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.True(t, errors.Is(st.DeleteRun(ctx, a.ID), store.ErrNotFound))
}

func TestTransitionStatusIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	run := createRun(t, st, 2024, types.CategoryFinancial)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- st.TransitionStatus(ctx, run.ID, store.StatusUploading, store.StatusProcessing)
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for err := range results {
		if err == nil {
			won++
			continue
		}
		assert.True(t, errors.Is(err, store.ErrConflict))
	}
	assert.Equal(t, 1, won)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusProcessing, got.Status)
	assert.NotNil(t, got.StartedAt)

	assert.True(t, errors.Is(st.TransitionStatus(ctx, "missing", store.StatusUploading, store.StatusProcessing), store.ErrNotFound))
	assert.True(t, errors.Is(st.TransitionStatus(ctx, run.ID, store.StatusUploading, store.StatusCompleted), store.ErrConflict))
	assert.True(t, errors.Is(st.DeleteRun(ctx, run.ID), store.ErrConflict))
}

func TestUploadsReplaceSameRole(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	run := createRun(t, st, 2024, types.CategoryFinancial)
	now := time.Now()

	first := store.NewRunFile(run.ID, store.RoleSourceA, "a.xlsx", "/tmp/a.xlsx", 10, "", now)
	second := store.NewRunFile(run.ID, store.RoleSourceA, "a2.xlsx", "/tmp/a2.xlsx", 12, "", now)
	other := store.NewRunFile(run.ID, store.RoleSourceB, "b.xlsx", "/tmp/b.xlsx", 20, "", now)
	require.NoError(t, st.AddUpload(ctx, first))
	require.NoError(t, st.AddUpload(ctx, second))
	require.NoError(t, st.AddUpload(ctx, other))

	files, err := st.ListFiles(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)

	got, err := st.GetFile(ctx, run.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2.xlsx", got.OriginalName)
	_, err = st.GetFile(ctx, run.ID, first.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	output := store.NewRunFile(run.ID, store.RoleImport, "import.xlsx", "/tmp/i.xlsx", 1, "", now)
	assert.True(t, errors.Is(st.AddUpload(ctx, output), store.ErrInvalid))

	require.NoError(t, st.TransitionStatus(ctx, run.ID, store.StatusUploading, store.StatusProcessing))
	assert.True(t, errors.Is(st.AddUpload(ctx, other), store.ErrConflict))
}

func executedRun(t *testing.T, st *Store, to store.RunStatus) (*store.Run, []store.ExceptionRecord) {
	t.Helper()
	ctx := context.Background()
	run := createRun(t, st, 2024, types.CategoryAnnual)
	require.NoError(t, st.TransitionStatus(ctx, run.ID, store.StatusUploading, store.StatusProcessing))

	exceptions := store.NewExceptionRecords(run.ID, []types.Exception{
		{Kind: types.ExceptionNoCounterpart, SourceAKey: "111", Detail: "no match", Fields: map[string]string{"department": "2"}},
		{Kind: types.ExceptionStatusAnomaly, SourceAKey: "222", SourceBID: "9", Detail: "completed without submission"},
		{Kind: types.ExceptionDuplicateKey, SourceAKey: "333", Detail: "duplicate"},
	}, time.Now())
	files := []store.RunFile{
		store.NewRunFile(run.ID, store.RoleImport, "import.xlsx", "/out/import.xlsx", 100, "", time.Now()),
	}
	metrics := store.Metrics{
		Counts:            types.Counts{TotalA: 5, TotalB: 6, Matched: 4, Unmatched: 1, StatusAnomaly: 1},
		ProcessingSeconds: 0.25,
	}
	require.NoError(t, st.SaveOutcome(ctx, run.ID, to, metrics, files, exceptions))
	return run, exceptions
}

func TestSaveOutcome(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	run, _ := executedRun(t, st, store.StatusReview)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReview, got.Status)
	assert.NotNil(t, got.CompletedAt)

	m, err := st.GetMetrics(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Matched)
	assert.Equal(t, 0.25, m.ProcessingSeconds)

	all, err := st.ListExceptions(ctx, run.ID, store.ExceptionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, map[string]string{"department": "2"}, all[0].Fields)

	anomalies, err := st.ListExceptions(ctx, run.ID, store.ExceptionFilter{Kind: types.ExceptionStatusAnomaly})
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "9", anomalies[0].SourceBRef)

	// A second save finds the run no longer processing.
	err = st.SaveOutcome(ctx, run.ID, store.StatusCompleted, store.Metrics{}, nil, nil)
	assert.True(t, errors.Is(err, store.ErrConflict))

	_, err = st.GetMetrics(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestResolveExceptions(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	run, exceptions := executedRun(t, st, store.StatusReview)

	e, err := st.ResolveException(ctx, run.ID, exceptions[0].ID, store.ResolutionAcknowledged, "new client")
	require.NoError(t, err)
	assert.Equal(t, store.ResolutionAcknowledged, e.Resolution)
	assert.Equal(t, "new client", e.Note)
	assert.NotNil(t, e.ResolvedAt)

	_, err = st.ResolveException(ctx, run.ID, "missing", store.ResolutionDismissed, "")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	n, err := st.ResolvePending(ctx, run.ID, store.ResolutionDismissed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := st.ListExceptions(ctx, run.ID, store.ExceptionFilter{Resolution: store.ResolutionPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, st.TransitionStatus(ctx, run.ID, store.StatusReview, store.StatusCompleted))
	_, err = st.ResolveException(ctx, run.ID, exceptions[1].ID, store.ResolutionPending, "")
	assert.True(t, errors.Is(err, store.ErrRunLocked))
	_, err = st.ResolvePending(ctx, run.ID, store.ResolutionAcknowledged)
	assert.True(t, errors.Is(err, store.ErrRunLocked))
	assert.True(t, errors.Is(st.DeleteRun(ctx, run.ID), store.ErrRunLocked))
}
