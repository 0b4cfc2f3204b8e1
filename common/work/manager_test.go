package work

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuns struct {
	mu       sync.Mutex
	statuses map[string]models.RunStatus
	created  []string
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{statuses: map[string]models.RunStatus{}}
}

func (f *fakeRuns) Create(_ context.Context, run models.CrawlRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, run.ID)
	f.statuses[run.ID] = run.Status
	return nil
}

func (f *fakeRuns) UpdateStatus(_ context.Context, id string, status models.RunStatus, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.statuses[id]; !ok {
		return pgx.ErrNoRows
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeRuns) AppendSummary(context.Context, string, crawler.Summary) error {
	return nil
}

func (f *fakeRuns) GetByID(_ context.Context, id string) (models.CrawlRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.CrawlRun{ID: id, Status: f.statuses[id]}, nil
}

func (f *fakeRuns) ListRecent(context.Context, int) ([]models.CrawlRun, error) {
	return nil, nil
}

func (f *fakeRuns) status(id string) models.RunStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

func TestWorkManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	runs := newFakeRuns()
	wm := NewWorkManager(NewMemoryState(), runs)

	require.NoError(t, wm.Start(ctx, "run-1", nil))
	assert.ErrorIs(t, wm.Start(ctx, "run-1", nil), ErrAlreadyRunning)
	assert.Equal(t, []string{"run-1"}, runs.created)
	assert.Equal(t, models.RunStatusRunning, runs.status("run-1"))

	running, err := wm.IsRunning(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, running)

	ids, err := wm.ListRunningWorks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)

	alive, err := wm.Resume(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, alive)

	require.NoError(t, wm.Complete(ctx, "run-1", models.RunStatusCompleted, ""))
	assert.Equal(t, models.RunStatusCompleted, runs.status("run-1"))

	running, err = wm.IsRunning(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, running)

	alive, err = wm.Resume(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestWorkManagerCancelStopsLocalRun(t *testing.T) {
	ctx := context.Background()
	runs := newFakeRuns()
	wm := NewWorkManager(NewMemoryState(), runs)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, wm.Start(ctx, "run-2", cancel))

	cancelled, err := wm.Cancel(ctx, "run-2")
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.ErrorIs(t, runCtx.Err(), context.Canceled)
	assert.Equal(t, models.RunStatusCancelled, runs.status("run-2"))

	cancelled, err = wm.Cancel(ctx, "run-2")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestWorkManagerWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	wm := NewWorkManager(NewMemoryState(), nil)

	require.NoError(t, wm.Start(ctx, "run-3", nil))
	require.NoError(t, wm.Complete(ctx, "run-3", models.RunStatusFailed, "listing lost"))
}

func TestMemoryStateExpiry(t *testing.T) {
	ctx := context.Background()
	state := NewMemoryState()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	state.now = func() time.Time { return now }

	ok, err := state.SetNX(ctx, "crawl:run:a", "running", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = state.SetNX(ctx, "crawl:run:a", "running", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, state.Set(ctx, "other", 42, 0))
	v, err := state.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	keys, err := state.Keys(ctx, "crawl:run:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"crawl:run:a"}, keys)

	now = now.Add(2 * time.Minute)
	_, err = state.Get(ctx, "crawl:run:a")
	assert.Error(t, err)

	ok, err = state.SetNX(ctx, "crawl:run:a", "running", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
