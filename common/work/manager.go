package work

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/Glyph8/navermapCrawling/common/redis"
	"github.com/Glyph8/navermapCrawling/common/services"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const (
	workStateKeyPrefix = "crawl:run:"
	runningState       = "running"
	// DefaultWorkTimeout is how long a run stays marked running without a heartbeat
	DefaultWorkTimeout = 2 * time.Hour
)

var ErrAlreadyRunning = errors.New("run is already running")

// WorkManager tracks which crawl runs are running. State lives in a
// StateStore with an expiry refreshed by Resume, so a run whose process died
// stops being reported as running. Cancel functions of runs started in this
// process are kept so Cancel can stop them directly.
type WorkManager struct {
	state   StateStore
	runs    services.RunService
	timeout time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewWorkManager creates a WorkManager; runs may be nil, in which case run
// status is only kept in the state store
func NewWorkManager(state StateStore, runs services.RunService) *WorkManager {
	return &WorkManager{
		state:   state,
		runs:    runs,
		timeout: DefaultWorkTimeout,
		cancels: make(map[string]context.CancelFunc),
	}
}

func (wm *WorkManager) getWorkKey(workID string) string {
	return workStateKeyPrefix + workID
}

// Start marks a run as running and remembers cancel. It fails with
// ErrAlreadyRunning if the run is already marked.
func (wm *WorkManager) Start(ctx context.Context, workID string, cancel context.CancelFunc) error {
	ok, err := wm.state.SetNX(ctx, wm.getWorkKey(workID), runningState, wm.timeout)
	if err != nil {
		return fmt.Errorf("failed to start work %s: %w", workID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, workID)
	}

	if cancel != nil {
		wm.mu.Lock()
		wm.cancels[workID] = cancel
		wm.mu.Unlock()
	}

	if err := wm.updateRunStatus(ctx, workID, models.RunStatusRunning, ""); err != nil {
		log.Warn().Err(err).Str("workID", workID).Msg("failed to persist run status to DB")
	}
	return nil
}

// IsRunning checks if a run is currently marked as running
func (wm *WorkManager) IsRunning(ctx context.Context, workID string) (bool, error) {
	state, err := wm.state.Get(ctx, wm.getWorkKey(workID))
	if err != nil {
		if redis.IsNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get work state for %s: %w", workID, err)
	}
	return state == runningState, nil
}

func (wm *WorkManager) release(ctx context.Context, workID string) (context.CancelFunc, error) {
	wm.mu.Lock()
	cancel := wm.cancels[workID]
	delete(wm.cancels, workID)
	wm.mu.Unlock()

	if err := wm.state.Delete(ctx, wm.getWorkKey(workID)); err != nil {
		return cancel, fmt.Errorf("failed to remove work %s: %w", workID, err)
	}
	return cancel, nil
}

// Complete clears the running mark and records the final status
func (wm *WorkManager) Complete(ctx context.Context, workID string, status models.RunStatus, errorMessage string) error {
	cancel, err := wm.release(ctx, workID)
	if cancel != nil {
		cancel()
	}
	if err != nil {
		return err
	}

	if err := wm.updateRunStatus(ctx, workID, status, errorMessage); err != nil {
		log.Warn().Err(err).Str("workID", workID).Msg("failed to persist run completion to DB")
	}
	return nil
}

// Cancel stops a run. A run started by this process is cancelled directly;
// a run owned by another process notices the cleared mark at its next
// heartbeat. It reports whether the run was running.
func (wm *WorkManager) Cancel(ctx context.Context, workID string) (bool, error) {
	running, err := wm.IsRunning(ctx, workID)
	if err != nil {
		return false, err
	}

	cancel, err := wm.release(ctx, workID)
	if cancel != nil {
		cancel()
		running = true
	}
	if err != nil {
		return running, err
	}
	if !running {
		return false, nil
	}

	if err := wm.updateRunStatus(ctx, workID, models.RunStatusCancelled, ""); err != nil {
		log.Warn().Err(err).Str("workID", workID).Msg("failed to persist run cancellation to DB")
	}
	return true, nil
}

// ListRunningWorks returns the ids of all runs marked as running
func (wm *WorkManager) ListRunningWorks(ctx context.Context) ([]string, error) {
	keys, err := wm.state.Keys(ctx, workStateKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan for running works: %w", err)
	}

	workIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		workIDs = append(workIDs, strings.TrimPrefix(key, workStateKeyPrefix))
	}
	return workIDs, nil
}

// Resume is the run heartbeat: it extends the running mark and reports
// whether the run should continue
func (wm *WorkManager) Resume(ctx context.Context, workID string) (bool, error) {
	running, err := wm.IsRunning(ctx, workID)
	if err != nil || !running {
		return running, err
	}

	if err := wm.state.Set(ctx, wm.getWorkKey(workID), runningState, wm.timeout); err != nil {
		return true, fmt.Errorf("failed to extend work session for %s: %w", workID, err)
	}
	return true, nil
}

// updateRunStatus records status, creating the run row when it is missing
func (wm *WorkManager) updateRunStatus(ctx context.Context, workID string, status models.RunStatus, errorMessage string) error {
	if wm.runs == nil {
		return nil
	}

	err := wm.runs.UpdateStatus(ctx, workID, status, errorMessage)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	now := time.Now().UTC()
	if err := wm.runs.Create(ctx, models.CrawlRun{
		ID:        workID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("create run row: %w", err)
	}
	if status.Terminal() {
		return wm.runs.UpdateStatus(ctx, workID, status, errorMessage)
	}
	return nil
}
