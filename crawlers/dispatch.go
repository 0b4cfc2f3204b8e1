package crawlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Glyph8/navermapCrawling/common/constants"
	"github.com/Glyph8/navermapCrawling/common/messaging"
	"github.com/Glyph8/navermapCrawling/common/work"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Dispatcher starts and cancels crawl runs
type Dispatcher interface {
	// Submit accepts a run request and returns its run id without waiting for the run
	Submit(ctx context.Context, req messaging.CrawlRequest) (string, error)
	// Cancel stops a run, reporting whether it was running
	Cancel(ctx context.Context, runID string) (bool, error)
}

// Validate checks that req names a known site and has something to crawl
func (r *Runner) Validate(req Request) error {
	if len(req.Searches) == 0 {
		return ErrNoSearches
	}
	_, err := r.site(req)
	return err
}

// LocalDispatcher runs crawls in this process
type LocalDispatcher struct {
	runner *Runner
	work   *work.WorkManager
	base   context.Context
	wg     sync.WaitGroup
}

// NewLocalDispatcher runs every submitted crawl under base, which is
// cancelled to stop all of them
func NewLocalDispatcher(base context.Context, runner *Runner, wm *work.WorkManager) *LocalDispatcher {
	return &LocalDispatcher{runner: runner, work: wm, base: base}
}

func (d *LocalDispatcher) Submit(ctx context.Context, msg messaging.CrawlRequest) (string, error) {
	req := RequestFromMessage(msg, d.runner.cfg)
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if err := d.runner.Validate(req); err != nil {
		return "", err
	}

	running, err := d.work.IsRunning(ctx, req.RunID)
	if err != nil {
		return "", err
	}
	if running {
		return req.RunID, fmt.Errorf("%w: %s", work.ErrAlreadyRunning, req.RunID)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		result, err := d.runner.Run(d.base, req)
		event := log.Info()
		if err != nil {
			event = log.Warn().Err(err)
		}
		event.
			Str("run", req.RunID).
			Str("status", string(result.Status)).
			Int("collected", result.Collected).
			Msg("Crawl run finished")
	}()
	return req.RunID, nil
}

func (d *LocalDispatcher) Cancel(ctx context.Context, runID string) (bool, error) {
	return d.work.Cancel(ctx, runID)
}

// Wait blocks until every submitted run returned
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}

// NatsDispatcher hands runs to whichever worker consumes the crawl request subject
type NatsDispatcher struct {
	publisher messaging.Publisher
	work      *work.WorkManager
}

func NewNatsDispatcher(publisher messaging.Publisher, wm *work.WorkManager) *NatsDispatcher {
	return &NatsDispatcher{publisher: publisher, work: wm}
}

func (d *NatsDispatcher) publish(ctx context.Context, req messaging.CrawlRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode crawl request: %w", err)
	}
	return d.publisher.PublishSync(ctx, constants.CrawlRequestSubject, data)
}

func (d *NatsDispatcher) Submit(ctx context.Context, req messaging.CrawlRequest) (string, error) {
	req.Type = constants.CrawlRunAction
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if err := d.publish(ctx, req); err != nil {
		return "", err
	}
	return req.RunID, nil
}

// Cancel clears the shared running mark and tells the owning worker
func (d *NatsDispatcher) Cancel(ctx context.Context, runID string) (bool, error) {
	running, err := d.work.Cancel(ctx, runID)
	if err != nil {
		return false, err
	}
	err = d.publish(ctx, messaging.CrawlRequest{Type: constants.CrawlCancelAction, RunID: runID})
	return running, err
}
