package crawlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Glyph8/navermapCrawling/common/constants"
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/messaging"
	"github.com/Glyph8/navermapCrawling/common/work"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	submitted []messaging.CrawlRequest
	cancelled []string
	err       error
}

func (f *fakeDispatcher) Submit(_ context.Context, req messaging.CrawlRequest) (string, error) {
	f.submitted = append(f.submitted, req)
	return req.RunID, f.err
}

func (f *fakeDispatcher) Cancel(_ context.Context, runID string) (bool, error) {
	f.cancelled = append(f.cancelled, runID)
	return true, f.err
}

func encode(t *testing.T, req messaging.CrawlRequest) []byte {
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func TestHandleCrawlRequest(t *testing.T) {
	ctx := context.Background()

	d := &fakeDispatcher{}
	require.NoError(t, HandleCrawlRequest(ctx, d, encode(t, messaging.CrawlRequest{
		Type:    constants.CrawlRunAction,
		RunID:   "run-1",
		Regions: []string{"서울시 광진구 능동"},
	})))
	require.NoError(t, HandleCrawlRequest(ctx, d, encode(t, messaging.CrawlRequest{
		Type:  constants.CrawlCancelAction,
		RunID: "run-1",
	})))
	require.Len(t, d.submitted, 1)
	assert.Equal(t, "run-1", d.submitted[0].RunID)
	assert.Equal(t, []string{"run-1"}, d.cancelled)
}

func TestHandleCrawlRequestDropsBadRequests(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{}

	assert.NoError(t, HandleCrawlRequest(ctx, d, []byte("{not json")))
	assert.NoError(t, HandleCrawlRequest(ctx, d, encode(t, messaging.CrawlRequest{Type: "crawl:pause"})))
	assert.NoError(t, HandleCrawlRequest(ctx, d, encode(t, messaging.CrawlRequest{
		Type:     constants.CrawlRunAction,
		Searches: []crawler.Search{{Region: "서울시 광진구 능동"}},
	})))
	assert.Empty(t, d.submitted)

	d.err = work.ErrAlreadyRunning
	assert.NoError(t, HandleCrawlRequest(ctx, d, encode(t, messaging.CrawlRequest{Type: constants.CrawlRunAction})))

	d.err = crawler.ErrUnknownSite
	assert.NoError(t, HandleCrawlRequest(ctx, d, encode(t, messaging.CrawlRequest{Type: constants.CrawlRunAction})))
}

func TestHandleCrawlRequestRedeliversOnFailure(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("db down")}
	err := HandleCrawlRequest(context.Background(), d, encode(t, messaging.CrawlRequest{Type: constants.CrawlRunAction}))
	assert.Error(t, err)
}

func TestLocalDispatcher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.Regions = []string{"서울시 광진구 능동"}
	cfg.Crawl.Categories = []string{"공원"}
	wm := work.NewWorkManager(work.NewMemoryState(), nil)
	runner, err := NewRunner(cfg, Deps{Open: openStatic(t), Work: wm})
	require.NoError(t, err)

	d := NewLocalDispatcher(context.Background(), runner, wm)
	runID, err := d.Submit(context.Background(), messaging.CrawlRequest{Type: constants.CrawlRunAction})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	d.Wait()

	running, err := wm.IsRunning(context.Background(), runID)
	require.NoError(t, err)
	assert.False(t, running)

	_, err = d.Submit(context.Background(), messaging.CrawlRequest{Type: constants.CrawlRunAction, Site: "kakaomap"})
	assert.ErrorIs(t, err, crawler.ErrUnknownSite)

	require.NoError(t, wm.Start(context.Background(), "busy", nil))
	_, err = d.Submit(context.Background(), messaging.CrawlRequest{Type: constants.CrawlRunAction, RunID: "busy"})
	assert.ErrorIs(t, err, work.ErrAlreadyRunning)

	cancelled, err := d.Cancel(context.Background(), "busy")
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestNatsDispatcher(t *testing.T) {
	publisher := &recordingPublisher{}
	wm := work.NewWorkManager(work.NewMemoryState(), nil)
	d := NewNatsDispatcher(publisher, wm)

	runID, err := d.Submit(context.Background(), messaging.CrawlRequest{Regions: []string{"서울시 광진구 능동"}})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	cancelled, err := d.Cancel(context.Background(), runID)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, []string{constants.CrawlRequestSubject, constants.CrawlRequestSubject}, publisher.subjects)
}
