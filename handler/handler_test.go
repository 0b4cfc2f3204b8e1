package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/messaging"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/Glyph8/navermapCrawling/common/work"
	"github.com/Glyph8/navermapCrawling/crawlers/navermap"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	submitted []messaging.CrawlRequest
	err       error
	running   map[string]bool
}

func (f *fakeDispatcher) Submit(_ context.Context, req messaging.CrawlRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, req)
	if req.RunID == "" {
		req.RunID = "generated"
	}
	return req.RunID, nil
}

func (f *fakeDispatcher) Cancel(_ context.Context, runID string) (bool, error) {
	return f.running[runID], nil
}

type fakeRuns struct {
	runs map[string]models.CrawlRun
}

func (f *fakeRuns) Create(_ context.Context, run models.CrawlRun) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRuns) UpdateStatus(context.Context, string, models.RunStatus, string) error {
	return nil
}

func (f *fakeRuns) AppendSummary(context.Context, string, crawler.Summary) error {
	return nil
}

func (f *fakeRuns) GetByID(_ context.Context, id string) (models.CrawlRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return models.CrawlRun{}, pgx.ErrNoRows
	}
	return run, nil
}

func (f *fakeRuns) ListRecent(context.Context, int) ([]models.CrawlRun, error) {
	out := make([]models.CrawlRun, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	return out, nil
}

type fakeLogs struct{}

func (fakeLogs) Create(context.Context, models.CrawlLog) error { return nil }

func (fakeLogs) ListByRun(_ context.Context, runID string, _ int) ([]models.CrawlLog, error) {
	return []models.CrawlLog{{
		ID:        "log-1",
		RunID:     pgtype.Text{String: runID, Valid: true},
		EventType: "crawl.started",
		Message:   pgtype.Text{String: "Crawl run started", Valid: true},
		CreatedAt: time.Now(),
	}}, nil
}

type fakePlaces struct {
	places []models.Place
}

func (f *fakePlaces) Upsert(context.Context, models.Place) error        { return nil }
func (f *fakePlaces) UpsertBatch(context.Context, []models.Place) error { return nil }

func (f *fakePlaces) ListByRun(_ context.Context, _ string, limit, offset int) ([]models.Place, error) {
	end := min(offset+limit, len(f.places))
	if offset >= end {
		return []models.Place{}, nil
	}
	return f.places[offset:end], nil
}

func (f *fakePlaces) CountByRun(context.Context, string) (int64, error) {
	return int64(len(f.places)), nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) {
	body := struct {
		Data interface{} `json:"data"`
	}{Data: data}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
}

func TestRunCrawl(t *testing.T) {
	d := &fakeDispatcher{}
	h := NewCrawlerHandler(d, work.NewWorkManager(work.NewMemoryState(), nil), Repositories{})

	rec := do(t, h.Router(), http.MethodPost, "/", CrawlRunParams{
		Regions:    []string{"서울시 광진구 능동"},
		Categories: []string{"공원"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	decode(t, rec, &resp)
	assert.Equal(t, "generated", resp["run_id"])
	require.Len(t, d.submitted, 1)
	assert.Equal(t, []string{"공원"}, d.submitted[0].Categories)

	rec = do(t, h.Router(), http.MethodPost, "/", CrawlRunParams{Searches: []crawler.Search{{Region: "서울시 광진구 능동"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunCrawlErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{work.ErrAlreadyRunning, http.StatusConflict},
		{crawler.ErrUnknownSite, http.StatusBadRequest},
		{errors.New("nats down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewCrawlerHandler(&fakeDispatcher{err: tt.err}, work.NewWorkManager(work.NewMemoryState(), nil), Repositories{})
			rec := do(t, h.Router(), http.MethodPost, "/", CrawlRunParams{})
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetRun(t *testing.T) {
	ctx := context.Background()
	wm := work.NewWorkManager(work.NewMemoryState(), nil)
	require.NoError(t, wm.Start(ctx, "run-1", nil))

	runs := &fakeRuns{runs: map[string]models.CrawlRun{
		"run-1": {ID: "run-1", Site: "navermap", Status: models.RunStatusRunning},
	}}
	h := NewCrawlerHandler(&fakeDispatcher{}, wm, Repositories{Runs: runs, Logs: fakeLogs{}})

	rec := do(t, h.Router(), http.MethodGet, "/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail models.RunDetailResponse
	decode(t, rec, &detail)
	assert.Equal(t, "navermap", detail.Run.Site)
	assert.True(t, detail.Running)
	require.Len(t, detail.Logs, 1)
	assert.Equal(t, "crawl.started", detail.Logs[0].EventType)

	rec = do(t, h.Router(), http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h.Router(), http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.CrawlRun
	decode(t, rec, &list)
	assert.Len(t, list, 1)
}

func TestGetRunWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	wm := work.NewWorkManager(work.NewMemoryState(), nil)
	require.NoError(t, wm.Start(ctx, "run-1", nil))
	h := NewCrawlerHandler(&fakeDispatcher{}, wm, Repositories{})

	rec := do(t, h.Router(), http.MethodGet, "/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h.Router(), http.MethodGet, "/run-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h.Router(), http.MethodGet, "/", nil)
	var list []models.CrawlRun
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "run-1", list[0].ID)

	rec = do(t, h.Router(), http.MethodGet, "/run-1/places", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCancelRun(t *testing.T) {
	d := &fakeDispatcher{running: map[string]bool{"run-1": true}}
	h := NewCrawlerHandler(d, work.NewWorkManager(work.NewMemoryState(), nil), Repositories{})

	assert.Equal(t, http.StatusOK, do(t, h.Router(), http.MethodDelete, "/run-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h.Router(), http.MethodDelete, "/run-2", nil).Code)
}

func TestListPlaces(t *testing.T) {
	places := &fakePlaces{}
	for _, name := range []string{"a", "b", "c"} {
		places.places = append(places.places, models.Place{ID: name})
	}
	h := NewCrawlerHandler(&fakeDispatcher{}, work.NewWorkManager(work.NewMemoryState(), nil), Repositories{Places: places})

	rec := do(t, h.Router(), http.MethodGet, "/run-1/places?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []models.Place      `json:"data"`
		Meta models.MetaResponse `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "c", body.Data[0].ID)
	assert.Equal(t, int64(2), body.Meta.LastPage)
}

const detailHTML = `<html><body>
<span class="GHAhO">서울어린이대공원</span>
<span class="lnJFt">공원</span>
<span class="LDgIH">서울 광진구 능동로 216</span>
</body></html>`

func TestExtract(t *testing.T) {
	h := NewExtractHandler(config.DefaultConfig())

	rec := do(t, h.Router(), http.MethodPost, "/", ExtractParams{HTML: detailHTML, Region: "서울시 광진구 능동"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ExtractResponse
	decode(t, rec, &resp)
	assert.Equal(t, navermap.SiteName, resp.Site)
	assert.Equal(t, navermap.SchemaPlace, resp.Schema)
	require.NotNil(t, resp.RegionMatch)
	assert.True(t, *resp.RegionMatch)

	fields := make(map[string]ExtractedField, len(resp.Fields))
	for _, f := range resp.Fields {
		fields[f.Field] = f
	}
	assert.Equal(t, "서울어린이대공원", fields[navermap.FieldName].Value)
	assert.False(t, fields[navermap.FieldName].Missing)
	assert.Equal(t, navermap.Sentinel, fields[navermap.FieldDescription].Value)
	assert.True(t, fields[navermap.FieldDescription].Missing)

	rec = do(t, h.Router(), http.MethodPost, "/", ExtractParams{Site: "kakaomap", HTML: detailHTML})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Router(), http.MethodPost, "/", ExtractParams{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSites(t *testing.T) {
	rec := do(t, NewExtractHandler(config.DefaultConfig()).Router(), http.MethodGet, "/sites", nil)
	var sites []string
	decode(t, rec, &sites)
	assert.Contains(t, sites, navermap.SiteName)
}

func TestHealth(t *testing.T) {
	assert.Equal(t, http.StatusOK, do(t, NewHealthHandler(nil).Router(), http.MethodGet, "/database", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, NewHealthHandler(pinger{}).Router(), http.MethodGet, "/database", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		do(t, NewHealthHandler(pinger{err: errors.New("refused")}).Router(), http.MethodGet, "/database", nil).Code)
}
