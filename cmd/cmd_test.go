package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/messaging"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/Glyph8/navermapCrawling/common/work"
	"github.com/Glyph8/navermapCrawling/crawlers"
	"github.com/Glyph8/navermapCrawling/crawlers/navermap"
	"github.com/Glyph8/navermapCrawling/middlewares"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailHTML = `<html><body>
<span class="GHAhO">뚝섬한강공원</span>
<span class="lnJFt">공원</span>
<span class="LDgIH">서울 광진구 강변북로 139</span>
</body></html>`

type nopDispatcher struct{}

func (nopDispatcher) Submit(_ context.Context, req messaging.CrawlRequest) (string, error) {
	return "run-1", nil
}

func (nopDispatcher) Cancel(context.Context, string) (bool, error) {
	return false, nil
}

func TestExtractFile(t *testing.T) {
	cfg = config.DefaultConfig()

	var out bytes.Buffer
	require.NoError(t, extractFile(context.Background(), &out, detailHTML, extractOptions{region: "서울시 광진구 자양동"}))
	assert.Contains(t, out.String(), "뚝섬한강공원")
	assert.Contains(t, out.String(), navermap.FieldDescription+"*")
	assert.Contains(t, out.String(), "true")

	out.Reset()
	require.NoError(t, extractFile(context.Background(), &out, detailHTML, extractOptions{json: true}))
	var body struct {
		Schema string            `json:"schema"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, navermap.SchemaPlace, body.Schema)
	assert.Equal(t, "공원", body.Fields[navermap.FieldCategory])

	err := extractFile(context.Background(), &out, detailHTML, extractOptions{site: "kakaomap"})
	assert.ErrorIs(t, err, crawler.ErrUnknownSite)
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, crawlers.Result{
		RunID:  "run-1",
		Status: models.RunStatusCompleted,
		Summaries: []crawler.Summary{{
			Search:   crawler.Search{Region: "서울시 광진구 능동", Category: "카페"},
			State:    crawler.StateDone,
			Counters: crawler.Counters{Visited: 3, Collected: 2, Skipped: 1, Filtered: 1},
		}},
		Collected: 2,
		Files:     []string{"crawling_results/a.csv"},
	})

	assert.Contains(t, out.String(), "서울시 광진구 능동")
	assert.Contains(t, out.String(), "run run-1 completed: 2 collected")
	assert.Contains(t, out.String(), "crawling_results/a.csv")

	out.Reset()
	printResult(&out, crawlers.Result{})
	assert.Empty(t, out.String())
}

func TestServerRoutes(t *testing.T) {
	serverCfg := config.DefaultConfig()
	serverCfg.Security.BackendApiKey = "secret"

	server := NewAppHttpServer(serverCfg)
	server.SetDispatcher(nopDispatcher{}, work.NewWorkManager(work.NewMemoryState(), nil))
	server.setupRoute()

	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/crawls", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/crawls", nil)
	req.Header.Set(middlewares.ApiKeyHeader, "secret")
	rec = httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/health/database", nil)
	req.Header.Set(middlewares.ApiKeyHeader, "secret")
	rec = httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
