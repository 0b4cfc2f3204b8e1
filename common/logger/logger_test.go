package logger

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []models.CrawlLog
	err     error
}

func (m *memoryStore) Create(_ context.Context, entry models.CrawlLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryStore) ListByRun(context.Context, string, int) ([]models.CrawlLog, error) {
	return m.entries, nil
}

func TestCrawlerLogHookStoresInfoAndAbove(t *testing.T) {
	store := &memoryStore{}
	hook := NewCrawlerLogHook(store, "run-1")
	l := zerolog.New(io.Discard).Level(zerolog.DebugLevel).Hook(hook)

	l.Debug().Msg("ignored")
	l.Info().Msg("Crawl session started")
	l.Warn().Msg("Item skipped")
	hook.Wait()

	require.Len(t, store.entries, 2)
	for _, e := range store.entries {
		assert.Equal(t, "run-1", e.RunID.String)
		assert.True(t, e.RunID.Valid)
		assert.NotEmpty(t, e.ID)
	}
	types := []string{store.entries[0].EventType, store.entries[1].EventType}
	assert.ElementsMatch(t, []string{"info", "warn"}, types)
}

func TestLogServiceError(t *testing.T) {
	store := &memoryStore{}
	svc := NewLogService(store)

	err := svc.Error(context.Background(), "run-2", "Search aborted", errors.New("listing lost"), map[string]interface{}{"region": "서울시 광진구 능동"})
	require.NoError(t, err)

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, "error", entry.EventType)
	assert.Equal(t, "listing lost", entry.Details["error"])
	assert.Equal(t, "서울시 광진구 능동", entry.Details["region"])
}

func TestLogServiceWithoutStore(t *testing.T) {
	svc := NewLogService(nil)
	assert.NoError(t, svc.RunStarted(context.Background(), "run-3", 42))
}

func TestLogServiceStoreFailure(t *testing.T) {
	svc := NewLogService(&memoryStore{err: errors.New("db down")})
	assert.Error(t, svc.RunCompleted(context.Background(), "run-4", "completed", 3))
}

func TestSetupWritesRotatingFile(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() {
		log.Logger = previous
		zerolog.DefaultContextLogger = nil
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	cfg := config.DefaultConfig()
	cfg.Log.Pretty = false
	cfg.Log.Level = "warn"
	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "crawler.log")

	closer, err := Setup(cfg)
	require.NoError(t, err)

	log.Info().Msg("below level")
	log.Warn().Msg("written")
	zerolog.Ctx(context.Background()).Warn().Msg("via context")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "below level")
	assert.Contains(t, string(data), "written")
	assert.Contains(t, string(data), "via context")
}
