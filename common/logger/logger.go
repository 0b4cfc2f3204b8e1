package logger

import (
	"context"
	"sync"
	"time"

	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/Glyph8/navermapCrawling/common/services"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CrawlerLogHook implements zerolog.Hook interface
// for storing the logs of one run in the database
type CrawlerLogHook struct {
	store services.LogStore
	runID string
	wg    sync.WaitGroup
}

// NewCrawlerLogHook creates a hook tagging every entry with runID
func NewCrawlerLogHook(store services.LogStore, runID string) *CrawlerLogHook {
	return &CrawlerLogHook{
		store: store,
		runID: runID,
	}
}

// Run implements zerolog.Hook.Run
func (h *CrawlerLogHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.InfoLevel || level == zerolog.NoLevel {
		return
	}

	entry := newEntry(h.runID, level.String(), msg, map[string]interface{}{"level": level.String()})

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.store.Create(ctx, entry); err != nil {
			// the global logger carries no hook, so this cannot recurse
			log.Error().Err(err).Msg("Failed to log to database via hook")
		}
	}()
}

// Wait blocks until every pending insert finished
func (h *CrawlerLogHook) Wait() {
	h.wg.Wait()
}

func newEntry(runID, eventType, msg string, details map[string]interface{}) models.CrawlLog {
	return models.CrawlLog{
		ID:        uuid.NewString(),
		RunID:     pgtype.Text{String: runID, Valid: runID != ""},
		EventType: eventType,
		Message:   pgtype.Text{String: msg, Valid: msg != ""},
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}

// LogEvent represents a log event
type LogEvent struct {
	RunID     string
	EventType string
	Message   string
	Details   map[string]interface{}
}

// LogService records crawl lifecycle events in the database and on the console
type LogService struct {
	store services.LogStore
}

// NewLogService creates a new log service; a nil store only logs to the console
func NewLogService(store services.LogStore) *LogService {
	return &LogService{
		store: store,
	}
}

// Log creates a log entry in the database
func (s *LogService) Log(ctx context.Context, event LogEvent) error {
	logEntry := log.Info()
	if event.RunID != "" {
		logEntry = logEntry.Str("run", event.RunID)
	}
	logEntry.
		Str("eventType", event.EventType).
		Interface("details", event.Details).
		Msg(event.Message)

	if s.store == nil {
		return nil
	}
	if err := s.store.Create(ctx, newEntry(event.RunID, event.EventType, event.Message, event.Details)); err != nil {
		log.Error().Err(err).Msg("Failed to insert log into database")
		return err
	}
	return nil
}

// Error logs an error event
func (s *LogService) Error(ctx context.Context, runID, message string, err error, details map[string]interface{}) error {
	detailMap := map[string]interface{}{
		"error": err.Error(),
	}
	for k, v := range details {
		detailMap[k] = v
	}

	return s.Log(ctx, LogEvent{
		RunID:     runID,
		EventType: "error",
		Message:   message,
		Details:   detailMap,
	})
}

// RunStarted logs the start of a crawl run
func (s *LogService) RunStarted(ctx context.Context, runID string, searches int) error {
	return s.Log(ctx, LogEvent{
		RunID:     runID,
		EventType: "crawl.started",
		Message:   "Crawl run started",
		Details: map[string]interface{}{
			"searches": searches,
		},
	})
}

// SearchFinished logs the outcome of one (region, category) search
func (s *LogService) SearchFinished(ctx context.Context, runID, region, category, state string, collected int) error {
	return s.Log(ctx, LogEvent{
		RunID:     runID,
		EventType: "search.finished",
		Message:   "Search finished",
		Details: map[string]interface{}{
			"region":    region,
			"category":  category,
			"state":     state,
			"collected": collected,
		},
	})
}

// RunCompleted logs the completion of a crawl run
func (s *LogService) RunCompleted(ctx context.Context, runID, status string, collected int) error {
	return s.Log(ctx, LogEvent{
		RunID:     runID,
		EventType: "crawl.completed",
		Message:   "Crawl run completed",
		Details: map[string]interface{}{
			"status":    status,
			"collected": collected,
		},
	})
}
