package services

import (
	"context"

	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the repositories use
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PlaceService defines the interface for place database operations
type PlaceService interface {
	// Upsert inserts a place or refreshes the stored copy with the same id
	Upsert(ctx context.Context, place models.Place) error

	// UpsertBatch upserts several places in one round trip
	UpsertBatch(ctx context.Context, places []models.Place) error

	// ListByRun lists places collected by a run, newest first
	ListByRun(ctx context.Context, runID string, limit, offset int) ([]models.Place, error)

	// CountByRun counts places collected by a run
	CountByRun(ctx context.Context, runID string) (int64, error)
}

// RunService defines the interface for crawl run database operations
type RunService interface {
	Create(ctx context.Context, run models.CrawlRun) error

	// UpdateStatus sets the run status; terminal statuses also stamp finished_at
	UpdateStatus(ctx context.Context, id string, status models.RunStatus, errorMessage string) error

	// AppendSummary adds the summary of one finished search
	AppendSummary(ctx context.Context, id string, summary crawler.Summary) error

	GetByID(ctx context.Context, id string) (models.CrawlRun, error)

	// ListRecent lists runs, newest first
	ListRecent(ctx context.Context, limit int) ([]models.CrawlRun, error)
}

// LogStore defines the interface for crawl log database operations
type LogStore interface {
	Create(ctx context.Context, entry models.CrawlLog) error
	ListByRun(ctx context.Context, runID string, limit int) ([]models.CrawlLog, error)
}
