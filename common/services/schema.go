package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS crawl_runs (
		id          TEXT PRIMARY KEY,
		site        TEXT NOT NULL,
		schema      TEXT NOT NULL,
		searches    JSONB NOT NULL DEFAULT '[]',
		status      TEXT NOT NULL,
		summaries   JSONB NOT NULL DEFAULT '[]',
		error       TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		finished_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS places (
		id           TEXT PRIMARY KEY,
		run_id       TEXT,
		schema       TEXT NOT NULL,
		key          TEXT NOT NULL,
		region       TEXT NOT NULL,
		category     TEXT NOT NULL,
		field_order  JSONB NOT NULL,
		fields       JSONB NOT NULL,
		missing      JSONB NOT NULL DEFAULT '[]',
		page         INTEGER NOT NULL DEFAULT 0,
		ordinal      INTEGER NOT NULL DEFAULT 0,
		collected_at TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS places_run_idx ON places (run_id, collected_at DESC)`,
	`CREATE INDEX IF NOT EXISTS places_region_category_idx ON places (region, category)`,
	`CREATE TABLE IF NOT EXISTS crawl_logs (
		id         TEXT PRIMARY KEY,
		run_id     TEXT,
		session_id TEXT,
		event_type TEXT NOT NULL,
		message    TEXT,
		details    JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS crawl_logs_run_idx ON crawl_logs (run_id, created_at DESC)`,
}

// Migrate creates the tables the crawler writes to. Every statement is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("Database schema up to date")
	return nil
}
