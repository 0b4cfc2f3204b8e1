package services

import (
	"context"
	"fmt"

	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/jackc/pgx/v5"
)

const selectRunColumns = `id, site, schema, searches, status, summaries, error, created_at, updated_at, finished_at`

// RunRepository is a PostgreSQL implementation of RunService
type RunRepository struct {
	db DBTX
}

// NewRunRepository creates a new PostgreSQL RunRepository
func NewRunRepository(db DBTX) RunService {
	return &RunRepository{
		db: db,
	}
}

func (r *RunRepository) Create(ctx context.Context, run models.CrawlRun) error {
	searches := run.Searches
	if searches == nil {
		searches = []crawler.Search{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO crawl_runs (id, site, schema, searches, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		run.ID, run.Site, run.Schema, searches, string(run.Status), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateStatus sets the run status; terminal statuses also stamp finished_at
func (r *RunRepository) UpdateStatus(ctx context.Context, id string, status models.RunStatus, errorMessage string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE crawl_runs SET
			status = $2,
			error = NULLIF($3, ''),
			updated_at = now(),
			finished_at = CASE WHEN $4 THEN now() ELSE finished_at END
		WHERE id = $1`,
		id, string(status), errorMessage, status.Terminal())
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AppendSummary adds the summary of one finished search
func (r *RunRepository) AppendSummary(ctx context.Context, id string, summary crawler.Summary) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE crawl_runs SET summaries = summaries || $2::jsonb, updated_at = now() WHERE id = $1`,
		id, []crawler.Summary{summary})
	if err != nil {
		return fmt.Errorf("append summary to run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRun(row pgx.Row) (models.CrawlRun, error) {
	var run models.CrawlRun
	var status string
	err := row.Scan(
		&run.ID, &run.Site, &run.Schema, &run.Searches, &status, &run.Summaries,
		&run.Error, &run.CreatedAt, &run.UpdatedAt, &run.FinishedAt,
	)
	run.Status = models.RunStatus(status)
	return run, err
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (models.CrawlRun, error) {
	return scanRun(r.db.QueryRow(ctx, `SELECT `+selectRunColumns+` FROM crawl_runs WHERE id = $1`, id))
}

// ListRecent lists runs, newest first
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]models.CrawlRun, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectRunColumns+` FROM crawl_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.CrawlRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
