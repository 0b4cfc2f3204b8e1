package services

import (
	"context"

	"github.com/Glyph8/navermapCrawling/common/models"
)

// LogRepository stores crawl logs in PostgreSQL
type LogRepository struct {
	db DBTX
}

func NewLogRepository(db DBTX) LogStore {
	return &LogRepository{db: db}
}

func (r *LogRepository) Create(ctx context.Context, entry models.CrawlLog) error {
	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO crawl_logs (id, run_id, session_id, event_type, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.RunID, entry.SessionID, entry.EventType, entry.Message, details, entry.CreatedAt)
	return err
}

// ListByRun returns the newest logs of a run
func (r *LogRepository) ListByRun(ctx context.Context, runID string, limit int) ([]models.CrawlLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, run_id, session_id, event_type, message, details, created_at
		FROM crawl_logs WHERE run_id = $1 ORDER BY created_at DESC LIMIT $2`,
		runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.CrawlLog
	for rows.Next() {
		var l models.CrawlLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.SessionID, &l.EventType, &l.Message, &l.Details, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
