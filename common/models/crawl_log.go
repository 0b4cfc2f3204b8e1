package models

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// CrawlLog is one row of the crawl_logs table
type CrawlLog struct {
	ID        string
	RunID     pgtype.Text
	SessionID pgtype.Text
	EventType string
	Message   pgtype.Text
	Details   map[string]interface{}
	CreatedAt time.Time
}

func (l CrawlLog) Response() CrawlLogResponse {
	return CrawlLogResponse{
		ID:        l.ID,
		RunID:     l.RunID,
		EventType: l.EventType,
		Message:   l.Message,
		Details:   l.Details,
		CreatedAt: l.CreatedAt,
	}
}
