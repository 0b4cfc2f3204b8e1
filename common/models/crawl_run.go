package models

import (
	"time"

	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/jackc/pgx/v5/pgtype"
)

// RunStatus is the lifecycle of a crawl run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run can no longer change
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// CrawlRun is one request to crawl a set of searches
type CrawlRun struct {
	ID         string             `json:"id"`
	Site       string             `json:"site"`
	Schema     string             `json:"schema"`
	Searches   []crawler.Search   `json:"searches"`
	Status     RunStatus          `json:"status"`
	Summaries  []crawler.Summary  `json:"summaries"`
	Error      pgtype.Text        `json:"error"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	FinishedAt pgtype.Timestamptz `json:"finished_at"`
}

// Collected sums collected records over all finished searches
func (r CrawlRun) Collected() int {
	total := 0
	for _, s := range r.Summaries {
		total += s.Counters.Collected
	}
	return total
}

type CrawlLogResponse struct {
	ID        string      `json:"id"`
	RunID     pgtype.Text `json:"run_id"`
	EventType string      `json:"event_type"`
	Message   pgtype.Text `json:"message"`
	Details   interface{} `json:"details"`
	CreatedAt time.Time   `json:"created_at"`
}

type RunDetailResponse struct {
	Run     CrawlRun           `json:"run"`
	Running bool               `json:"running"`
	Logs    []CrawlLogResponse `json:"logs"`
}
