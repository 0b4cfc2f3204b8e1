package constants

// ActionType defines the type of action a message represents.
type ActionType string

const (
	// CrawlRunAction starts a crawl run over regions x categories.
	CrawlRunAction ActionType = "crawl:run"
	// CrawlCancelAction cancels a running crawl run.
	CrawlCancelAction ActionType = "crawl:cancel"
)
