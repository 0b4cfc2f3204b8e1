package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/Glyph8/navermapCrawling/common/constants"
	"github.com/Glyph8/navermapCrawling/common/crawler"
)

// CrawlRequest asks a worker to start or cancel a run. Searches, when set,
// replace the regions x categories product.
type CrawlRequest struct {
	Type       constants.ActionType `json:"type" validate:"required,oneof=crawl:run crawl:cancel"`
	RunID      string               `json:"run_id,omitempty"`
	Site       string               `json:"site,omitempty"`
	Schema     string               `json:"schema,omitempty"`
	Regions    []string             `json:"regions,omitempty"`
	Categories []string             `json:"categories,omitempty"`
	Searches   []crawler.Search     `json:"searches,omitempty" validate:"dive"`
}

// DecodeCrawlRequest parses a request and checks its action type
func DecodeCrawlRequest(data []byte) (CrawlRequest, error) {
	var req CrawlRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return CrawlRequest{}, fmt.Errorf("decode crawl request: %w", err)
	}
	switch req.Type {
	case constants.CrawlRunAction:
	case constants.CrawlCancelAction:
		if req.RunID == "" {
			return CrawlRequest{}, fmt.Errorf("cancel request without run_id")
		}
	default:
		return CrawlRequest{}, fmt.Errorf("unknown action type %q", req.Type)
	}
	return req, nil
}
