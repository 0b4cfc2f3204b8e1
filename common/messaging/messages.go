package messaging

import (
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/models"
)

// PlaceMessage is published once per collected place
type PlaceMessage struct {
	models.Place
}

// RunFinishedMessage is published when a run reaches a terminal status
type RunFinishedMessage struct {
	RunID     string            `json:"run_id"`
	Status    models.RunStatus  `json:"status"`
	Collected int               `json:"collected"`
	Summaries []crawler.Summary `json:"summaries"`
}
