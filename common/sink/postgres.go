package sink

import (
	"context"

	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/Glyph8/navermapCrawling/common/services"
)

// PostgresSink upserts every record into the places table
type PostgresSink struct {
	places services.PlaceService
	runID  string
}

func NewPostgresSink(places services.PlaceService, runID string) *PostgresSink {
	return &PostgresSink{places: places, runID: runID}
}

func (s *PostgresSink) Write(ctx context.Context, rec extract.Record) error {
	return s.places.Upsert(ctx, models.PlaceFromRecord(rec, s.runID))
}
