package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/Glyph8/navermapCrawling/common/messaging"
	"github.com/Glyph8/navermapCrawling/common/models"
)

// NatsSink publishes every record as a PlaceMessage
type NatsSink struct {
	publisher messaging.Publisher
	subject   string
	runID     string
}

func NewNatsSink(publisher messaging.Publisher, subject, runID string) *NatsSink {
	return &NatsSink{publisher: publisher, subject: subject, runID: runID}
}

func (s *NatsSink) Write(ctx context.Context, rec extract.Record) error {
	data, err := json.Marshal(messaging.PlaceMessage{Place: models.PlaceFromRecord(rec, s.runID)})
	if err != nil {
		return fmt.Errorf("encode place: %w", err)
	}
	return s.publisher.PublishSync(ctx, s.subject, data)
}
