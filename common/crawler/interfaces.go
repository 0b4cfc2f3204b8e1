package crawler

import (
	"context"
	"strings"

	"github.com/Glyph8/navermapCrawling/common/extract"
)

// Sink receives every record that passes the region filter, one call per record.
// A sink shared between sessions must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, rec extract.Record) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, rec extract.Record) error

func (f SinkFunc) Write(ctx context.Context, rec extract.Record) error {
	return f(ctx, rec)
}

// Search is one (region, category) unit of work
type Search struct {
	Region   string `json:"region" validate:"required"`
	Category string `json:"category" validate:"required"`
}

// Query joins region and category into the query submitted to the site
func (s Search) Query() string {
	return strings.TrimSpace(s.Region + " " + s.Category)
}

func (s Search) String() string {
	return s.Query()
}
