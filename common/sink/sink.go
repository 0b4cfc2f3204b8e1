// Package sink holds the destinations a crawl session writes records to.
package sink

import (
	"context"
	"errors"
	"sync"

	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/rs/zerolog"
)

// Multi writes every record to all sinks, in order, and joins their errors
func Multi(sinks ...crawler.Sink) crawler.Sink {
	return crawler.SinkFunc(func(ctx context.Context, rec extract.Record) error {
		var errs []error
		for _, s := range sinks {
			if err := s.Write(ctx, rec); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// BestEffort forwards every record to next and logs its failures instead of
// returning them
func BestEffort(next crawler.Sink) crawler.Sink {
	return crawler.SinkFunc(func(ctx context.Context, rec extract.Record) error {
		if err := next.Write(ctx, rec); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("key", rec.Key()).Msg("Failed to write record to shared stores")
		}
		return nil
	})
}

// Memory keeps records in memory
type Memory struct {
	mu      sync.Mutex
	records []extract.Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Write(_ context.Context, rec extract.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of the records written so far
func (m *Memory) Records() []extract.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]extract.Record(nil), m.records...)
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
