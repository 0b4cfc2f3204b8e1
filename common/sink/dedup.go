package sink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/extract"
	"github.com/Glyph8/navermapCrawling/common/models"
	"github.com/rs/zerolog"
)

const seenKeyPrefix = "place:seen:"

// Claimer sets a key only when it is absent and releases it again;
// RedisClient implements it
type Claimer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// DedupSink forwards a record only the first time its key is seen within ttl.
// Places listed under several searches are written once. When the claim
// itself fails the record is forwarded; when the forward fails the claim is
// released so a later listing of the place can retry it.
type DedupSink struct {
	claimer Claimer
	next    crawler.Sink
	ttl     time.Duration
	dropped atomic.Int64
}

func NewDedupSink(claimer Claimer, next crawler.Sink, ttl time.Duration) *DedupSink {
	return &DedupSink{claimer: claimer, next: next, ttl: ttl}
}

// Dropped is the number of duplicates not forwarded
func (s *DedupSink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *DedupSink) Write(ctx context.Context, rec extract.Record) error {
	id := models.PlaceID(rec.Schema(), rec.Key())
	key := seenKeyPrefix + id
	fresh, err := s.claimer.SetNX(ctx, key, time.Now().Unix(), s.ttl)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Dedup claim failed, forwarding record")
		return s.next.Write(ctx, rec)
	}
	if !fresh {
		s.dropped.Add(1)
		zerolog.Ctx(ctx).Debug().Str("key", rec.Key()).Msg("Duplicate place, not forwarded")
		return nil
	}

	if err := s.next.Write(ctx, rec); err != nil {
		if derr := s.claimer.Delete(context.WithoutCancel(ctx), key); derr != nil {
			zerolog.Ctx(ctx).Warn().Err(derr).Str("key", rec.Key()).Msg("Failed to release dedup claim")
		}
		return err
	}
	return nil
}
