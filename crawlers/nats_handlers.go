package crawlers

import (
	"context"
	"errors"

	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/constants"
	"github.com/Glyph8/navermapCrawling/common/crawler"
	"github.com/Glyph8/navermapCrawling/common/messaging"
	"github.com/Glyph8/navermapCrawling/common/work"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// RegisterConsumers starts consuming crawl requests; the returned context stops consumption
func RegisterConsumers(ctx context.Context, broker *messaging.NatsBroker, cfg config.Config, dispatcher Dispatcher) (jetstream.ConsumeContext, error) {
	if broker == nil {
		return nil, errors.New("nats client is nil")
	}

	if _, err := messaging.EnsureStream(ctx, broker, cfg.Nats.Stream, constants.StreamSubjects); err != nil {
		return nil, err
	}
	consumer, err := messaging.GetJetStreamConsumer(ctx, broker, cfg.Nats.Stream, constants.CrawlRequestSubject)
	if err != nil {
		return nil, err
	}

	log.Info().Str("subject", constants.CrawlRequestSubject).Msg("Registering crawl request consumer")
	return messaging.Consume(ctx, consumer, CrawlRequestHandler(dispatcher))
}

// CrawlRequestHandler adapts HandleCrawlRequest to JetStream messages
func CrawlRequestHandler(dispatcher Dispatcher) messaging.JetStreamMessageHandler {
	return func(ctx context.Context, msg jetstream.Msg) error {
		log.Info().Str("subject", msg.Subject()).Msg("Received crawl request")
		return HandleCrawlRequest(ctx, dispatcher, msg.Data())
	}
}

// HandleCrawlRequest starts or cancels a run. Malformed requests and runs
// that are already running are dropped; only dispatch failures are
// returned so the request is redelivered.
func HandleCrawlRequest(ctx context.Context, dispatcher Dispatcher, data []byte) error {
	req, err := messaging.DecodeCrawlRequest(data)
	if err == nil {
		err = validate.Struct(req)
	}
	if err != nil {
		log.Error().Err(err).Msg("Dropping malformed crawl request")
		return nil
	}

	switch req.Type {
	case constants.CrawlCancelAction:
		cancelled, err := dispatcher.Cancel(ctx, req.RunID)
		if err != nil {
			return err
		}
		log.Info().Str("run", req.RunID).Bool("was_running", cancelled).Msg("Crawl run cancel handled")
		return nil
	default:
		runID, err := dispatcher.Submit(ctx, req)
		switch {
		case errors.Is(err, work.ErrAlreadyRunning):
			log.Info().Str("run", runID).Msg("Crawl run already running, ignoring request")
			return nil
		case errors.Is(err, ErrNoSearches), errors.Is(err, crawler.ErrUnknownSite), errors.Is(err, crawler.ErrInvalidSite):
			log.Error().Err(err).Msg("Dropping crawl request that cannot run")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info().Str("run", runID).Msg("Crawl run accepted")
		return nil
	}
}
