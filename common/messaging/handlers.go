package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamMessageHandler handles one JetStream message; a nil error acks it
type JetStreamMessageHandler func(ctx context.Context, msg jetstream.Msg) error

// ConsumerName derives the durable consumer name of a subject
func ConsumerName(subject string) string {
	return "consumer_" + strings.ReplaceAll(subject, ".", "-")
}

// GetJetStreamConsumer returns a durable pull consumer on subject
func GetJetStreamConsumer(ctx context.Context, client *NatsBroker, streamName, subject string) (jetstream.Consumer, error) {
	if client == nil || client.js == nil {
		return nil, errors.New("JetStream not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stream, err := EnsureStream(ctx, client, streamName, []string{subject})
	if err != nil {
		return nil, err
	}

	consumerName := ConsumerName(subject)
	consumerConfig := jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerConfig)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("stream", streamName).
		Str("subject", subject).
		Str("consumer", consumerName).
		Msg("Got JetStream pull consumer")

	return consumer, nil
}

// Consume dispatches messages to handler until the returned context is stopped.
// Long handlers keep the message alive with InProgress.
func Consume(ctx context.Context, consumer jetstream.Consumer, handler JetStreamMessageHandler) (jetstream.ConsumeContext, error) {
	return consumer.Consume(func(msg jetstream.Msg) {
		done := make(chan struct{})
		go keepAlive(msg, done)
		err := handler(ctx, msg)
		close(done)

		if err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("Message handler failed")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Warn().Err(nakErr).Msg("Failed to nak message")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Warn().Err(ackErr).Msg("Failed to ack message")
		}
	})
}

func keepAlive(msg jetstream.Msg, done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := msg.InProgress(); err != nil {
				log.Debug().Err(err).Msg("Failed to extend ack deadline")
			}
		}
	}
}

// EnsureStream ensures a stream exists with the specified subjects
func EnsureStream(ctx context.Context, client *NatsBroker, name string, subjects []string) (jetstream.Stream, error) {
	stream, err := client.GetStream(ctx, name)
	if err != nil {
		if !errors.Is(err, jetstream.ErrStreamNotFound) {
			log.Error().Err(err).Str("stream_name", name).Msg("Failed to get stream for unknown reasons")
			return nil, err
		}
		return client.CreateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: subjects,
		})
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	config := info.Config
	merged, added := MergeSubjects(config.Subjects, subjects)
	if !added {
		log.Debug().Str("stream_name", name).Msg("No new subjects to add to stream")
		return stream, nil
	}

	config.Subjects = merged
	log.Info().Strs("subjects", config.Subjects).Str("stream_name", name).Msg("Updating stream with new subjects")
	return client.CreateStream(ctx, config)
}

// MergeSubjects appends the subjects missing from existing and reports whether any were added
func MergeSubjects(existing, subjects []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[s] = struct{}{}
	}

	merged := append([]string(nil), existing...)
	for _, s := range subjects {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			merged = append(merged, s)
		}
	}
	return merged, len(merged) > len(existing)
}
