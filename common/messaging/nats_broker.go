package messaging

import (
	"context"
	"fmt"

	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Publisher publishes to a subject and waits for the stream acknowledgement
type Publisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) error
}

// NatsBroker wraps a NATS connection and its JetStream context
type NatsBroker struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	config config.Config
}

// NewNatsBroker connects to NATS
func NewNatsBroker(cfg config.Config) (*NatsBroker, error) {
	client := &NatsBroker{
		config: cfg,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *NatsBroker) connect() error {
	var err error

	opts := []nats.Option{
		nats.Name("navermap-crawler"),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("server", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			event := log.Error().Err(err)
			if sub != nil {
				event = event.Str("subject", sub.Subject)
			}
			event.Msg("Error handling NATS message")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}

	if c.config.Nats.Username != "" && c.config.Nats.Password != "" {
		opts = append(opts, nats.UserInfo(c.config.Nats.Username, c.config.Nats.Password))
	}

	c.conn, err = nats.Connect(c.config.Nats.URL(), opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(c.conn)
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}
	c.js = js

	log.Info().Str("server", c.conn.ConnectedUrl()).Msg("Connected to NATS")
	return nil
}

// Close drains the connection
func (c *NatsBroker) Close() error {
	if c.conn != nil && c.conn.IsConnected() {
		return c.conn.Drain()
	}
	return nil
}

// PublishSync publishes a message to a subject and waits for an acknowledgement
func (c *NatsBroker) PublishSync(ctx context.Context, subject string, data []byte) error {
	if c.js == nil {
		return fmt.Errorf("JetStream not initialized")
	}

	ack, err := c.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", subject, err)
	}

	log.Debug().Str("subject", subject).Str("stream", ack.Stream).Uint64("seq", ack.Sequence).Msg("Published message")
	return nil
}

// CreateStream creates or updates a JetStream stream
func (c *NatsBroker) CreateStream(ctx context.Context, config jetstream.StreamConfig) (jetstream.Stream, error) {
	if c.js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	stream, err := c.js.CreateOrUpdateStream(ctx, config)
	if err != nil {
		log.Error().Err(err).Str("stream", config.Name).Msg("Failed to create or update stream")
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	log.Info().
		Str("name", config.Name).
		Strs("subjects", config.Subjects).
		Msg("JetStream stream ready")

	return stream, nil
}

// GetStream gets a JetStream stream
func (c *NatsBroker) GetStream(ctx context.Context, streamName string) (jetstream.Stream, error) {
	if c.js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}

	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	return stream, nil
}

// SetupNatsBroker connects when NATS is enabled; it returns nil, nil otherwise
func SetupNatsBroker(cfg config.Config) (*NatsBroker, error) {
	if !cfg.Nats.Enabled {
		return nil, nil
	}

	client, err := NewNatsBroker(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating NATS client: %w", err)
	}

	return client, nil
}
