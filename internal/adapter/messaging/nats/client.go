// Package nats connects the engine to the chain observer's JetStream
// deposit stream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-gateway/config"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Client wraps a NATS connection with JetStream.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
	cfg  config.NATSConfig
	log  zerolog.Logger
}

// Connect dials NATS and opens a JetStream context.
func Connect(cfg config.NATSConfig, log zerolog.Logger) (*Client, error) {
	log = log.With().Str("component", "nats").Logger()

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			ev := log.Error().Err(err)
			if s != nil {
				ev = ev.Str("subject", s.Subject)
			}
			ev.Msg("NATS async error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	log.Info().Str("url", conn.ConnectedUrl()).Msg("NATS connection established")
	return &Client{conn: conn, js: js, cfg: cfg, log: log}, nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	c.conn.Close()
}

// EnsureDepositConsumer creates or updates the deposit stream and the
// durable consumer reading it.
func (c *Client) EnsureDepositConsumer(ctx context.Context) (jetstream.Consumer, error) {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  []string{c.cfg.Subject},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("creating/updating stream %s: %w", c.cfg.Stream, err)
	}

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Name:          c.cfg.Durable,
		Durable:       c.cfg.Durable,
		FilterSubject: c.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckWait:       c.cfg.AckWait,
		MaxDeliver:    c.cfg.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("creating/updating consumer %s: %w", c.cfg.Durable, err)
	}

	c.log.Info().
		Str("stream", c.cfg.Stream).
		Str("subject", c.cfg.Subject).
		Str("durable", c.cfg.Durable).
		Msg("deposit consumer ensured")
	return consumer, nil
}

// Ping implements ports.HealthChecker.
func (c *Client) Ping(_ context.Context) error {
	if !c.conn.IsConnected() {
		return errors.New("NATS not connected")
	}
	return nil
}

func (c *Client) Name() string {
	return "nats"
}
