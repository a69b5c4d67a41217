package nats

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"settlement-gateway/internal/core/domain"
	"settlement-gateway/pkg/apperror"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// DepositHandler is the slice of the settlement service the consumer drives.
type DepositHandler interface {
	NotifyDeposit(ctx context.Context, n domain.DepositNotification) (*domain.Payment, error)
}

// Message is the part of jetstream.Msg the consumer uses.
type Message interface {
	Data() []byte
	Ack() error
	Term() error
	NakWithDelay(delay time.Duration) error
}

type disposition int

const (
	ack disposition = iota
	term
	nak
)

func (d disposition) String() string {
	switch d {
	case ack:
		return "ack"
	case term:
		return "term"
	default:
		return "nak"
	}
}

// DepositConsumer feeds observed deposits into the settlement service.
type DepositConsumer struct {
	handler  DepositHandler
	nakDelay time.Duration
	log      zerolog.Logger
}

func NewDepositConsumer(handler DepositHandler, nakDelay time.Duration, log zerolog.Logger) *DepositConsumer {
	return &DepositConsumer{
		handler:  handler,
		nakDelay: nakDelay,
		log:      log.With().Str("component", "deposit_consumer").Logger(),
	}
}

// Run consumes until ctx is cancelled.
func (c *DepositConsumer) Run(ctx context.Context, consumer jetstream.Consumer) error {
	iter, err := consumer.Messages()
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		iter.Stop()
	}()

	c.log.Info().Msg("deposit consumer started")
	for {
		msg, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				c.log.Info().Msg("deposit consumer stopped")
				return ctx.Err()
			}
			c.log.Error().Err(err).Msg("fetching next deposit message")
			continue
		}
		c.Handle(ctx, msg)
	}
}

// Handle processes one message and settles its fate on the stream.
func (c *DepositConsumer) Handle(ctx context.Context, msg Message) {
	var n domain.DepositNotification
	if err := json.Unmarshal(msg.Data(), &n); err != nil || !wellFormed(n) {
		c.log.Error().Err(err).Bytes("data", msg.Data()).Msg("malformed deposit message, terminating")
		c.settle(msg, term)
		return
	}

	log := c.log.With().Str("payment_id", n.PaymentID).Str("observed_tx_id", n.ObservedTxID).Logger()

	p, err := c.handler.NotifyDeposit(ctx, n)
	d := classify(err)
	switch {
	case err == nil:
		log.Info().Str("status", string(p.Status)).Msg("deposit applied")
	case d == nak:
		log.Warn().Err(err).Dur("nak_delay", c.nakDelay).Msg("deposit not applied, will redeliver")
	default:
		log.Info().Err(err).Str("error_code", apperror.Code(err)).Msg("deposit not applicable, acknowledging")
	}
	c.settle(msg, d)
}

func (c *DepositConsumer) settle(msg Message, d disposition) {
	var err error
	switch d {
	case ack:
		err = msg.Ack()
	case term:
		err = msg.Term()
	default:
		err = msg.NakWithDelay(c.nakDelay)
	}
	if err != nil {
		c.log.Error().Err(err).Stringer("disposition", d).Msg("settling deposit message")
	}
}

func wellFormed(n domain.DepositNotification) bool {
	return n.PaymentID != "" && n.ObservedAmount > 0 && domain.ValidTxID(n.ObservedTxID)
}

// classify decides what a NotifyDeposit outcome means for redelivery.
// Outcomes a retry cannot change are acknowledged; a message the service
// refuses to read is terminated.
func classify(err error) disposition {
	if err == nil {
		return ack
	}
	code := apperror.Code(err)
	switch {
	case code == "VAL_000":
		return term
	case strings.HasPrefix(code, "VAL_"), strings.HasPrefix(code, "PAY_"):
		return ack
	case code == "LDG_002", code == "KEY_001":
		return ack
	default:
		return nak
	}
}
