package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"petshop/internal/model"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Settler applies an out-of-band settlement outcome to a processing payment.
type Settler interface {
	Settle(ctx context.Context, req model.SettlementRequest) (*model.Payment, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// readRetryDelay is the pause after a failed read before the next attempt.
const readRetryDelay = time.Second

// SettlementConsumer reads settlement outcomes from Kafka.
type SettlementConsumer struct {
	reader     messageReader
	settler    Settler
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewSettlementConsumer creates a consumer of topic in groupID.
func NewSettlementConsumer(settler Settler, topic, groupID string, logger zerolog.Logger, brokers ...string) *SettlementConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6,
	})
	return newSettlementConsumer(reader, settler, logger)
}

func newSettlementConsumer(reader messageReader, settler Settler, logger zerolog.Logger) *SettlementConsumer {
	return &SettlementConsumer{
		reader:     reader,
		settler:    settler,
		retryDelay: readRetryDelay,
		logger:     logger.With().Str("component", "settlement-consumer").Logger(),
	}
}

// Run consumes until ctx is done. A failed read is retried after a pause.
func (c *SettlementConsumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.processMessage(ctx); err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
		}
	}
}

// Close closes the Kafka reader.
func (c *SettlementConsumer) Close() error {
	return c.reader.Close()
}

// processMessage handles one message. Only read failures are returned;
// bad or rejected messages are logged and skipped.
func (c *SettlementConsumer) processMessage(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		c.logger.Error().Err(err).Msg("error reading message")
		return err
	}

	var req model.SettlementRequest
	if err := json.Unmarshal(m.Value, &req); err != nil {
		c.logger.Error().Err(err).Int64("offset", m.Offset).Msg("error parsing settlement message")
		return nil
	}

	payment, err := c.settler.Settle(ctx, req)
	if err != nil {
		if de, ok := model.AsDomainError(err); ok {
			c.logger.Warn().Str("payment_id", req.PaymentID.String()).Str("code", de.Code).Msg("settlement rejected, skipping")
			return nil
		}
		c.logger.Error().Err(err).Str("payment_id", req.PaymentID.String()).Msg("failed to settle payment")
		return nil
	}

	c.logger.Info().
		Str("payment_id", payment.ID.String()).
		Str("status", string(payment.Status)).
		Msg("payment settled")
	return nil
}
