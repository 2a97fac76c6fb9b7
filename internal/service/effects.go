package service

import (
	"context"

	"petshop/internal/events"
	"petshop/internal/metrics"
	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// effects collects what a transaction asks for once it has committed.
type effects struct {
	events      []events.Event
	refunds     []uuid.UUID
	transitions []model.OrderStatus
}

func (fx *effects) emit(typ, key string, payload any) {
	fx.events = append(fx.events, events.New(typ, key, payload))
}

// orderChanged records a status change of o.
func (fx *effects) orderChanged(o *model.Order, from model.OrderStatus) {
	if o.Status == from {
		return
	}
	fx.transitions = append(fx.transitions, o.Status)
	fx.emit(events.OrderStatusChanged, o.ID.String(), *o)
}

func (fx *effects) refund(id uuid.UUID) {
	fx.refunds = append(fx.refunds, id)
}

// committer applies effects after a successful commit.
type committer struct {
	publisher events.Publisher
	queue     *RefundQueue
	logger    zerolog.Logger
}

func (c committer) apply(ctx context.Context, fx *effects) {
	for _, status := range fx.transitions {
		metrics.OrderTransitions.WithLabelValues(string(status)).Inc()
	}
	for _, id := range fx.refunds {
		if c.queue != nil {
			c.queue.Enqueue(id)
		}
	}
	if c.publisher == nil {
		return
	}
	for _, ev := range fx.events {
		if err := c.publisher.Publish(ctx, ev); err != nil {
			c.logger.Warn().Err(err).Str("event_type", ev.Type).Str("key", ev.Key).Msg("failed to publish event")
		}
	}
}
