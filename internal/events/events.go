// Package events publishes domain events and consumes payment settlements.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	OrderCreated       = "order.created"
	OrderCancelled     = "order.cancelled"
	OrderStatusChanged = "order.status_changed"
	PaymentConfirmed   = "payment.confirmed"
	PaymentSettled     = "payment.settled"
	RefundCompleted    = "refund.completed"
)

// Event is a domain event. Key groups events of one aggregate on one partition.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// New builds an event for the aggregate identified by key.
func New(typ, key string, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}
