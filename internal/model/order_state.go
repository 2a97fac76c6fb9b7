package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent is something that happened to an order and may move its statuses.
type OrderEvent string

const (
	EventCreated           OrderEvent = "created"
	EventPaymentProcessing OrderEvent = "payment_processing"
	EventPaymentCompleted  OrderEvent = "payment_completed"
	EventPaymentFailed     OrderEvent = "payment_failed"
	EventProcessing        OrderEvent = "processing"
	EventShipped           OrderEvent = "shipped"
	EventDelivered         OrderEvent = "delivered"
	EventCancelled         OrderEvent = "cancelled"
	EventPartiallyRefunded OrderEvent = "partially_refunded"
	EventRefunded          OrderEvent = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled, OrderRefunded},
	OrderProcessing: {OrderShipped, OrderRefunded},
	OrderShipped:    {OrderDelivered, OrderRefunded},
	OrderDelivered:  {OrderRefunded},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether the order may still be cancelled.
func (o *Order) Cancellable() bool {
	return o.Status == OrderPending || o.Status == OrderConfirmed
}

// targetStatus returns the order status an event moves to, or "" when the
// event leaves the order status alone.
func targetStatus(current OrderStatus, event OrderEvent) OrderStatus {
	switch event {
	case EventPaymentCompleted:
		return OrderConfirmed
	case EventProcessing:
		return OrderProcessing
	case EventShipped:
		return OrderShipped
	case EventDelivered:
		return OrderDelivered
	case EventCancelled:
		return OrderCancelled
	case EventRefunded:
		if current == OrderCancelled || current == OrderPending {
			return ""
		}
		return OrderRefunded
	}
	return ""
}

// DeriveStatuses computes the payment and shipping status that follow event.
// It is pure and is the only place the side statuses are decided.
func DeriveStatuses(o Order, event OrderEvent) (PaymentStatus, ShippingStatus) {
	payment, shipping := o.PaymentStatus, o.ShippingStatus

	switch event {
	case EventCreated:
		return PaymentStatusPending, ShippingPending
	case EventPaymentProcessing:
		payment = PaymentStatusProcessing
	case EventPaymentCompleted:
		payment = PaymentStatusPaid
	case EventPaymentFailed:
		payment = PaymentStatusFailed
	case EventProcessing:
		shipping = ShippingPreparing
	case EventShipped:
		shipping = ShippingShipped
	case EventDelivered:
		shipping = ShippingDelivered
	case EventCancelled:
		if o.PaymentStatus == PaymentStatusPaid || o.PaymentStatus == PaymentStatusPartiallyRefunded ||
			o.PaymentStatus == PaymentStatusRefunded {
			payment = PaymentStatusRefunded
		} else {
			payment = PaymentStatusFailed
		}
		shipping = ShippingCancelled
	case EventPartiallyRefunded:
		if o.PaymentStatus != PaymentStatusRefunded {
			payment = PaymentStatusPartiallyRefunded
		}
	case EventRefunded:
		payment = PaymentStatusRefunded
		if shipping == ShippingPending || shipping == ShippingPreparing {
			shipping = ShippingCancelled
		}
	}

	return payment, shipping
}

// ApplyEvent moves the order through the state machine and stamps milestones.
// It fails with ErrInvalidTransition without touching the order when the
// event is not allowed from the current status.
func ApplyEvent(o *Order, event OrderEvent, now time.Time) error {
	next := targetStatus(o.Status, event)
	if next != "" && next != o.Status && !CanTransition(o.Status, next) {
		return ErrInvalidTransition.WithMessage("cannot move order from %s to %s", o.Status, next)
	}

	o.PaymentStatus, o.ShippingStatus = DeriveStatuses(*o, event)
	if next != "" && next != o.Status {
		o.Status = next
		stamp(o, next, now)
	}
	o.RecalculateTotal()
	o.UpdatedAt = now
	return nil
}

func stamp(o *Order, status OrderStatus, now time.Time) {
	t := now
	switch status {
	case OrderConfirmed:
		o.ConfirmedAt = &t
	case OrderProcessing:
		o.ProcessingAt = &t
	case OrderShipped:
		o.ShippedAt = &t
	case OrderDelivered:
		o.DeliveredAt = &t
	case OrderCancelled:
		o.CancelledAt = &t
	case OrderRefunded:
		o.RefundedAt = &t
	}
}

// RecordRefund adds a settled refund to the order and applies the matching event.
func RecordRefund(o *Order, amount decimal.Decimal, fullyRefunded bool, now time.Time) error {
	o.RefundedAmount = Round2(o.RefundedAmount.Add(amount))
	event := EventPartiallyRefunded
	if fullyRefunded {
		event = EventRefunded
		if o.RefundedAt == nil {
			t := now
			o.RefundedAt = &t
		}
	}
	return ApplyEvent(o, event, now)
}
