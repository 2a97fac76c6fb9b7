package service

import (
	"context"
	"fmt"
	"time"

	"petshop/internal/model"
	"petshop/internal/repository"
)

// applyPaymentOutcome moves the order of p after p changed status. A
// payment that completes for an order no longer waiting for it is refunded.
func applyPaymentOutcome(ctx context.Context, r repository.Repos, p *model.Payment, now time.Time, fx *effects) error {
	if p.OrderID == nil {
		return nil
	}
	o, err := r.Orders().GetByID(ctx, *p.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if o == nil {
		return model.ErrOrderNotFound.WithMessage("order %s not found", p.OrderID)
	}
	from := o.Status

	var event model.OrderEvent
	switch p.Status {
	case model.PaymentProcessing:
		if o.Status != model.OrderPending {
			return nil
		}
		event = model.EventPaymentProcessing
		o.PaymentID = &p.ID
	case model.PaymentCompleted:
		if o.Status != model.OrderPending {
			rf, err := openRefund(ctx, r, p, nil, fmt.Sprintf("order %s is %s", o.Number, o.Status), now)
			if err != nil {
				return err
			}
			fx.refund(rf.ID)
			return nil
		}
		event = model.EventPaymentCompleted
		o.PaymentID = &p.ID
	case model.PaymentFailed, model.PaymentCancelled:
		if o.Status != model.OrderPending {
			return nil
		}
		event = model.EventPaymentFailed
	default:
		return nil
	}

	if err := model.ApplyEvent(o, event, now); err != nil {
		return err
	}
	if err := r.Orders().Update(ctx, o); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	fx.orderChanged(o, from)
	return nil
}

// applyRefundOutcome records a settled refund on the order of p.
func applyRefundOutcome(ctx context.Context, r repository.Repos, p *model.Payment, rf *model.Refund, now time.Time, fx *effects) error {
	if p.OrderID == nil {
		return nil
	}
	o, err := r.Orders().GetByID(ctx, *p.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if o == nil {
		return nil
	}
	from := o.Status

	if err := model.RecordRefund(o, rf.Amount, p.Status == model.PaymentRefunded, now); err != nil {
		return err
	}
	if err := r.Orders().Update(ctx, o); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	fx.orderChanged(o, from)
	return nil
}
