package service

import (
	"context"
	"fmt"
	"time"

	"petshop/internal/identity"
	"petshop/internal/lock"
	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// refundService implements RefundService.
type refundService struct {
	store  repository.Store
	locks  *lock.Keyed
	queue  *RefundQueue
	now    func() time.Time
	logger zerolog.Logger
}

// NewRefundService creates a new refund service. Opened refunds are handed
// to queue for settlement.
func NewRefundService(store repository.Store, locks *lock.Keyed, queue *RefundQueue, logger zerolog.Logger) RefundService {
	return &refundService{
		store:  store,
		locks:  locks,
		queue:  queue,
		now:    time.Now,
		logger: logger.With().Str("service", "refund").Logger(),
	}
}

func (s *refundService) payment(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Payment, error) {
	p, err := s.store.Payments().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if p == nil {
		return nil, model.ErrPaymentNotFound
	}
	if !actor.IsAdmin() && p.UserID != actor.ID {
		return nil, model.ErrForbidden
	}
	return p, nil
}

// Refund opens a pending refund of a completed payment. Without an amount
// the whole refundable balance is refunded.
func (s *refundService) Refund(ctx context.Context, actor identity.Actor, paymentID uuid.UUID, req *model.RefundRequest) (*model.Refund, error) {
	if req == nil {
		req = &model.RefundRequest{}
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, model.NewValidationError("amount must be greater than zero")
	}
	reason := req.Reason
	if reason == "" {
		reason = "requested by customer"
	}

	existing, err := s.payment(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	if existing.OrderID != nil {
		unlockOrder := s.locks.Lock(lock.OrderKey(existing.OrderID.String()))
		defer unlockOrder()
	}
	unlockPayment := s.locks.Lock(lock.PaymentKey(paymentID.String()))
	defer unlockPayment()

	var refund *model.Refund
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		p, err := r.Payments().GetByID(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to get payment: %w", err)
		}
		if p == nil {
			return model.ErrPaymentNotFound
		}
		refund, err = openRefund(ctx, r, p, req.Amount, reason, s.now())
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("payment_id", paymentID.String()).Msg("refund rejected")
		return nil, err
	}

	s.queue.Enqueue(refund.ID)
	s.logger.Info().
		Str("refund_id", refund.ID.String()).
		Str("payment_id", paymentID.String()).
		Str("amount", refund.Amount.StringFixed(2)).
		Msg("refund opened")
	return refund, nil
}

func (s *refundService) ListRefunds(ctx context.Context, actor identity.Actor, paymentID uuid.UUID) ([]model.Refund, error) {
	if _, err := s.payment(ctx, actor, paymentID); err != nil {
		return nil, err
	}
	refunds, err := s.store.Refunds().ListByPayment(ctx, paymentID)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", paymentID.String()).Msg("failed to list refunds")
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}

// openRefund validates and stores a pending refund of p. Pending, processing
// and completed refunds together never exceed the payment amount.
func openRefund(ctx context.Context, r repository.Repos, p *model.Payment, amount *decimal.Decimal, reason string, now time.Time) (*model.Refund, error) {
	if p.Status != model.PaymentCompleted {
		return nil, model.ErrInvalidPaymentStatus.WithMessage("payment %s is %s and cannot be refunded", p.ID, p.Status)
	}

	existing, err := r.Refunds().ListByPayment(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	reserved := model.ReservedRefunds(existing)

	value := p.Amount.Sub(reserved)
	if amount != nil {
		value = model.Round2(*amount)
	}
	if !value.IsPositive() {
		return nil, model.ErrInvalidRefundAmount.WithMessage("payment %s has nothing left to refund", p.ID)
	}
	if value.GreaterThan(p.Amount) || reserved.Add(value).GreaterThan(p.Amount) {
		return nil, model.ErrInvalidRefundAmount.WithMessage("refund of %s exceeds the refundable balance %s",
			value.StringFixed(2), p.Amount.Sub(reserved).StringFixed(2))
	}

	refund := &model.Refund{
		ID:        uuid.New(),
		PaymentID: p.ID,
		UserID:    p.UserID,
		Amount:    value,
		Reason:    reason,
		Status:    model.RefundPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.Refunds().Create(ctx, refund); err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}
	return refund, nil
}
