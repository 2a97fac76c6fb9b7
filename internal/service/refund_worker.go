package service

import (
	"context"
	"fmt"
	"time"

	"petshop/internal/events"
	"petshop/internal/lock"
	"petshop/internal/metrics"
	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefundQueue hands opened refunds to the RefundWorker.
type RefundQueue struct {
	ch     chan uuid.UUID
	logger zerolog.Logger
}

// NewRefundQueue creates a queue holding up to size refunds.
func NewRefundQueue(size int, logger zerolog.Logger) *RefundQueue {
	if size <= 0 {
		size = 100
	}
	return &RefundQueue{
		ch:     make(chan uuid.UUID, size),
		logger: logger.With().Str("component", "refund-queue").Logger(),
	}
}

// Enqueue never blocks. A refund that does not fit stays pending and is
// picked up by the worker's next sweep.
func (q *RefundQueue) Enqueue(id uuid.UUID) bool {
	select {
	case q.ch <- id:
		metrics.RefundQueueDepth.Inc()
		return true
	default:
		q.logger.Warn().Str("refund_id", id.String()).Msg("refund queue full, leaving refund to the sweep")
		return false
	}
}

// RefundWorkerSettings tunes the refund worker.
type RefundWorkerSettings struct {
	// Delay simulates the provider round trip between processing and completed.
	Delay time.Duration
	// SweepInterval is how often unfinished refunds are looked up.
	SweepInterval time.Duration
	// BatchSize bounds one sweep.
	BatchSize int
}

// RefundWorker settles refunds: pending, then processing, then completed,
// exactly once per refund.
type RefundWorker struct {
	store     repository.Store
	locks     *lock.Keyed
	queue     *RefundQueue
	settings  RefundWorkerSettings
	committer committer
	now       func() time.Time
	logger    zerolog.Logger
}

// NewRefundWorker creates a worker consuming queue.
func NewRefundWorker(
	store repository.Store,
	locks *lock.Keyed,
	queue *RefundQueue,
	publisher events.Publisher,
	settings RefundWorkerSettings,
	logger zerolog.Logger,
) *RefundWorker {
	if settings.SweepInterval <= 0 {
		settings.SweepInterval = time.Minute
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = 100
	}
	logger = logger.With().Str("component", "refund-worker").Logger()
	return &RefundWorker{
		store:     store,
		locks:     locks,
		queue:     queue,
		settings:  settings,
		committer: committer{publisher: publisher, queue: queue, logger: logger},
		now:       time.Now,
		logger:    logger,
	}
}

// Run processes queued refunds until ctx is cancelled. Unfinished refunds
// are swept at start and then periodically.
func (w *RefundWorker) Run(ctx context.Context) error {
	w.logger.Info().Dur("delay", w.settings.Delay).Msg("refund worker started")
	w.sweep(ctx)

	ticker := time.NewTicker(w.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("refund worker stopped")
			return nil
		case id := <-w.queue.ch:
			metrics.RefundQueueDepth.Dec()
			if err := w.Process(ctx, id); err != nil {
				w.logger.Error().Err(err).Str("refund_id", id.String()).Msg("failed to process refund")
			}
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RefundWorker) sweep(ctx context.Context) {
	for _, status := range []model.RefundStatus{model.RefundProcessing, model.RefundPending} {
		refunds, err := w.store.Refunds().ListByStatus(ctx, status, w.settings.BatchSize)
		if err != nil {
			w.logger.Error().Err(err).Str("status", string(status)).Msg("failed to list refunds")
			continue
		}
		for _, rf := range refunds {
			if ctx.Err() != nil {
				return
			}
			if err := w.Process(ctx, rf.ID); err != nil {
				w.logger.Error().Err(err).Str("refund_id", rf.ID.String()).Msg("failed to process refund")
			}
		}
	}
}

// Process settles one refund. Finished refunds are left alone.
func (w *RefundWorker) Process(ctx context.Context, id uuid.UUID) error {
	rf, err := w.store.Refunds().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get refund: %w", err)
	}
	if rf == nil || (rf.Status != model.RefundPending && rf.Status != model.RefundProcessing) {
		return nil
	}
	p, err := w.store.Payments().GetByID(ctx, rf.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if p == nil {
		return w.fail(ctx, rf.ID, "payment not found")
	}

	if rf.Status == model.RefundPending {
		started, err := w.start(ctx, p, rf.ID)
		if err != nil || !started {
			return err
		}
		if w.settings.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.settings.Delay):
			}
		}
	}
	return w.complete(ctx, p, rf.ID)
}

func (w *RefundWorker) lockPayment(p *model.Payment) func() {
	var unlockOrder func()
	if p.OrderID != nil {
		unlockOrder = w.locks.Lock(lock.OrderKey(p.OrderID.String()))
	}
	unlockPayment := w.locks.Lock(lock.PaymentKey(p.ID.String()))
	return func() {
		unlockPayment()
		if unlockOrder != nil {
			unlockOrder()
		}
	}
}

// start moves a pending refund to processing.
func (w *RefundWorker) start(ctx context.Context, p *model.Payment, id uuid.UUID) (bool, error) {
	unlock := w.lockPayment(p)
	defer unlock()

	started := false
	err := w.store.WithinTx(ctx, func(r repository.Repos) error {
		rf, err := r.Refunds().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get refund: %w", err)
		}
		if rf == nil || rf.Status != model.RefundPending {
			return nil
		}
		rf.Status = model.RefundProcessing
		rf.UpdatedAt = w.now()
		if err := r.Refunds().Update(ctx, rf); err != nil {
			return fmt.Errorf("failed to update refund: %w", err)
		}
		started = true
		return nil
	})
	return started, err
}

// complete settles a processing refund against its payment and order.
func (w *RefundWorker) complete(ctx context.Context, p *model.Payment, id uuid.UUID) error {
	unlock := w.lockPayment(p)
	defer unlock()

	now := w.now()
	fx := &effects{}
	var settled *model.Refund
	err := w.store.WithinTx(ctx, func(r repository.Repos) error {
		rf, err := r.Refunds().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get refund: %w", err)
		}
		if rf == nil || rf.Status != model.RefundProcessing {
			return nil
		}
		payment, err := r.Payments().GetByID(ctx, rf.PaymentID)
		if err != nil {
			return fmt.Errorf("failed to get payment: %w", err)
		}
		if payment == nil {
			return model.ErrPaymentNotFound
		}

		completedAt := now
		rf.Status = model.RefundCompleted
		rf.CompletedAt = &completedAt
		rf.UpdatedAt = now
		if err := r.Refunds().Update(ctx, rf); err != nil {
			return fmt.Errorf("failed to update refund: %w", err)
		}

		payment.RefundedAmount = model.Round2(payment.RefundedAmount.Add(rf.Amount))
		if payment.RefundedAmount.GreaterThanOrEqual(payment.Amount) {
			payment.Status = model.PaymentRefunded
			payment.RefundReason = rf.Reason
			payment.RefundedAt = &completedAt
		}
		payment.UpdatedAt = now
		if err := r.Payments().Update(ctx, payment); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		if err := applyRefundOutcome(ctx, r, payment, rf, now, fx); err != nil {
			return err
		}
		fx.emit(events.RefundCompleted, payment.ID.String(), *rf)
		settled = rf
		return nil
	})
	if err != nil {
		return err
	}
	if settled == nil {
		return nil
	}

	metrics.Refunds.WithLabelValues(string(model.RefundCompleted)).Inc()
	w.committer.apply(ctx, fx)
	w.logger.Info().
		Str("refund_id", settled.ID.String()).
		Str("payment_id", settled.PaymentID.String()).
		Str("amount", settled.Amount.StringFixed(2)).
		Msg("refund completed")
	return nil
}

func (w *RefundWorker) fail(ctx context.Context, id uuid.UUID, reason string) error {
	err := w.store.WithinTx(ctx, func(r repository.Repos) error {
		rf, err := r.Refunds().GetByID(ctx, id)
		if err != nil || rf == nil {
			return err
		}
		rf.Status = model.RefundFailed
		rf.FailureReason = reason
		rf.UpdatedAt = w.now()
		return r.Refunds().Update(ctx, rf)
	})
	if err != nil {
		return fmt.Errorf("failed to mark refund failed: %w", err)
	}
	metrics.Refunds.WithLabelValues(string(model.RefundFailed)).Inc()
	w.logger.Warn().Str("refund_id", id.String()).Str("reason", reason).Msg("refund failed")
	return nil
}
