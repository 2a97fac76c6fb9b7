package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"petshop/internal/events"
	"petshop/internal/identity"
	"petshop/internal/lock"
	"petshop/internal/metrics"
	"petshop/internal/model"
	"petshop/internal/payment"
	"petshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentSettings configures fees, intent lifetime and payment artifacts.
type PaymentSettings struct {
	// CardFeePercent is charged on card and wallet payments.
	CardFeePercent decimal.Decimal
	// IntentTTL defaults to model.IntentTTL.
	IntentTTL time.Duration
	Artifacts payment.Artifacts
}

// paymentService implements PaymentService.
type paymentService struct {
	store     repository.Store
	gateway   payment.Gateway
	settings  PaymentSettings
	locks     *lock.Keyed
	committer committer
	now       func() time.Time
	logger    zerolog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	store repository.Store,
	gateway payment.Gateway,
	settings PaymentSettings,
	locks *lock.Keyed,
	publisher events.Publisher,
	refunds *RefundQueue,
	logger zerolog.Logger,
) PaymentService {
	if settings.IntentTTL <= 0 {
		settings.IntentTTL = model.IntentTTL
	}
	logger = logger.With().Str("service", "payment").Logger()
	return &paymentService{
		store:     store,
		gateway:   gateway,
		settings:  settings,
		locks:     locks,
		committer: committer{publisher: publisher, queue: refunds, logger: logger},
		now:       time.Now,
		logger:    logger,
	}
}

// CreateIntent opens a payment intent. Bound to an order, the amount
// defaults to and must equal the order total.
func (s *paymentService) CreateIntent(ctx context.Context, userID string, req *model.CreateIntentRequest) (*model.PaymentIntent, error) {
	if req == nil {
		return nil, model.NewValidationError("request body is required")
	}
	for _, t := range req.AllowedTypes {
		if !t.Valid() {
			return nil, model.NewValidationError("unknown instrument type %q", t)
		}
	}

	var amount decimal.Decimal
	if req.Amount != nil {
		amount = model.Round2(*req.Amount)
	}
	if req.OrderID != nil {
		order, err := s.store.Orders().GetByID(ctx, *req.OrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to get order: %w", err)
		}
		if order == nil || !order.OwnedBy(userID) {
			return nil, model.ErrOrderNotFound
		}
		if order.Status != model.OrderPending {
			return nil, model.ErrInvalidTransition.WithMessage("order %s is %s and does not accept payments", order.Number, order.Status)
		}
		if req.Amount == nil {
			amount = order.Total
		} else if !amount.Equal(order.Total) {
			return nil, model.NewValidationError("amount %s does not match the order total %s", amount.StringFixed(2), order.Total.StringFixed(2))
		}
	}
	if !amount.IsPositive() {
		return nil, model.NewValidationError("amount must be greater than zero")
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = model.DefaultCurrency
	}

	now := s.now()
	intent := &model.PaymentIntent{
		ID:           uuid.New(),
		UserID:       userID,
		OrderID:      req.OrderID,
		Amount:       amount,
		Currency:     currency,
		AllowedTypes: req.AllowedTypes,
		Status:       model.IntentRequiresPaymentMethod,
		ExpiresAt:    now.Add(s.settings.IntentTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	intent.ClientSecret = "pi_" + strings.ReplaceAll(intent.ID.String(), "-", "") + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	if err := s.store.Payments().CreateIntent(ctx, intent); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create payment intent")
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	s.logger.Info().
		Str("intent_id", intent.ID.String()).
		Str("amount", amount.StringFixed(2)).
		Msg("payment intent created")
	return intent, nil
}

func (s *paymentService) GetIntent(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.PaymentIntent, error) {
	intent, err := s.store.Payments().GetIntent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	if intent == nil {
		return nil, model.ErrIntentNotFound
	}
	if !actor.IsAdmin() && intent.UserID != actor.ID {
		return nil, model.ErrForbidden
	}
	return intent, nil
}

// CancelIntent cancels an intent that has not been confirmed yet.
func (s *paymentService) CancelIntent(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.PaymentIntent, error) {
	if _, err := s.GetIntent(ctx, actor, id); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(lock.IntentKey(id.String()))
	defer unlock()

	var intent *model.PaymentIntent
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		in, err := r.Payments().GetIntent(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get payment intent: %w", err)
		}
		if in == nil {
			return model.ErrIntentNotFound
		}
		if !in.Status.Confirmable() {
			return model.ErrInvalidIntentStatus.WithMessage("payment intent is %s", in.Status)
		}
		in.Status = model.IntentCancelled
		in.UpdatedAt = s.now()
		if err := r.Payments().UpdateIntent(ctx, in); err != nil {
			return fmt.Errorf("failed to update payment intent: %w", err)
		}
		intent = in
		return nil
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// Confirm charges an intent with a stored instrument. PIX and boleto
// payments stay processing until settled, and so does their intent. Cards
// are authorised right away: an approval completes the payment and leaves
// the intent succeeded, a decline fails the payment and cancels the intent.
// An expired intent is rejected without creating a payment.
func (s *paymentService) Confirm(ctx context.Context, userID string, intentID uuid.UUID, req *model.ConfirmIntentRequest) (*model.Payment, error) {
	if req == nil {
		return nil, model.NewValidationError("request body is required")
	}
	installments := req.Installments
	if installments == 0 {
		installments = 1
	}

	intent, err := s.GetIntent(ctx, identity.Actor{ID: userID, Role: identity.RoleCustomer}, intentID)
	if err != nil {
		return nil, err
	}
	orderID := intent.OrderID
	if req.OrderID != nil {
		if orderID != nil && *orderID != *req.OrderID {
			return nil, model.NewValidationError("intent is bound to another order")
		}
		orderID = req.OrderID
	}

	if orderID != nil {
		unlockOrder := s.locks.Lock(lock.OrderKey(orderID.String()))
		defer unlockOrder()
	}
	unlockIntent := s.locks.Lock(lock.IntentKey(intentID.String()))
	defer unlockIntent()

	now := s.now()
	fx := &effects{}
	var p *model.Payment
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		in, err := r.Payments().GetIntent(ctx, intentID)
		if err != nil {
			return fmt.Errorf("failed to get payment intent: %w", err)
		}
		if in == nil {
			return model.ErrIntentNotFound
		}
		if in.Expired(now) {
			return model.ErrIntentExpired.WithMessage("payment intent expired at %s", in.ExpiresAt.UTC().Format(time.RFC3339))
		}
		if !in.Status.Confirmable() {
			return model.ErrInvalidIntentStatus.WithMessage("payment intent is %s", in.Status)
		}

		inst, err := r.Instruments().GetByID(ctx, req.InstrumentID)
		if err != nil {
			return fmt.Errorf("failed to get payment instrument: %w", err)
		}
		if inst == nil || inst.UserID != userID {
			return model.ErrInstrumentNotFound
		}
		if !inst.Active || !in.Allows(inst.Type) {
			return model.ErrInvalidPaymentMethod.WithMessage("instrument %s cannot pay this intent", inst.ID)
		}
		if installments < 1 || installments > model.MaxInstallments {
			return model.NewValidationError("installments must be between 1 and %d", model.MaxInstallments)
		}
		if installments > 1 && inst.Type != model.InstrumentCreditCard {
			return model.NewValidationError("installments are only available for credit cards")
		}

		if orderID != nil {
			order, err := r.Orders().GetByID(ctx, *orderID)
			if err != nil {
				return fmt.Errorf("failed to get order: %w", err)
			}
			if order == nil || !order.OwnedBy(userID) {
				return model.ErrOrderNotFound
			}
			if order.Status != model.OrderPending {
				return model.ErrInvalidTransition.WithMessage("order %s is %s and does not accept payments", order.Number, order.Status)
			}
			if !order.Total.Equal(in.Amount) {
				return model.NewValidationError("intent amount %s does not match the order total %s", in.Amount.StringFixed(2), order.Total.StringFixed(2))
			}
		}

		fee, net := payment.Fees(inst.Type, in.Amount, s.settings.CardFeePercent)
		p = &model.Payment{
			ID:                uuid.New(),
			UserID:            userID,
			OrderID:           orderID,
			IntentID:          in.ID,
			InstrumentID:      inst.ID,
			Amount:            in.Amount,
			Currency:          in.Currency,
			InstrumentType:    inst.Type,
			ProcessingFee:     fee,
			NetAmount:         net,
			Installments:      installments,
			InstallmentAmount: payment.InstallmentAmount(in.Amount, installments),
			RefundedAmount:    decimal.Zero,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		switch inst.Type.Kind() {
		case model.SettlementInstant:
			pix := s.settings.Artifacts.Pix(p.ID, p.Amount, now)
			p.Pix = &pix
			p.Status = model.PaymentProcessing
			in.Status = model.IntentProcessing
		case model.SettlementDeferred:
			boleto := s.settings.Artifacts.Boleto(p.ID, p.Amount, now)
			p.Boleto = &boleto
			p.Status = model.PaymentProcessing
			in.Status = model.IntentProcessing
		default:
			auth, err := s.gateway.Authorize(ctx, payment.AuthorizationRequest{
				PaymentID:      p.ID,
				Amount:         p.Amount,
				Currency:       p.Currency,
				InstrumentType: inst.Type,
				Installments:   installments,
			})
			if err != nil {
				return fmt.Errorf("failed to authorize payment: %w", err)
			}
			if auth.Approved {
				paidAt := now
				p.Status = model.PaymentCompleted
				p.AuthorizationCode = auth.Code
				p.PaidAt = &paidAt
				in.Status = model.IntentSucceeded
			} else {
				p.Status = model.PaymentFailed
				p.FailureReason = auth.Reason
				in.Status = model.IntentCancelled
			}
		}

		in.PaymentID = &p.ID
		in.OrderID = orderID
		in.UpdatedAt = now
		if err := r.Payments().Create(ctx, p); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		if err := r.Payments().UpdateIntent(ctx, in); err != nil {
			return fmt.Errorf("failed to update payment intent: %w", err)
		}
		if err := applyPaymentOutcome(ctx, r, p, now, fx); err != nil {
			return err
		}

		fx.emit(events.PaymentConfirmed, p.ID.String(), *p)
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("intent_id", intentID.String()).Msg("payment confirmation failed")
		return nil, err
	}

	metrics.Payments.WithLabelValues(string(p.InstrumentType), string(p.Status)).Inc()
	s.committer.apply(ctx, fx)

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("intent_id", intentID.String()).
		Str("instrument_type", string(p.InstrumentType)).
		Str("status", string(p.Status)).
		Msg("payment confirmed")
	return p, nil
}

// Settle completes or fails a processing payment.
func (s *paymentService) Settle(ctx context.Context, req model.SettlementRequest) (*model.Payment, error) {
	existing, err := s.store.Payments().GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if existing == nil {
		return nil, model.ErrPaymentNotFound
	}

	if existing.OrderID != nil {
		unlockOrder := s.locks.Lock(lock.OrderKey(existing.OrderID.String()))
		defer unlockOrder()
	}
	unlockIntent := s.locks.Lock(lock.IntentKey(existing.IntentID.String()))
	defer unlockIntent()
	unlockPayment := s.locks.Lock(lock.PaymentKey(existing.ID.String()))
	defer unlockPayment()

	now := s.now()
	fx := &effects{}
	var p *model.Payment
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		current, err := r.Payments().GetByID(ctx, req.PaymentID)
		if err != nil {
			return fmt.Errorf("failed to get payment: %w", err)
		}
		if current == nil {
			return model.ErrPaymentNotFound
		}
		if current.Status != model.PaymentProcessing {
			return model.ErrInvalidPaymentStatus.WithMessage("payment %s is %s", current.ID, current.Status)
		}

		intentStatus := model.IntentSucceeded
		if req.Success {
			paidAt := now
			current.Status = model.PaymentCompleted
			current.PaidAt = &paidAt
		} else {
			current.Status = model.PaymentFailed
			current.FailureReason = req.Reason
			if current.FailureReason == "" {
				current.FailureReason = "settlement failed"
			}
			intentStatus = model.IntentCancelled
		}
		current.UpdatedAt = now
		if err := r.Payments().Update(ctx, current); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		in, err := r.Payments().GetIntent(ctx, current.IntentID)
		if err != nil {
			return fmt.Errorf("failed to get payment intent: %w", err)
		}
		if in != nil {
			in.Status = intentStatus
			in.UpdatedAt = now
			if err := r.Payments().UpdateIntent(ctx, in); err != nil {
				return fmt.Errorf("failed to update payment intent: %w", err)
			}
		}

		if err := applyPaymentOutcome(ctx, r, current, now, fx); err != nil {
			return err
		}
		fx.emit(events.PaymentSettled, current.ID.String(), *current)
		p = current
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("payment_id", req.PaymentID.String()).Msg("payment settlement failed")
		return nil, err
	}

	metrics.Payments.WithLabelValues(string(p.InstrumentType), string(p.Status)).Inc()
	s.committer.apply(ctx, fx)

	s.logger.Info().Str("payment_id", p.ID.String()).Str("status", string(p.Status)).Msg("payment settled")
	return p, nil
}

func (s *paymentService) GetPayment(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Payment, error) {
	p, err := s.store.Payments().GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", id.String()).Msg("failed to get payment")
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

// AddInstrument stores a new active instrument for the user.
func (s *paymentService) AddInstrument(ctx context.Context, userID string, req *model.AddInstrumentRequest) (*model.PaymentInstrument, error) {
	if req == nil || !req.Type.Valid() {
		return nil, model.NewValidationError("type must be one of credit_card, debit_card, pix, boleto, wallet")
	}
	if req.Last4 != "" && (len(req.Last4) != 4 || strings.IndexFunc(req.Last4, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0) {
		return nil, model.NewValidationError("last4 must be four digits")
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = string(req.Type)
	}

	inst := &model.PaymentInstrument{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      req.Type,
		Label:     label,
		Brand:     req.Brand,
		Last4:     req.Last4,
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.store.Instruments().Create(ctx, inst); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to add payment instrument")
		return nil, fmt.Errorf("failed to add payment instrument: %w", err)
	}
	return inst, nil
}

// ListInstruments returns the user's active instruments.
func (s *paymentService) ListInstruments(ctx context.Context, userID string) ([]model.PaymentInstrument, error) {
	all, err := s.store.Instruments().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment instruments: %w", err)
	}
	active := make([]model.PaymentInstrument, 0, len(all))
	for _, inst := range all {
		if inst.Active {
			active = append(active, inst)
		}
	}
	return active, nil
}

func (s *paymentService) DeactivateInstrument(ctx context.Context, userID string, id uuid.UUID) error {
	inst, err := s.store.Instruments().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get payment instrument: %w", err)
	}
	if inst == nil || inst.UserID != userID {
		return model.ErrInstrumentNotFound
	}
	if !inst.Active {
		return nil
	}
	inst.Active = false
	if err := s.store.Instruments().Update(ctx, inst); err != nil {
		return fmt.Errorf("failed to update payment instrument: %w", err)
	}
	return nil
}
