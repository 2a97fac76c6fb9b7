package repository

import (
	"context"
	"errors"
	"fmt"

	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const intentColumns = `id, user_id, order_id, amount, currency, allowed_types, client_secret, status,
	payment_id, expires_at, created_at, updated_at`

const paymentColumns = `id, user_id, order_id, intent_id, instrument_id, amount, currency, status,
	instrument_type, processing_fee, net_amount, installments, installment_amount, pix, boleto,
	authorization_code, failure_reason, refunded_amount, refund_reason, refunded_at, paid_at,
	created_at, updated_at`

// paymentRepository implements the PaymentRepository interface using PostgreSQL.
type paymentRepository struct {
	db     querier
	logger zerolog.Logger
}

// NewPaymentRepository creates a new PostgreSQL-backed payment repository.
func NewPaymentRepository(db querier, logger zerolog.Logger) PaymentRepository {
	return &paymentRepository{
		db:     db,
		logger: logger.With().Str("repository", "payment").Logger(),
	}
}

func typesToStrings(types []model.InstrumentType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func stringsToTypes(values []string) []model.InstrumentType {
	out := make([]model.InstrumentType, len(values))
	for i, v := range values {
		out[i] = model.InstrumentType(v)
	}
	return out
}

// CreateIntent inserts a payment intent.
func (r *paymentRepository) CreateIntent(ctx context.Context, intent *model.PaymentIntent) error {
	query := `INSERT INTO payment_intents (` + intentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		intent.ID, intent.UserID, intent.OrderID, intent.Amount, intent.Currency,
		typesToStrings(intent.AllowedTypes), intent.ClientSecret, intent.Status, intent.PaymentID,
		intent.ExpiresAt, intent.CreatedAt, intent.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("intent_id", intent.ID.String()).Msg("failed to create payment intent")
		return fmt.Errorf("failed to create payment intent: %w", err)
	}

	return nil
}

// GetIntent retrieves a payment intent by ID.
func (r *paymentRepository) GetIntent(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`

	var intent model.PaymentIntent
	var allowed []string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&intent.ID, &intent.UserID, &intent.OrderID, &intent.Amount, &intent.Currency, &allowed,
		&intent.ClientSecret, &intent.Status, &intent.PaymentID, &intent.ExpiresAt,
		&intent.CreatedAt, &intent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("intent_id", id.String()).Msg("failed to query payment intent")
		return nil, fmt.Errorf("failed to query payment intent: %w", err)
	}
	intent.AllowedTypes = stringsToTypes(allowed)

	return &intent, nil
}

// UpdateIntent persists the status and payment link of an intent.
func (r *paymentRepository) UpdateIntent(ctx context.Context, intent *model.PaymentIntent) error {
	query := `
		UPDATE payment_intents
		SET status = $2, payment_id = $3, order_id = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, intent.ID, intent.Status, intent.PaymentID, intent.OrderID, intent.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("intent_id", intent.ID.String()).Msg("failed to update payment intent")
		return fmt.Errorf("failed to update payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrIntentNotFound
	}

	return nil
}

// Create inserts a payment.
func (r *paymentRepository) Create(ctx context.Context, p *model.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23)`

	_, err := r.db.Exec(ctx, query,
		p.ID, p.UserID, p.OrderID, p.IntentID, p.InstrumentID, p.Amount, p.Currency, p.Status,
		p.InstrumentType, p.ProcessingFee, p.NetAmount, p.Installments, p.InstallmentAmount,
		p.Pix, p.Boleto, p.AuthorizationCode, p.FailureReason, p.RefundedAmount, p.RefundReason,
		p.RefundedAt, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("failed to create payment")
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by ID.
func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	var p model.Payment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.OrderID, &p.IntentID, &p.InstrumentID, &p.Amount, &p.Currency,
		&p.Status, &p.InstrumentType, &p.ProcessingFee, &p.NetAmount, &p.Installments,
		&p.InstallmentAmount, &p.Pix, &p.Boleto, &p.AuthorizationCode, &p.FailureReason,
		&p.RefundedAmount, &p.RefundReason, &p.RefundedAt, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("payment_id", id.String()).Msg("failed to query payment")
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}

	return &p, nil
}

// Update persists the mutable fields of a payment.
func (r *paymentRepository) Update(ctx context.Context, p *model.Payment) error {
	query := `
		UPDATE payments SET
			order_id = $2, status = $3, authorization_code = $4, failure_reason = $5,
			refunded_amount = $6, refund_reason = $7, refunded_at = $8, paid_at = $9, updated_at = $10
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		p.ID, p.OrderID, p.Status, p.AuthorizationCode, p.FailureReason, p.RefundedAmount,
		p.RefundReason, p.RefundedAt, p.PaidAt, p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("failed to update payment")
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPaymentNotFound
	}

	return nil
}
