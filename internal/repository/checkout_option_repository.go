package repository

import (
	"context"
	"errors"
	"fmt"

	"petshop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// checkoutOptionRepository implements CheckoutOptionRepository using PostgreSQL.
type checkoutOptionRepository struct {
	db     querier
	logger zerolog.Logger
}

// NewCheckoutOptionRepository creates a new PostgreSQL-backed checkout option repository.
func NewCheckoutOptionRepository(db querier, logger zerolog.Logger) CheckoutOptionRepository {
	return &checkoutOptionRepository{
		db:     db,
		logger: logger.With().Str("repository", "checkout_option").Logger(),
	}
}

func (r *checkoutOptionRepository) GetPaymentMethod(ctx context.Context, id string) (*model.PaymentMethod, error) {
	var m model.PaymentMethod
	err := r.db.QueryRow(ctx, `SELECT id, name, type, active FROM payment_methods WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Type, &m.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("payment_method_id", id).Msg("failed to query payment method")
		return nil, fmt.Errorf("failed to query payment method: %w", err)
	}
	return &m, nil
}

func (r *checkoutOptionRepository) GetShippingMethod(ctx context.Context, id string) (*model.ShippingMethod, error) {
	var m model.ShippingMethod
	err := r.db.QueryRow(ctx, `SELECT id, name, carrier, cost, estimated_days, active FROM shipping_methods WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Carrier, &m.Cost, &m.EstimatedDays, &m.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("shipping_method_id", id).Msg("failed to query shipping method")
		return nil, fmt.Errorf("failed to query shipping method: %w", err)
	}
	return &m, nil
}
