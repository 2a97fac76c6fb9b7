package repository

import (
	"context"
	"errors"
	"fmt"

	"petshop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// couponRepository implements the CouponRepository interface using PostgreSQL.
type couponRepository struct {
	db     querier
	logger zerolog.Logger
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(db querier, logger zerolog.Logger) CouponRepository {
	return &couponRepository{
		db:     db,
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

// GetByCode retrieves a coupon by its normalised code.
func (r *couponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `
		SELECT code, description, type, value, min_order_amount, max_discount, usage_limit,
			per_user_limit, usage_count, active, valid_from, valid_to, applicable_categories,
			applicable_products, buy_quantity, get_quantity, created_at, updated_at
		FROM coupons
		WHERE code = $1`

	var c model.Coupon
	var minOrder, maxDiscount decimal.NullDecimal
	err := r.db.QueryRow(ctx, query, model.NormalizeCouponCode(code)).Scan(
		&c.Code, &c.Description, &c.Type, &c.Value, &minOrder, &maxDiscount, &c.UsageLimit,
		&c.PerUserLimit, &c.UsageCount, &c.Active, &c.ValidFrom, &c.ValidTo,
		&c.ApplicableCategories, &c.ApplicableProducts, &c.BuyQuantity, &c.GetQuantity,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("coupon_code", code).Msg("coupon not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	if minOrder.Valid {
		c.MinOrderAmount = &minOrder.Decimal
	}
	if maxDiscount.Valid {
		c.MaxDiscount = &maxDiscount.Decimal
	}

	return &c, nil
}

// Upsert inserts or replaces a coupon definition, keeping its usage count.
func (r *couponRepository) Upsert(ctx context.Context, c *model.Coupon) error {
	query := `
		INSERT INTO coupons (code, description, type, value, min_order_amount, max_discount,
			usage_limit, per_user_limit, usage_count, active, valid_from, valid_to,
			applicable_categories, applicable_products, buy_quantity, get_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			min_order_amount = EXCLUDED.min_order_amount,
			max_discount = EXCLUDED.max_discount,
			usage_limit = EXCLUDED.usage_limit,
			per_user_limit = EXCLUDED.per_user_limit,
			active = EXCLUDED.active,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			applicable_categories = EXCLUDED.applicable_categories,
			applicable_products = EXCLUDED.applicable_products,
			buy_quantity = EXCLUDED.buy_quantity,
			get_quantity = EXCLUDED.get_quantity,
			updated_at = EXCLUDED.updated_at`

	categories := c.ApplicableCategories
	if categories == nil {
		categories = []string{}
	}
	products := c.ApplicableProducts
	if products == nil {
		products = []string{}
	}

	_, err := r.db.Exec(ctx, query,
		model.NormalizeCouponCode(c.Code), c.Description, c.Type, c.Value,
		nullDecimal(c.MinOrderAmount), nullDecimal(c.MaxDiscount), c.UsageLimit, c.PerUserLimit,
		c.UsageCount, c.Active, c.ValidFrom, c.ValidTo, categories, products,
		c.BuyQuantity, c.GetQuantity, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_code", c.Code).Msg("failed to upsert coupon")
		return fmt.Errorf("failed to upsert coupon: %w", err)
	}

	return nil
}

// CountUserRedemptions counts a user's redemptions of a coupon.
func (r *couponRepository) CountUserRedemptions(ctx context.Context, code, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM coupon_redemptions WHERE code = $1 AND user_id = $2`

	var count int
	if err := r.db.QueryRow(ctx, query, model.NormalizeCouponCode(code), userID).Scan(&count); err != nil {
		r.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to count coupon redemptions")
		return 0, fmt.Errorf("failed to count coupon redemptions: %w", err)
	}

	return count, nil
}

// Redeem increments the usage counter only while it is below the limit and
// records the redemption.
func (r *couponRepository) Redeem(ctx context.Context, redemption model.CouponRedemption) error {
	code := model.NormalizeCouponCode(redemption.Code)

	tag, err := r.db.Exec(ctx, `
		UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE code = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`, code)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to increment coupon usage")
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCouponExhausted
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO coupon_redemptions (code, user_id, order_id, redeemed_at)
		VALUES ($1, $2, $3, $4)`,
		code, redemption.UserID, redemption.OrderID, redemption.RedeemedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to record coupon redemption")
		return fmt.Errorf("failed to record coupon redemption: %w", err)
	}

	return nil
}

// ReleaseRedemption undoes the redemption made for an order, if any.
func (r *couponRepository) ReleaseRedemption(ctx context.Context, code, orderID string) error {
	code = model.NormalizeCouponCode(code)

	tag, err := r.db.Exec(ctx, `DELETE FROM coupon_redemptions WHERE code = $1 AND order_id = $2`, code, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to delete coupon redemption")
		return fmt.Errorf("failed to delete coupon redemption: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	_, err = r.db.Exec(ctx, `
		UPDATE coupons
		SET usage_count = GREATEST(usage_count - 1, 0), updated_at = NOW()
		WHERE code = $1`, code)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to decrement coupon usage")
		return fmt.Errorf("failed to decrement coupon usage: %w", err)
	}

	return nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
