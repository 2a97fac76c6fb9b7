package coupon

import (
	"context"
	"fmt"
	"sort"
	"time"

	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// engine implements Engine on top of a CouponRepository.
type engine struct {
	coupons repository.CouponRepository
	now     func() time.Time
	logger  zerolog.Logger
}

// NewEngine creates a discount engine. now defaults to time.Now.
func NewEngine(coupons repository.CouponRepository, now func() time.Time, logger zerolog.Logger) Engine {
	if now == nil {
		now = time.Now
	}
	return &engine{
		coupons: coupons,
		now:     now,
		logger:  logger.With().Str("component", "discount-engine").Logger(),
	}
}

func (e *engine) With(coupons repository.CouponRepository) Engine {
	return &engine{coupons: coupons, now: e.now, logger: e.logger}
}

func (e *engine) Evaluate(ctx context.Context, code, userID string, subtotal decimal.Decimal, lines []model.DiscountLine) (*model.DiscountEvaluation, error) {
	code = model.NormalizeCouponCode(code)
	if code == "" {
		return nil, model.ErrCouponNotFound
	}

	c, err := e.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	if c == nil {
		return nil, model.ErrCouponNotFound.WithMessage("coupon %s does not exist", code)
	}

	if err := e.check(ctx, c, userID, subtotal, lines); err != nil {
		e.logger.Debug().Err(err).Str("coupon", code).Str("user_id", userID).Msg("coupon rejected")
		return nil, err
	}

	amount, freeShipping := Discount(c, subtotal, lines)
	return &model.DiscountEvaluation{
		Coupon:         c,
		Code:           c.Code,
		DiscountAmount: amount,
		FreeShipping:   freeShipping,
	}, nil
}

// check applies the validation rules in order; the first failure wins.
func (e *engine) check(ctx context.Context, c *model.Coupon, userID string, subtotal decimal.Decimal, lines []model.DiscountLine) error {
	now := e.now()

	if !c.Active {
		return model.ErrCouponInactive
	}
	if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
		return model.ErrCouponNotYetValid.WithMessage("coupon %s is valid from %s", c.Code, c.ValidFrom.Format(time.RFC3339))
	}
	if !c.ValidTo.IsZero() && now.After(c.ValidTo) {
		return model.ErrCouponExpired.WithMessage("coupon %s expired at %s", c.Code, c.ValidTo.Format(time.RFC3339))
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return model.ErrCouponExhausted
	}
	if c.MinOrderAmount != nil && subtotal.LessThan(*c.MinOrderAmount) {
		return model.ErrCouponMinOrder.WithMessage("order subtotal %s is below the coupon minimum %s",
			subtotal.StringFixed(2), c.MinOrderAmount.StringFixed(2))
	}
	if c.PerUserLimit != nil {
		used, err := e.coupons.CountUserRedemptions(ctx, c.Code, userID)
		if err != nil {
			return fmt.Errorf("failed to count coupon redemptions: %w", err)
		}
		if used >= *c.PerUserLimit {
			return model.ErrCouponUserLimit
		}
	}
	if c.Scoped() && len(eligible(c, lines)) == 0 {
		return model.ErrCouponNotApplicable
	}
	return nil
}

// Discount computes the discount of a valid coupon. The amount is rounded to
// cents and never exceeds subtotal.
func Discount(c *model.Coupon, subtotal decimal.Decimal, lines []model.DiscountLine) (decimal.Decimal, bool) {
	base := subtotal
	if c.Scoped() {
		base = lineSubtotal(eligible(c, lines))
	}

	amount := decimal.Zero
	freeShipping := false

	switch c.Type {
	case model.CouponPercentage:
		amount = model.Round2(base.Mul(c.Value).Div(decimal.NewFromInt(100)))
		if c.MaxDiscount != nil {
			amount = model.MinDecimal(amount, *c.MaxDiscount)
		}
	case model.CouponFixed:
		amount = model.MinDecimal(c.Value, base)
	case model.CouponFreeShipping:
		freeShipping = true
	case model.CouponBuyXGetY:
		amount = freeUnitsCredit(c, eligible(c, lines))
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return model.Round2(model.MinDecimal(amount, subtotal)), freeShipping
}

// freeUnitsCredit grants floor(N/buy)*get free units, cheapest units first.
func freeUnitsCredit(c *model.Coupon, lines []model.DiscountLine) decimal.Decimal {
	if c.BuyQuantity < 1 || c.GetQuantity < 1 {
		return decimal.Zero
	}

	units := 0
	for _, l := range lines {
		units += l.Quantity
	}
	free := (units / c.BuyQuantity) * c.GetQuantity
	if free > units {
		free = units
	}

	sorted := append([]model.DiscountLine(nil), lines...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UnitPrice.LessThan(sorted[j].UnitPrice) })

	credit := decimal.Zero
	for _, l := range sorted {
		if free == 0 {
			break
		}
		n := min(free, l.Quantity)
		credit = credit.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(n))))
		free -= n
	}
	return credit
}

func eligible(c *model.Coupon, lines []model.DiscountLine) []model.DiscountLine {
	out := make([]model.DiscountLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity > 0 && c.Applies(l) {
			out = append(out, l)
		}
	}
	return out
}

func lineSubtotal(lines []model.DiscountLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(model.Round2(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))))
	}
	return total
}
