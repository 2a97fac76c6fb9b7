// Package coupon validates promotion codes against an order context and
// imports coupon definitions from gzipped files.
package coupon

import (
	"context"

	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/shopspring/decimal"
)

// Engine evaluates coupons. Evaluation never changes usage counters.
type Engine interface {
	// Evaluate checks code for userID against the order subtotal and lines and
	// computes the discount. Every rejection unwraps to model.ErrCouponInvalid.
	Evaluate(ctx context.Context, code, userID string, subtotal decimal.Decimal, lines []model.DiscountLine) (*model.DiscountEvaluation, error)

	// With returns an engine reading coupons from the given repository,
	// typically one bound to a transaction.
	With(coupons repository.CouponRepository) Engine
}

// Set holds coupon definitions keyed by normalised code.
type Set interface {
	// Get returns the definition for code.
	Get(code string) (model.Coupon, bool)

	// Coupons returns every definition, sorted by code.
	Coupons() []model.Coupon

	// Size returns the number of coupons in the set.
	Size() int
}

// Loader defines the interface for loading coupon definition files.
type Loader interface {
	// Load reads a gzipped file holding one JSON coupon definition per line.
	Load(ctx context.Context, filePath string) (Set, error)
}
