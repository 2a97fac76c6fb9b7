package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CouponType selects how a coupon's discount is computed.
type CouponType string

const (
	CouponPercentage   CouponType = "percentage"
	CouponFixed        CouponType = "fixed"
	CouponFreeShipping CouponType = "free_shipping"
	CouponBuyXGetY     CouponType = "buy_x_get_y"
)

// Valid reports whether t is a known coupon type.
func (t CouponType) Valid() bool {
	switch t {
	case CouponPercentage, CouponFixed, CouponFreeShipping, CouponBuyXGetY:
		return true
	}
	return false
}

// Coupon is a promotion code definition.
type Coupon struct {
	Code                 string           `json:"code"`
	Description          string           `json:"description,omitempty"`
	Type                 CouponType       `json:"type"`
	Value                decimal.Decimal  `json:"value"`
	MinOrderAmount       *decimal.Decimal `json:"minOrderAmount,omitempty"`
	MaxDiscount          *decimal.Decimal `json:"maxDiscount,omitempty"`
	UsageLimit           *int             `json:"usageLimit,omitempty"`
	PerUserLimit         *int             `json:"perUserLimit,omitempty"`
	UsageCount           int              `json:"usageCount"`
	Active               bool             `json:"active"`
	ValidFrom            time.Time        `json:"validFrom"`
	ValidTo              time.Time        `json:"validTo"`
	ApplicableCategories []string         `json:"applicableCategories,omitempty"`
	ApplicableProducts   []string         `json:"applicableProducts,omitempty"`
	BuyQuantity          int              `json:"buyQuantity,omitempty"`
	GetQuantity          int              `json:"getQuantity,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// NormalizeCouponCode is the canonical, case-insensitive form of a code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Scoped reports whether the coupon only applies to some products or categories.
func (c *Coupon) Scoped() bool {
	return len(c.ApplicableCategories) > 0 || len(c.ApplicableProducts) > 0
}

// Applies reports whether a line qualifies under the coupon's scoping.
func (c *Coupon) Applies(line DiscountLine) bool {
	if !c.Scoped() {
		return true
	}
	for _, p := range c.ApplicableProducts {
		if p == line.ProductID {
			return true
		}
	}
	for _, cat := range c.ApplicableCategories {
		if strings.EqualFold(cat, line.Category) {
			return true
		}
	}
	return false
}

// CouponRedemption records one use of a coupon by a user on an order.
type CouponRedemption struct {
	Code       string    `json:"code"`
	UserID     string    `json:"userId"`
	OrderID    string    `json:"orderId"`
	RedeemedAt time.Time `json:"redeemedAt"`
}

// DiscountLine is the part of a cart or order line the discount engine needs.
type DiscountLine struct {
	ProductID string
	Category  string
	Quantity  int
	UnitPrice decimal.Decimal
}

// DiscountEvaluation is the outcome of applying a coupon to an order context.
type DiscountEvaluation struct {
	Coupon         *Coupon         `json:"-"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FreeShipping   bool            `json:"freeShipping"`
}
