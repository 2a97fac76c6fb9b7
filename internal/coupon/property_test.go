package coupon

import (
	"testing"

	"petshop/internal/model"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestProperty_PercentageDiscount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("discount is subtotal x value / 100, capped at the maximum", prop.ForAll(
		func(unitCents int64, qty int, percent int64, capCents int64, capped bool) bool {
			unit := decimal.New(unitCents, -2)
			lines := []model.DiscountLine{{ProductID: "p", Category: "c", Quantity: qty, UnitPrice: unit}}
			subtotal := unit.Mul(decimal.NewFromInt(int64(qty)))

			c := model.Coupon{Type: model.CouponPercentage, Value: decimal.NewFromInt(percent)}
			want := model.Round2(subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)))
			if capped {
				maxDiscount := decimal.New(capCents, -2)
				c.MaxDiscount = &maxDiscount
				want = model.MinDecimal(want, maxDiscount)
			}

			got, freeShipping := Discount(&c, subtotal, lines)
			return !freeShipping && got.Equal(want) && got.LessThanOrEqual(subtotal)
		},
		gen.Int64Range(1, 100_000),
		gen.IntRange(1, 20),
		gen.Int64Range(0, 100),
		gen.Int64Range(0, 50_000),
		gen.Bool(),
	))

	properties.Property("fixed discount never exceeds the subtotal", prop.ForAll(
		func(subtotalCents, valueCents int64) bool {
			subtotal := decimal.New(subtotalCents, -2)
			c := model.Coupon{Type: model.CouponFixed, Value: decimal.New(valueCents, -2)}
			got, _ := Discount(&c, subtotal, nil)
			return got.Equal(model.MinDecimal(c.Value, subtotal))
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}
