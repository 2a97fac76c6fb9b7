package coupon

import (
	"testing"

	"petshop/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSet_AddAndGet(t *testing.T) {
	set := newMapSet(10)

	set.Add(model.Coupon{Code: " desconto10 ", Type: model.CouponPercentage, Value: decimal.NewFromInt(10)})
	set.Add(model.Coupon{Code: "FRETE", Type: model.CouponFreeShipping})

	c, ok := set.Get("Desconto10")
	require.True(t, ok)
	assert.Equal(t, "DESCONTO10", c.Code)

	_, ok = set.Get("NOTEXIST")
	assert.False(t, ok)

	set.Add(model.Coupon{Code: "DESCONTO10", Type: model.CouponPercentage, Value: decimal.NewFromInt(20)})
	assert.Equal(t, 2, set.Size())
	c, _ = set.Get("DESCONTO10")
	assert.Equal(t, "20", c.Value.String())
}

func TestMapSet_CouponsSortedByCode(t *testing.T) {
	set := newMapSet(3)
	for _, code := range []string{"ZETA", "ALFA", "MEIO"} {
		set.Add(model.Coupon{Code: code})
	}

	var codes []string
	for _, c := range set.Coupons() {
		codes = append(codes, c.Code)
	}
	assert.Equal(t, []string{"ALFA", "MEIO", "ZETA"}, codes)
}

func TestMapSet_Merge(t *testing.T) {
	a := newMapSet(2)
	a.Add(model.Coupon{Code: "A", Value: decimal.NewFromInt(1)})
	a.Add(model.Coupon{Code: "B", Value: decimal.NewFromInt(1)})

	b := newMapSet(2)
	b.Add(model.Coupon{Code: "B", Value: decimal.NewFromInt(2)})
	b.Add(model.Coupon{Code: "C", Value: decimal.NewFromInt(2)})

	a.merge(b)

	assert.Equal(t, 3, a.Size())
	c, _ := a.Get("B")
	assert.Equal(t, "2", c.Value.String())
}
