package repository

import (
	"context"
	"testing"
	"time"

	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := testOrder("user-1", now)
	code := "BEMVINDO10"
	order.CouponCode = &code
	order.Items = append(order.Items, model.OrderItem{
		ID:         uuid.New(),
		OrderID:    order.ID,
		ProductID:  "petisco-bifinho-500g",
		Name:       "Bifinho de Carne 500g",
		Category:   "petiscos",
		Quantity:   2,
		UnitPrice:  dec("29.90"),
		TotalPrice: dec("59.80"),
	})

	require.NoError(t, repo.Create(ctx, order))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, order.Number, got.Number)
	assert.Equal(t, "user-1", got.UserID)
	assert.True(t, order.Total.Equal(got.Total))
	assert.Equal(t, model.OrderPending, got.Status)
	assert.Equal(t, order.ShippingAddress, got.ShippingAddress)
	assert.Equal(t, "pix", got.PaymentMethod.ID)
	assert.True(t, dec("15.90").Equal(got.ShippingMethod.Cost))
	require.NotNil(t, got.CouponCode)
	assert.Equal(t, code, *got.CouponCode)
	assert.True(t, now.Equal(got.CreatedAt))

	require.Len(t, got.Items, 2)
	assert.Equal(t, "racao-golden-15kg", got.Items[0].ProductID)
	assert.Equal(t, "petisco-bifinho-500g", got.Items[1].ProductID)
	assert.Equal(t, 2, got.Items[1].Quantity)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepository_ListByUser(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		o := testOrder("user-1", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, o))
		ids = append(ids, o.ID)
	}
	require.NoError(t, repo.Create(ctx, testOrder("user-2", base)))

	tests := []struct {
		name     string
		userID   string
		limit    int
		offset   int
		expected []uuid.UUID
	}{
		{name: "newest first", userID: "user-1", limit: 10, expected: []uuid.UUID{ids[2], ids[1], ids[0]}},
		{name: "paginated", userID: "user-1", limit: 1, offset: 1, expected: []uuid.UUID{ids[1]}},
		{name: "no orders", userID: "user-3", limit: 10, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := repo.ListByUser(ctx, tt.userID, tt.limit, tt.offset)

			require.NoError(t, err)
			require.Len(t, orders, len(tt.expected))
			for i, o := range orders {
				assert.Equal(t, tt.expected[i], o.ID)
				assert.Len(t, o.Items, 1)
			}
		})
	}
}

func TestOrderRepository_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewOrderRepository(pool, zerolog.Nop())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := testOrder("user-1", now)
	require.NoError(t, repo.Create(ctx, order))

	cancelledAt := now.Add(time.Hour)
	order.Status = model.OrderCancelled
	order.ShippingStatus = model.ShippingCancelled
	order.CancellationReason = "changed my mind"
	order.CancelledAt = &cancelledAt
	order.UpdatedAt = cancelledAt
	require.NoError(t, repo.Update(ctx, order))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, got.Status)
	assert.Equal(t, model.ShippingCancelled, got.ShippingStatus)
	assert.Equal(t, "changed my mind", got.CancellationReason)
	require.NotNil(t, got.CancelledAt)
	assert.True(t, cancelledAt.Equal(*got.CancelledAt))

	unknown := testOrder("user-1", now)
	assert.ErrorIs(t, repo.Update(ctx, unknown), model.ErrOrderNotFound)
}

func TestCouponRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCouponRepository(pool, zerolog.Nop())
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	limit, perUser := 2, 1
	maxDiscount := dec("50.00")
	coupon := &model.Coupon{
		Code:                 "  racao10 ",
		Description:          "10% em rações",
		Type:                 model.CouponPercentage,
		Value:                dec("10"),
		MaxDiscount:          &maxDiscount,
		UsageLimit:           &limit,
		PerUserLimit:         &perUser,
		Active:               true,
		ValidFrom:            now.Add(-time.Hour),
		ValidTo:              now.Add(24 * time.Hour),
		ApplicableCategories: []string{"racao"},
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	t.Run("Upsert normalises the code", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, coupon))

		got, err := repo.GetByCode(ctx, "Racao10")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "RACAO10", got.Code)
		assert.Equal(t, model.CouponPercentage, got.Type)
		assert.Equal(t, []string{"racao"}, got.ApplicableCategories)
		assert.Empty(t, got.ApplicableProducts)
		require.NotNil(t, got.MaxDiscount)
		assert.True(t, maxDiscount.Equal(*got.MaxDiscount))
		assert.Nil(t, got.MinOrderAmount)
	})

	t.Run("Redeem counts usage per user", func(t *testing.T) {
		require.NoError(t, repo.Redeem(ctx, model.CouponRedemption{Code: "RACAO10", UserID: "user-1", OrderID: "order-1", RedeemedAt: now}))

		count, err := repo.CountUserRedemptions(ctx, "racao10", "user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = repo.CountUserRedemptions(ctx, "RACAO10", "user-2")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("Redeem stops at the usage limit", func(t *testing.T) {
		require.NoError(t, repo.Redeem(ctx, model.CouponRedemption{Code: "RACAO10", UserID: "user-2", OrderID: "order-2", RedeemedAt: now}))

		err := repo.Redeem(ctx, model.CouponRedemption{Code: "RACAO10", UserID: "user-3", OrderID: "order-3", RedeemedAt: now})
		assert.ErrorIs(t, err, model.ErrCouponExhausted)

		got, err := repo.GetByCode(ctx, "RACAO10")
		require.NoError(t, err)
		assert.Equal(t, 2, got.UsageCount)
	})

	t.Run("Upsert keeps the usage count", func(t *testing.T) {
		coupon.Description = "10% em rações (renovado)"
		require.NoError(t, repo.Upsert(ctx, coupon))

		got, err := repo.GetByCode(ctx, "RACAO10")
		require.NoError(t, err)
		assert.Equal(t, 2, got.UsageCount)
		assert.Equal(t, "10% em rações (renovado)", got.Description)
	})

	t.Run("ReleaseRedemption frees a use once", func(t *testing.T) {
		require.NoError(t, repo.ReleaseRedemption(ctx, "racao10", "order-1"))
		require.NoError(t, repo.ReleaseRedemption(ctx, "racao10", "order-1"))

		got, err := repo.GetByCode(ctx, "RACAO10")
		require.NoError(t, err)
		assert.Equal(t, 1, got.UsageCount)

		count, err := repo.CountUserRedemptions(ctx, "RACAO10", "user-1")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("missing coupon", func(t *testing.T) {
		got, err := repo.GetByCode(ctx, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
