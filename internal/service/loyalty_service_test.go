package service

import (
	"context"
	"testing"
	"time"

	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoyaltyService_Earn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	orderID := uuid.New()

	entry, err := f.loyalty.Earn(ctx, customer.ID, orderID, dec("1250.75"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(1250), entry.Points)
	require.NotNil(t, entry.ExpiresAt)
	assert.Equal(t, testNow.Add(model.PointsValidity), *entry.ExpiresAt)

	again, err := f.loyalty.Earn(ctx, customer.ID, orderID, dec("1250.75"))
	require.NoError(t, err)
	assert.Nil(t, again)

	account, err := f.loyalty.GetAccount(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), account.AvailablePoints)
	assert.Equal(t, model.TierSilver, account.Tier)
	assert.Equal(t, 1, account.OrderCount)

	// Silver earns 125%.
	entry, err = f.loyalty.Earn(ctx, customer.ID, uuid.New(), dec("100"))
	require.NoError(t, err)
	assert.Equal(t, int64(125), entry.Points)
}

func TestLoyaltyService_Redeem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.loyalty.Earn(ctx, customer.ID, uuid.New(), dec("300"))
	require.NoError(t, err)

	_, err = f.loyalty.Redeem(ctx, customer.ID, &model.RedeemRequest{Points: 301})
	assert.ErrorIs(t, err, model.ErrInsufficientPoints)

	_, err = f.loyalty.Redeem(ctx, customer.ID, &model.RedeemRequest{Points: 0})
	assert.ErrorIs(t, err, model.NewValidationError(""))

	account, err := f.loyalty.Redeem(ctx, customer.ID, &model.RedeemRequest{Points: 120})
	require.NoError(t, err)
	assert.Equal(t, int64(180), account.AvailablePoints)

	txs, err := f.loyalty.ListTransactions(ctx, customer.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	var redeemed int64
	for _, tx := range txs {
		if tx.Type == model.PointsRedeemed {
			redeemed = tx.Points
		}
	}
	assert.Equal(t, int64(-120), redeemed)
}

func TestLoyaltyService_Bonus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.loyalty.Bonus(ctx, customer, &model.BonusRequest{UserID: customer.ID, Points: 50})
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.loyalty.Bonus(ctx, admin, &model.BonusRequest{Points: 50})
	assert.ErrorIs(t, err, model.NewValidationError(""))

	account, err := f.loyalty.Bonus(ctx, admin, &model.BonusRequest{UserID: customer.ID, Points: 50, Description: "aniversário do pet"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), account.AvailablePoints)
	assert.Equal(t, model.TierBronze, account.Tier)
}

func TestLoyaltyService_ExpireDue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.loyalty.Earn(ctx, customer.ID, uuid.New(), dec("200"))
	require.NoError(t, err)
	_, err = f.loyalty.Redeem(ctx, customer.ID, &model.RedeemRequest{Points: 150})
	require.NoError(t, err)

	n, err := f.loyalty.ExpireDue(ctx, testNow.Add(model.PointsValidity-time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.loyalty.ExpireDue(ctx, testNow.Add(model.PointsValidity))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	account, err := f.loyalty.GetAccount(ctx, customer.ID)
	require.NoError(t, err)
	assert.Zero(t, account.AvailablePoints)

	n, err = f.loyalty.ExpireDue(ctx, testNow.Add(2*model.PointsValidity))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoyaltyService_GetAccount_Empty(t *testing.T) {
	f := newFixture(t, nil)

	account, err := f.loyalty.GetAccount(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Equal(t, model.TierBronze, account.Tier)
	assert.Zero(t, account.AvailablePoints)
}
