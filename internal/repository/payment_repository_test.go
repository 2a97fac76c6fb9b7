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

func TestPaymentRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(pool, zerolog.Nop())
	now := time.Now().UTC().Truncate(time.Microsecond)

	order := testOrder("user-1", now)
	require.NoError(t, store.Orders().Create(ctx, order))

	instrument := &model.PaymentInstrument{
		ID:        uuid.New(),
		UserID:    "user-1",
		Type:      model.InstrumentPix,
		Label:     "PIX",
		Active:    true,
		CreatedAt: now,
	}
	intent := &model.PaymentIntent{
		ID:           uuid.New(),
		UserID:       "user-1",
		OrderID:      &order.ID,
		Amount:       order.Total,
		Currency:     model.DefaultCurrency,
		AllowedTypes: []model.InstrumentType{model.InstrumentPix, model.InstrumentBoleto},
		ClientSecret: "pi_secret",
		Status:       model.IntentRequiresPaymentMethod,
		ExpiresAt:    now.Add(30 * time.Minute),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	t.Run("instruments", func(t *testing.T) {
		require.NoError(t, store.Instruments().Create(ctx, instrument))

		got, err := store.Instruments().GetByID(ctx, instrument.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.InstrumentPix, got.Type)

		got.Active = false
		require.NoError(t, store.Instruments().Update(ctx, got))

		list, err := store.Instruments().ListByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.False(t, list[0].Active)

		// payments below still reference it
		list[0].Active = true
		require.NoError(t, store.Instruments().Update(ctx, &list[0]))
	})

	t.Run("intents", func(t *testing.T) {
		require.NoError(t, store.Payments().CreateIntent(ctx, intent))

		got, err := store.Payments().GetIntent(ctx, intent.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, intent.AllowedTypes, got.AllowedTypes)
		assert.True(t, intent.Amount.Equal(got.Amount))
		assert.True(t, intent.ExpiresAt.Equal(got.ExpiresAt))
		require.NotNil(t, got.OrderID)
		assert.Equal(t, order.ID, *got.OrderID)

		missing, err := store.Payments().GetIntent(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	payment := &model.Payment{
		ID:                uuid.New(),
		UserID:            "user-1",
		OrderID:           &order.ID,
		IntentID:          intent.ID,
		InstrumentID:      instrument.ID,
		Amount:            order.Total,
		Currency:          model.DefaultCurrency,
		Status:            model.PaymentProcessing,
		InstrumentType:    model.InstrumentPix,
		ProcessingFee:     dec("0"),
		NetAmount:         order.Total,
		Installments:      1,
		InstallmentAmount: order.Total,
		Pix: &model.PixDetails{
			Code:      "00020126580014BR.GOV.BCB.PIX",
			QRCode:    "data:image/png;base64,AAAA",
			ExpiresAt: now.Add(30 * time.Minute),
		},
		RefundedAmount: dec("0"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	t.Run("payments", func(t *testing.T) {
		require.NoError(t, store.Payments().Create(ctx, payment))

		intent.Status = model.IntentProcessing
		intent.PaymentID = &payment.ID
		intent.UpdatedAt = now.Add(time.Second)
		require.NoError(t, store.Payments().UpdateIntent(ctx, intent))

		gotIntent, err := store.Payments().GetIntent(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, model.IntentProcessing, gotIntent.Status)
		require.NotNil(t, gotIntent.PaymentID)
		assert.Equal(t, payment.ID, *gotIntent.PaymentID)

		got, err := store.Payments().GetByID(ctx, payment.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NotNil(t, got.Pix)
		assert.Equal(t, payment.Pix.Code, got.Pix.Code)
		assert.Nil(t, got.Boleto)

		paidAt := now.Add(time.Minute)
		got.Status = model.PaymentCompleted
		got.AuthorizationCode = "AUTH123"
		got.PaidAt = &paidAt
		got.UpdatedAt = paidAt
		require.NoError(t, store.Payments().Update(ctx, got))

		updated, err := store.Payments().GetByID(ctx, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentCompleted, updated.Status)
		assert.Equal(t, "AUTH123", updated.AuthorizationCode)
		require.NotNil(t, updated.PaidAt)
		assert.True(t, paidAt.Equal(*updated.PaidAt))

		unknown := *payment
		unknown.ID = uuid.New()
		assert.ErrorIs(t, store.Payments().Update(ctx, &unknown), model.ErrPaymentNotFound)
	})

	t.Run("refunds", func(t *testing.T) {
		older := &model.Refund{
			ID:        uuid.New(),
			PaymentID: payment.ID,
			UserID:    "user-1",
			Amount:    dec("50.00"),
			Reason:    "produto avariado",
			Status:    model.RefundPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		newer := &model.Refund{
			ID:        uuid.New(),
			PaymentID: payment.ID,
			UserID:    "user-1",
			Amount:    dec("20.00"),
			Status:    model.RefundPending,
			CreatedAt: now.Add(time.Second),
			UpdatedAt: now.Add(time.Second),
		}
		require.NoError(t, store.Refunds().Create(ctx, older))
		require.NoError(t, store.Refunds().Create(ctx, newer))

		pending, err := store.Refunds().ListByStatus(ctx, model.RefundPending, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, older.ID, pending[0].ID)

		completedAt := now.Add(time.Minute)
		older.Status = model.RefundCompleted
		older.CompletedAt = &completedAt
		older.UpdatedAt = completedAt
		require.NoError(t, store.Refunds().Update(ctx, older))

		got, err := store.Refunds().GetByID(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RefundCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)

		all, err := store.Refunds().ListByPayment(ctx, payment.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.True(t, dec("20.00").Equal(model.ReservedRefunds(all)))

		pending, err = store.Refunds().ListByStatus(ctx, model.RefundPending, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, newer.ID, pending[0].ID)
	})
}

func TestLoyaltyRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewLoyaltyRepository(pool, zerolog.Nop())
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("accounts are upserted", func(t *testing.T) {
		missing, err := repo.GetAccount(ctx, "user-1")
		require.NoError(t, err)
		assert.Nil(t, missing)

		acc := model.NewLoyaltyAccount("user-1", now)
		acc.AvailablePoints = 189
		acc.LifetimeSpend = dec("189.90")
		acc.OrderCount = 1
		require.NoError(t, repo.SaveAccount(ctx, acc))

		acc.AvailablePoints = 89
		acc.Tier = model.TierSilver
		require.NoError(t, repo.SaveAccount(ctx, acc))

		got, err := repo.GetAccount(ctx, "user-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(89), got.AvailablePoints)
		assert.Equal(t, model.TierSilver, got.Tier)
		assert.True(t, dec("189.90").Equal(got.LifetimeSpend))
	})

	orderID := uuid.New()
	expired := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("transactions", func(t *testing.T) {
		entries := []*model.PointsTransaction{
			{ID: uuid.New(), UserID: "user-1", Type: model.PointsEarned, Points: 189, OrderID: &orderID, ExpiresAt: &expired, CreatedAt: now.Add(-2 * time.Minute)},
			{ID: uuid.New(), UserID: "user-1", Type: model.PointsBonus, Points: 50, ExpiresAt: &future, CreatedAt: now.Add(-time.Minute)},
			{ID: uuid.New(), UserID: "user-1", Type: model.PointsRedeemed, Points: -100, CreatedAt: now},
		}
		for _, e := range entries {
			require.NoError(t, repo.AddTransaction(ctx, e))
		}

		list, err := repo.ListTransactions(ctx, "user-1", 10, 0)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, model.PointsRedeemed, list[0].Type)

		page, err := repo.ListTransactions(ctx, "user-1", 1, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, model.PointsEarned, page[0].Type)

		done, err := repo.HasOrderTransaction(ctx, "user-1", orderID, model.PointsEarned)
		require.NoError(t, err)
		assert.True(t, done)

		done, err = repo.HasOrderTransaction(ctx, "user-1", orderID, model.PointsRedeemed)
		require.NoError(t, err)
		assert.False(t, done)
	})

	t.Run("expiry", func(t *testing.T) {
		due, err := repo.ListExpiring(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, model.PointsEarned, due[0].Type)

		require.NoError(t, repo.MarkExpired(ctx, due[0].ID, now))

		due, err = repo.ListExpiring(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		due, err = repo.ListExpiring(ctx, future, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, model.PointsBonus, due[0].Type)
	})
}
