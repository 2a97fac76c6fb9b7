package service

import (
	"context"
	"testing"

	"petshop/internal/events"
	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundService_PartialThenFull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	order, p := f.paidOrder(t)

	partial, err := f.refunds.Refund(ctx, customer, p.ID, &model.RefundRequest{Amount: decPtr("74.80"), Reason: "embalagem danificada"})
	require.NoError(t, err)
	assert.Equal(t, model.RefundPending, partial.Status)

	f.drainRefunds(t)

	afterPartial, err := f.payments.GetPayment(ctx, customer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, afterPartial.Status)
	assert.Equal(t, "74.80", afterPartial.RefundedAmount.StringFixed(2))

	o := f.order(t, order.ID)
	assert.Equal(t, model.OrderConfirmed, o.Status)
	assert.Equal(t, model.PaymentStatusPartiallyRefunded, o.PaymentStatus)

	rest, err := f.refunds.Refund(ctx, customer, p.ID, &model.RefundRequest{Reason: "desistência"})
	require.NoError(t, err)
	assert.Equal(t, "100.00", rest.Amount.StringFixed(2))

	f.drainRefunds(t)

	final, err := f.payments.GetPayment(ctx, customer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRefunded, final.Status)
	assert.Equal(t, "desistência", final.RefundReason)
	assert.NotNil(t, final.RefundedAt)

	o = f.order(t, order.ID)
	assert.Equal(t, model.OrderRefunded, o.Status)
	assert.Equal(t, model.PaymentStatusRefunded, o.PaymentStatus)
	assert.Equal(t, model.ShippingCancelled, o.ShippingStatus)
	assert.Equal(t, "174.80", o.RefundedAmount.StringFixed(2))

	refunds, err := f.refunds.ListRefunds(ctx, customer, p.ID)
	require.NoError(t, err)
	require.Len(t, refunds, 2)
	for _, rf := range refunds {
		assert.Equal(t, model.RefundCompleted, rf.Status)
		assert.NotNil(t, rf.CompletedAt)
	}
	assert.Contains(t, f.publisher.types(), events.RefundCompleted)
}

func TestRefundService_Refund_CumulativeLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, p := f.paidOrder(t)

	_, err := f.refunds.Refund(ctx, customer, p.ID, &model.RefundRequest{Amount: decPtr("174.81")})
	assert.ErrorIs(t, err, model.ErrInvalidRefundAmount)

	_, err = f.refunds.Refund(ctx, customer, p.ID, &model.RefundRequest{Amount: decPtr("100")})
	require.NoError(t, err)

	// The pending refund already counts against the balance.
	_, err = f.refunds.Refund(ctx, customer, p.ID, &model.RefundRequest{Amount: decPtr("74.81")})
	assert.ErrorIs(t, err, model.ErrInvalidRefundAmount)

	_, err = f.refunds.Refund(ctx, customer, p.ID, &model.RefundRequest{Amount: decPtr("74.80")})
	require.NoError(t, err)

	_, err = f.refunds.Refund(ctx, customer, p.ID, nil)
	assert.ErrorIs(t, err, model.ErrInvalidRefundAmount)
}

func TestRefundService_Refund_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, p := f.paidOrder(t)

	_, err := f.refunds.Refund(ctx, stranger, p.ID, nil)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.refunds.Refund(ctx, customer, uuid.New(), nil)
	assert.ErrorIs(t, err, model.ErrPaymentNotFound)

	_, err = f.refunds.Refund(ctx, customer, p.ID, &model.RefundRequest{Amount: decPtr("-1")})
	assert.ErrorIs(t, err, model.NewValidationError(""))

	order := pendingOrder(t, f)
	intent, err := f.payments.CreateIntent(ctx, customer.ID, &model.CreateIntentRequest{OrderID: &order.ID})
	require.NoError(t, err)
	pix := f.instrument(t, customer.ID, model.InstrumentPix)
	processing, err := f.payments.Confirm(ctx, customer.ID, intent.ID, &model.ConfirmIntentRequest{InstrumentID: pix.ID})
	require.NoError(t, err)

	_, err = f.refunds.Refund(ctx, customer, processing.ID, nil)
	assert.ErrorIs(t, err, model.ErrInvalidPaymentStatus)

	_, err = f.refunds.Refund(ctx, admin, p.ID, &model.RefundRequest{Amount: decPtr("10")})
	assert.NoError(t, err)
}

func TestRefundWorker_ProcessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, p := f.paidOrder(t)
	rf, err := f.refunds.Refund(ctx, customer, p.ID, &model.RefundRequest{Amount: decPtr("20")})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.worker.Process(ctx, rf.ID))
	}

	settled, err := f.payments.GetPayment(ctx, customer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.00", settled.RefundedAmount.StringFixed(2))
}

func TestRefundWorker_SweepPicksUpUnqueuedRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, p := f.paidOrder(t)
	rf, err := f.refunds.Refund(ctx, customer, p.ID, &model.RefundRequest{Amount: decPtr("20")})
	require.NoError(t, err)
	// Drop the queued id to simulate a restart.
	<-f.queue.ch

	f.worker.sweep(ctx)

	stored, err := f.store.Refunds().GetByID(ctx, rf.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RefundCompleted, stored.Status)
}

func TestRefundQueue_FullQueueDoesNotBlock(t *testing.T) {
	queue := NewRefundQueue(1, zerolog.Nop())

	assert.True(t, queue.Enqueue(uuid.New()))
	assert.False(t, queue.Enqueue(uuid.New()))
}
