package service

import (
	"context"
	"time"

	"petshop/internal/identity"
	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductService defines operations on the catalog.
type ProductService interface {
	// GetAll retrieves active products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// AdjustStock restocks or writes off units of a product. Admin only.
	// Stock never goes below zero.
	AdjustStock(ctx context.Context, actor identity.Actor, id string, req *model.StockAdjustmentRequest) (*model.Product, error)
}

// CartService manages the single cart of each user.
type CartService interface {
	// Get returns the user's cart, empty when none exists.
	Get(ctx context.Context, userID string) (*model.Cart, error)

	// AddItem adds a product line or merges it into the existing line.
	AddItem(ctx context.Context, userID string, req *model.AddItemRequest) (*model.Cart, error)

	// UpdateItem sets the quantity of a line; zero removes it.
	UpdateItem(ctx context.Context, userID string, itemID uuid.UUID, req *model.UpdateItemRequest) (*model.Cart, error)

	// RemoveItem drops a line.
	RemoveItem(ctx context.Context, userID string, itemID uuid.UUID) (*model.Cart, error)

	// Clear empties the cart.
	Clear(ctx context.Context, userID string) error

	// ApplyCoupon validates a coupon against the cart and attaches it.
	ApplyCoupon(ctx context.Context, userID, code string) (*model.CouponPreview, error)

	// RemoveCoupon detaches the coupon.
	RemoveCoupon(ctx context.Context, userID string) (*model.Cart, error)
}

// OrderService orchestrates order creation and the order lifecycle.
type OrderService interface {
	// CreateOrder prices, reserves and stores a new order. A repeated
	// non-empty idempotency key returns the order created first.
	CreateOrder(ctx context.Context, userID string, req *model.OrderRequest, idempotencyKey string) (*model.Order, error)

	// Checkout creates an order from the user's cart and clears the cart.
	Checkout(ctx context.Context, userID string, req *model.CheckoutRequest, idempotencyKey string) (*model.Order, error)

	// GetOrder returns an order visible to the actor.
	GetOrder(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Order, error)

	// ListOrders returns the user's orders, newest first.
	ListOrders(ctx context.Context, userID string, limit, offset int) ([]model.Order, error)

	// CancelOrder cancels a pending or confirmed order.
	CancelOrder(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*model.Order, error)

	// AdvanceOrder moves an order forward in fulfilment. Admin only.
	AdvanceOrder(ctx context.Context, actor identity.Actor, id uuid.UUID, status model.OrderStatus) (*model.Order, error)

	// GetTracking returns the derived tracking view of an order.
	GetTracking(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Tracking, error)
}

// PaymentService manages intents, payments and stored instruments.
type PaymentService interface {
	CreateIntent(ctx context.Context, userID string, req *model.CreateIntentRequest) (*model.PaymentIntent, error)
	GetIntent(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.PaymentIntent, error)
	CancelIntent(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.PaymentIntent, error)

	// Confirm attempts the payment of an intent with a stored instrument.
	// The intent ends succeeded on an approved card, processing while PIX or
	// boleto await settlement, and cancelled when the payment fails.
	Confirm(ctx context.Context, userID string, intentID uuid.UUID, req *model.ConfirmIntentRequest) (*model.Payment, error)

	// Settle applies the out-of-band outcome of a processing payment.
	Settle(ctx context.Context, req model.SettlementRequest) (*model.Payment, error)

	GetPayment(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Payment, error)

	AddInstrument(ctx context.Context, userID string, req *model.AddInstrumentRequest) (*model.PaymentInstrument, error)
	ListInstruments(ctx context.Context, userID string) ([]model.PaymentInstrument, error)
	DeactivateInstrument(ctx context.Context, userID string, id uuid.UUID) error
}

// RefundService opens refunds against completed payments.
type RefundService interface {
	// Refund opens a pending refund; settlement happens asynchronously.
	Refund(ctx context.Context, actor identity.Actor, paymentID uuid.UUID, req *model.RefundRequest) (*model.Refund, error)

	// ListRefunds lists the refunds of a payment.
	ListRefunds(ctx context.Context, actor identity.Actor, paymentID uuid.UUID) ([]model.Refund, error)
}

// LoyaltyService manages the points ledger.
type LoyaltyService interface {
	GetAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.PointsTransaction, error)

	// Earn credits the points of a delivered order once.
	Earn(ctx context.Context, userID string, orderID uuid.UUID, amount decimal.Decimal) (*model.PointsTransaction, error)

	Redeem(ctx context.Context, userID string, req *model.RedeemRequest) (*model.LoyaltyAccount, error)
	Bonus(ctx context.Context, actor identity.Actor, req *model.BonusRequest) (*model.LoyaltyAccount, error)

	// ExpireDue expires the entries past their validity and returns how many expired.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// pageBounds applies the listing defaults: limit 10, at most 100.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
