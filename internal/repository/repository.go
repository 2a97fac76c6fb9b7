package repository

import (
	"context"
	"time"

	"petshop/internal/model"

	"github.com/google/uuid"
)

// Lookups return (nil, nil) when the row does not exist.

// ProductRepository defines the interface for product and stock data access.
type ProductRepository interface {
	// GetAll retrieves active products with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)

	// AdjustStock adds delta to the product's stock. A delta that would make
	// the stock negative fails with model.ErrInsufficientStock.
	AdjustStock(ctx context.Context, id string, delta int) error

	// Reserve decrements stock for every line or for none of them.
	Reserve(ctx context.Context, lines []model.StockLine) error

	// Release adds the reserved quantities back to stock.
	Release(ctx context.Context, lines []model.StockLine) error
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// Create inserts an order together with its items.
	Create(ctx context.Context, order *model.Order) error

	// GetByID retrieves an order by its ID along with its items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// ListByUser retrieves a user's orders, newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Order, error)

	// Update persists the mutable fields of an order. Items are immutable.
	Update(ctx context.Context, order *model.Order) error
}

// CouponRepository defines the interface for coupon definitions and redemptions.
type CouponRepository interface {
	// GetByCode retrieves a coupon by its normalised code.
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)

	// Upsert inserts or replaces a coupon definition, keeping its usage count.
	Upsert(ctx context.Context, coupon *model.Coupon) error

	// CountUserRedemptions counts a user's redemptions of a coupon.
	CountUserRedemptions(ctx context.Context, code, userID string) (int, error)

	// Redeem records a redemption and increments the usage count, failing with
	// model.ErrCouponExhausted when the usage limit has been reached.
	Redeem(ctx context.Context, redemption model.CouponRedemption) error

	// ReleaseRedemption undoes the redemption made for an order, if any.
	ReleaseRedemption(ctx context.Context, code, orderID string) error
}

// PaymentRepository defines the interface for intents and payments.
type PaymentRepository interface {
	CreateIntent(ctx context.Context, intent *model.PaymentIntent) error
	GetIntent(ctx context.Context, id uuid.UUID) (*model.PaymentIntent, error)
	UpdateIntent(ctx context.Context, intent *model.PaymentIntent) error

	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	Update(ctx context.Context, payment *model.Payment) error
}

// InstrumentRepository defines the interface for stored payment instruments.
type InstrumentRepository interface {
	Create(ctx context.Context, instrument *model.PaymentInstrument) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentInstrument, error)
	ListByUser(ctx context.Context, userID string) ([]model.PaymentInstrument, error)
	Update(ctx context.Context, instrument *model.PaymentInstrument) error
}

// RefundRepository defines the interface for refund data access.
type RefundRepository interface {
	Create(ctx context.Context, refund *model.Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Refund, error)
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]model.Refund, error)

	// ListByStatus retrieves the oldest refunds in status, up to limit.
	ListByStatus(ctx context.Context, status model.RefundStatus, limit int) ([]model.Refund, error)

	Update(ctx context.Context, refund *model.Refund) error
}

// LoyaltyRepository defines the interface for the points ledger.
type LoyaltyRepository interface {
	GetAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error)

	// SaveAccount inserts or updates an account.
	SaveAccount(ctx context.Context, account *model.LoyaltyAccount) error

	AddTransaction(ctx context.Context, tx *model.PointsTransaction) error
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.PointsTransaction, error)

	// HasOrderTransaction reports whether a transaction of type exists for the order.
	HasOrderTransaction(ctx context.Context, userID string, orderID uuid.UUID, typ model.PointsType) (bool, error)

	// ListExpiring retrieves unexpired earned or bonus entries whose expiry is at or before now.
	ListExpiring(ctx context.Context, now time.Time, limit int) ([]model.PointsTransaction, error)

	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error
}

// CheckoutOptionRepository defines the interface for payment and shipping options.
type CheckoutOptionRepository interface {
	GetPaymentMethod(ctx context.Context, id string) (*model.PaymentMethod, error)
	GetShippingMethod(ctx context.Context, id string) (*model.ShippingMethod, error)
}

// CartRepository stores one cart per user.
type CartRepository interface {
	Get(ctx context.Context, userID string) (*model.Cart, error)
	Save(ctx context.Context, cart *model.Cart) error
	Delete(ctx context.Context, userID string) error
}

// Repos groups the repositories that share one transaction.
type Repos interface {
	Products() ProductRepository
	Orders() OrderRepository
	Coupons() CouponRepository
	Payments() PaymentRepository
	Instruments() InstrumentRepository
	Refunds() RefundRepository
	Loyalty() LoyaltyRepository
	CheckoutOptions() CheckoutOptionRepository
}

// TxManager hides transaction begin/commit/rollback from the services.
type TxManager interface {
	// WithinTx runs fn with repositories bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// Store is a transactional store. Its own repositories run outside any transaction.
type Store interface {
	Repos
	TxManager
}
