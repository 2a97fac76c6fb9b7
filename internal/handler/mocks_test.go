package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"petshop/internal/identity"
	"petshop/internal/middleware"
	"petshop/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var (
	customer = identity.Actor{ID: "user-1", Role: identity.RoleCustomer}
	admin    = identity.Actor{ID: "admin-1", Role: identity.RoleAdmin}
)

// serve routes one request through a chi router holding a single route, with
// the correlation middleware and, when as is non-nil, an authenticated actor.
func serve(method, pattern, target, body string, as *identity.Actor, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(middleware.Correlation)
	r.Method(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if as != nil {
		req = req.WithContext(identity.WithActor(req.Context(), *as))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ptr[T any](v T) *T { return &v }

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) AdjustStock(ctx context.Context, actor identity.Actor, id string, req *model.StockAdjustmentRequest) (*model.Product, error) {
	args := m.Called(ctx, actor, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) cart(args mock.Arguments) (*model.Cart, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) Get(ctx context.Context, userID string) (*model.Cart, error) {
	return m.cart(m.Called(ctx, userID))
}

func (m *MockCartService) AddItem(ctx context.Context, userID string, req *model.AddItemRequest) (*model.Cart, error) {
	return m.cart(m.Called(ctx, userID, req))
}

func (m *MockCartService) UpdateItem(ctx context.Context, userID string, itemID uuid.UUID, req *model.UpdateItemRequest) (*model.Cart, error) {
	return m.cart(m.Called(ctx, userID, itemID, req))
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID string, itemID uuid.UUID) (*model.Cart, error) {
	return m.cart(m.Called(ctx, userID, itemID))
}

func (m *MockCartService) Clear(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockCartService) ApplyCoupon(ctx context.Context, userID, code string) (*model.CouponPreview, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CouponPreview), args.Error(1)
}

func (m *MockCartService) RemoveCoupon(ctx context.Context, userID string) (*model.Cart, error) {
	return m.cart(m.Called(ctx, userID))
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) order(args mock.Arguments) (*model.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) CreateOrder(ctx context.Context, userID string, req *model.OrderRequest, key string) (*model.Order, error) {
	return m.order(m.Called(ctx, userID, req, key))
}

func (m *MockOrderService) Checkout(ctx context.Context, userID string, req *model.CheckoutRequest, key string) (*model.Order, error) {
	return m.order(m.Called(ctx, userID, req, key))
}

func (m *MockOrderService) GetOrder(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Order, error) {
	return m.order(m.Called(ctx, actor, id))
}

func (m *MockOrderService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*model.Order, error) {
	return m.order(m.Called(ctx, actor, id, reason))
}

func (m *MockOrderService) AdvanceOrder(ctx context.Context, actor identity.Actor, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	return m.order(m.Called(ctx, actor, id, status))
}

func (m *MockOrderService) GetTracking(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Tracking, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tracking), args.Error(1)
}

// MockPaymentService is a mock implementation of PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) intent(args mock.Arguments) (*model.PaymentIntent, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentIntent), args.Error(1)
}

func (m *MockPaymentService) payment(args mock.Arguments) (*model.Payment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) CreateIntent(ctx context.Context, userID string, req *model.CreateIntentRequest) (*model.PaymentIntent, error) {
	return m.intent(m.Called(ctx, userID, req))
}

func (m *MockPaymentService) GetIntent(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.PaymentIntent, error) {
	return m.intent(m.Called(ctx, actor, id))
}

func (m *MockPaymentService) CancelIntent(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.PaymentIntent, error) {
	return m.intent(m.Called(ctx, actor, id))
}

func (m *MockPaymentService) Confirm(ctx context.Context, userID string, intentID uuid.UUID, req *model.ConfirmIntentRequest) (*model.Payment, error) {
	return m.payment(m.Called(ctx, userID, intentID, req))
}

func (m *MockPaymentService) Settle(ctx context.Context, req model.SettlementRequest) (*model.Payment, error) {
	return m.payment(m.Called(ctx, req))
}

func (m *MockPaymentService) GetPayment(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Payment, error) {
	return m.payment(m.Called(ctx, actor, id))
}

func (m *MockPaymentService) AddInstrument(ctx context.Context, userID string, req *model.AddInstrumentRequest) (*model.PaymentInstrument, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentInstrument), args.Error(1)
}

func (m *MockPaymentService) ListInstruments(ctx context.Context, userID string) ([]model.PaymentInstrument, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PaymentInstrument), args.Error(1)
}

func (m *MockPaymentService) DeactivateInstrument(ctx context.Context, userID string, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

// MockRefundService is a mock implementation of RefundService.
type MockRefundService struct {
	mock.Mock
}

func (m *MockRefundService) Refund(ctx context.Context, actor identity.Actor, paymentID uuid.UUID, req *model.RefundRequest) (*model.Refund, error) {
	args := m.Called(ctx, actor, paymentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Refund), args.Error(1)
}

func (m *MockRefundService) ListRefunds(ctx context.Context, actor identity.Actor, paymentID uuid.UUID) ([]model.Refund, error) {
	args := m.Called(ctx, actor, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Refund), args.Error(1)
}

// MockLoyaltyService is a mock implementation of LoyaltyService.
type MockLoyaltyService struct {
	mock.Mock
}

func (m *MockLoyaltyService) account(args mock.Arguments) (*model.LoyaltyAccount, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoyaltyAccount), args.Error(1)
}

func (m *MockLoyaltyService) GetAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error) {
	return m.account(m.Called(ctx, userID))
}

func (m *MockLoyaltyService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.PointsTransaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PointsTransaction), args.Error(1)
}

func (m *MockLoyaltyService) Earn(ctx context.Context, userID string, orderID uuid.UUID, amount decimal.Decimal) (*model.PointsTransaction, error) {
	args := m.Called(ctx, userID, orderID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PointsTransaction), args.Error(1)
}

func (m *MockLoyaltyService) Redeem(ctx context.Context, userID string, req *model.RedeemRequest) (*model.LoyaltyAccount, error) {
	return m.account(m.Called(ctx, userID, req))
}

func (m *MockLoyaltyService) Bonus(ctx context.Context, actor identity.Actor, req *model.BonusRequest) (*model.LoyaltyAccount, error) {
	return m.account(m.Called(ctx, actor, req))
}

func (m *MockLoyaltyService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}
