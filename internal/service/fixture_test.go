package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"petshop/internal/cache"
	"petshop/internal/catalog"
	"petshop/internal/coupon"
	"petshop/internal/events"
	"petshop/internal/identity"
	"petshop/internal/lock"
	"petshop/internal/model"
	"petshop/internal/payment"
	"petshop/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func clock() time.Time { return testNow }

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// MockPaymentGateway is a mock implementation of payment.Gateway.
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Authorize(ctx context.Context, req payment.AuthorizationRequest) (payment.Authorization, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.Authorization), args.Error(1)
}

type fixture struct {
	store     *memory.Store
	carts     *memory.CartRepository
	queue     *RefundQueue
	publisher *recordingPublisher

	cart     CartService
	orders   OrderService
	payments PaymentService
	refunds  RefundService
	worker   *RefundWorker
	loyalty  LoyaltyService
}

var (
	customer = identity.Actor{ID: "user-1", Role: identity.RoleCustomer}
	stranger = identity.Actor{ID: "user-2", Role: identity.RoleCustomer}
	admin    = identity.Actor{ID: "admin-1", Role: identity.RoleAdmin}
)

func newFixture(t *testing.T, gateway payment.Gateway) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	store := memory.NewStore()
	store.SeedProducts(
		model.Product{ID: "racao-premium", Name: "Ração Premium 15kg", Category: "racao", Price: dec("79.90"), Stock: 10, Active: true},
		model.Product{ID: "petisco-frango", Name: "Petisco de Frango", Category: "petiscos", Price: dec("14.90"), SalePrice: decPtr("12.50"), Stock: 50, Active: true},
		model.Product{ID: "coleira-antiga", Name: "Coleira Antiga", Category: "acessorios", Price: dec("30.00"), Stock: 5, Active: false},
	)
	store.SeedCheckoutOptions(
		[]model.PaymentMethod{
			{ID: "cartao", Name: "Cartão de crédito", Type: model.InstrumentCreditCard, Active: true},
			{ID: "pix", Name: "PIX", Type: model.InstrumentPix, Active: true},
			{ID: "cheque", Name: "Cheque", Type: model.InstrumentBoleto, Active: false},
		},
		[]model.ShippingMethod{
			{ID: "sedex", Name: "SEDEX", Carrier: "Correios", Cost: dec("15.00"), EstimatedDays: 3, Active: true},
		},
	)
	desconto := model.Coupon{Code: "DESCONTO10", Type: model.CouponPercentage, Value: dec("10"), Active: true}
	frete := model.Coupon{Code: "FRETEGRATIS", Type: model.CouponFreeShipping, Active: true}
	require.NoError(t, store.Coupons().Upsert(context.Background(), &desconto))
	require.NoError(t, store.Coupons().Upsert(context.Background(), &frete))

	if gateway == nil {
		gateway = payment.NewSimulatedGateway(1, 1)
	}

	locks := lock.NewKeyed()
	carts := memory.NewCartRepository()
	products := catalog.NewGateway(store.Products(), catalog.Settings{}, logger)
	engine := coupon.NewEngine(store.Coupons(), clock, logger)
	queue := NewRefundQueue(16, logger)
	publisher := &recordingPublisher{}

	f := &fixture{store: store, carts: carts, queue: queue, publisher: publisher}

	cartSvc := NewCartService(carts, products, engine, locks, logger).(*cartService)
	cartSvc.now = clock
	f.cart = cartSvc

	orderSvc := NewOrderService(store, carts, products, engine, cache.NewMemoryIdempotencyStore(time.Hour), locks, publisher, queue, logger).(*orderService)
	orderSvc.now = clock
	f.orders = orderSvc

	paymentSvc := NewPaymentService(store, gateway, PaymentSettings{
		CardFeePercent: dec("3.99"),
		Artifacts: payment.Artifacts{
			MerchantName: "PETSHOP",
			MerchantCity: "SAO PAULO",
			PixKey:       "pix@petshop.example",
			BaseURL:      "https://pay.petshop.example",
			PixTTL:       30 * time.Minute,
			BoletoTTL:    72 * time.Hour,
		},
	}, locks, publisher, queue, logger).(*paymentService)
	paymentSvc.now = clock
	f.payments = paymentSvc

	refundSvc := NewRefundService(store, locks, queue, logger).(*refundService)
	refundSvc.now = clock
	f.refunds = refundSvc

	f.worker = NewRefundWorker(store, locks, queue, publisher, RefundWorkerSettings{}, logger)
	f.worker.now = clock

	loyaltySvc := NewLoyaltyService(store, locks, logger).(*loyaltyService)
	loyaltySvc.now = clock
	f.loyalty = loyaltySvc

	return f
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func address() model.Address {
	return model.Address{
		Recipient:  "Maria Silva",
		Street:     "Rua das Flores",
		Number:     "123",
		City:       "São Paulo",
		State:      "SP",
		PostalCode: "01234-567",
		Country:    "BR",
	}
}

func orderRequest(items ...model.OrderItemRequest) *model.OrderRequest {
	return &model.OrderRequest{
		Items:            items,
		ShippingAddress:  address(),
		PaymentMethodID:  "cartao",
		ShippingMethodID: "sedex",
	}
}

func item(productID string, qty int) model.OrderItemRequest {
	return model.OrderItemRequest{ProductID: productID, Quantity: qty}
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Stock
}

func (f *fixture) couponUsage(t *testing.T, code string) int {
	t.Helper()
	c, err := f.store.Coupons().GetByCode(context.Background(), code)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c.UsageCount
}

func (f *fixture) order(t *testing.T, id uuid.UUID) *model.Order {
	t.Helper()
	o, err := f.orders.GetOrder(context.Background(), admin, id)
	require.NoError(t, err)
	return o
}

func (f *fixture) instrument(t *testing.T, userID string, typ model.InstrumentType) *model.PaymentInstrument {
	t.Helper()
	inst, err := f.payments.AddInstrument(context.Background(), userID, &model.AddInstrumentRequest{Type: typ, Label: string(typ), Last4: "4242"})
	require.NoError(t, err)
	return inst
}

// paidOrder places an order for two bags of food and pays it by card.
func (f *fixture) paidOrder(t *testing.T) (*model.Order, *model.Payment) {
	t.Helper()
	ctx := context.Background()
	order, err := f.orders.CreateOrder(ctx, customer.ID, orderRequest(item("racao-premium", 2)), "")
	require.NoError(t, err)

	intent, err := f.payments.CreateIntent(ctx, customer.ID, &model.CreateIntentRequest{OrderID: &order.ID})
	require.NoError(t, err)
	card := f.instrument(t, customer.ID, model.InstrumentCreditCard)
	p, err := f.payments.Confirm(ctx, customer.ID, intent.ID, &model.ConfirmIntentRequest{InstrumentID: card.ID})
	require.NoError(t, err)
	require.Equal(t, model.PaymentCompleted, p.Status)

	return f.order(t, order.ID), p
}

// drainRefunds settles every queued refund.
func (f *fixture) drainRefunds(t *testing.T) {
	t.Helper()
	for {
		select {
		case id := <-f.queue.ch:
			require.NoError(t, f.worker.Process(context.Background(), id))
		default:
			return
		}
	}
}
