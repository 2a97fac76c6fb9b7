// Package memory provides in-process implementations of the repository
// interfaces. A transaction works on a copy of the data that replaces the
// live data only when the transaction succeeds.
package memory

import (
	"context"
	"sync"

	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/google/uuid"
)

type data struct {
	products        map[string]model.Product
	orders          map[uuid.UUID]model.Order
	coupons         map[string]model.Coupon
	redemptions     []model.CouponRedemption
	intents         map[uuid.UUID]model.PaymentIntent
	payments        map[uuid.UUID]model.Payment
	instruments     map[uuid.UUID]model.PaymentInstrument
	refunds         map[uuid.UUID]model.Refund
	accounts        map[string]model.LoyaltyAccount
	points          []model.PointsTransaction
	paymentMethods  map[string]model.PaymentMethod
	shippingMethods map[string]model.ShippingMethod
}

func newData() *data {
	return &data{
		products:        map[string]model.Product{},
		orders:          map[uuid.UUID]model.Order{},
		coupons:         map[string]model.Coupon{},
		intents:         map[uuid.UUID]model.PaymentIntent{},
		payments:        map[uuid.UUID]model.Payment{},
		instruments:     map[uuid.UUID]model.PaymentInstrument{},
		refunds:         map[uuid.UUID]model.Refund{},
		accounts:        map[string]model.LoyaltyAccount{},
		paymentMethods:  map[string]model.PaymentMethod{},
		shippingMethods: map[string]model.ShippingMethod{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies the containers. Stored values are never mutated in place, so
// sharing them between copies is safe.
func (d *data) clone() *data {
	return &data{
		products:        copyMap(d.products),
		orders:          copyMap(d.orders),
		coupons:         copyMap(d.coupons),
		redemptions:     append([]model.CouponRedemption(nil), d.redemptions...),
		intents:         copyMap(d.intents),
		payments:        copyMap(d.payments),
		instruments:     copyMap(d.instruments),
		refunds:         copyMap(d.refunds),
		accounts:        copyMap(d.accounts),
		points:          append([]model.PointsTransaction(nil), d.points...),
		paymentMethods:  copyMap(d.paymentMethods),
		shippingMethods: copyMap(d.shippingMethods),
	}
}

// state gives repositories access to the data. mu is nil inside a
// transaction, where the store lock is already held.
type state struct {
	mu  *sync.Mutex
	get func() *data
}

func (s *state) acquire() (*data, func()) {
	if s.mu == nil {
		return s.get(), func() {}
	}
	s.mu.Lock()
	return s.get(), s.mu.Unlock
}

type repos struct {
	products    *productRepository
	orders      *orderRepository
	coupons     *couponRepository
	payments    *paymentRepository
	instruments *instrumentRepository
	refunds     *refundRepository
	loyalty     *loyaltyRepository
	options     *checkoutOptionRepository
}

func newRepos(st *state) *repos {
	return &repos{
		products:    &productRepository{st},
		orders:      &orderRepository{st},
		coupons:     &couponRepository{st},
		payments:    &paymentRepository{st},
		instruments: &instrumentRepository{st},
		refunds:     &refundRepository{st},
		loyalty:     &loyaltyRepository{st},
		options:     &checkoutOptionRepository{st},
	}
}

func (r *repos) Products() repository.ProductRepository               { return r.products }
func (r *repos) Orders() repository.OrderRepository                   { return r.orders }
func (r *repos) Coupons() repository.CouponRepository                 { return r.coupons }
func (r *repos) Payments() repository.PaymentRepository               { return r.payments }
func (r *repos) Instruments() repository.InstrumentRepository         { return r.instruments }
func (r *repos) Refunds() repository.RefundRepository                 { return r.refunds }
func (r *repos) Loyalty() repository.LoyaltyRepository                { return r.loyalty }
func (r *repos) CheckoutOptions() repository.CheckoutOptionRepository { return r.options }

// Store is an in-memory repository.Store. Transactions are serialized.
type Store struct {
	*repos
	mu   sync.Mutex
	data *data
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	s := &Store{data: newData()}
	s.repos = newRepos(&state{mu: &s.mu, get: func() *data { return s.data }})
	return s
}

// WithinTx runs fn against a private copy of the data and publishes the copy
// only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(newRepos(&state{get: func() *data { return working }})); err != nil {
		return err
	}
	s.data = working
	return nil
}

// SeedProducts inserts or replaces catalog products.
func (s *Store) SeedProducts(products ...model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.data.products[p.ID] = p
	}
}

// SeedCheckoutOptions inserts or replaces payment and shipping methods.
func (s *Store) SeedCheckoutOptions(payments []model.PaymentMethod, shipping []model.ShippingMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range payments {
		s.data.paymentMethods[m.ID] = m
	}
	for _, m := range shipping {
		s.data.shippingMethods[m.ID] = m
	}
}

var _ repository.Store = (*Store)(nil)
