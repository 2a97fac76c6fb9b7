package memory

import (
	"context"
	"sync"

	"petshop/internal/model"
	"petshop/internal/repository"
)

// CartRepository keeps carts in process memory.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]model.Cart
}

// NewCartRepository creates an empty in-memory cart repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: map[string]model.Cart{}}
}

func cloneCart(c model.Cart) model.Cart {
	c.Items = append([]model.CartItem{}, c.Items...)
	if c.CouponCode != nil {
		code := *c.CouponCode
		c.CouponCode = &code
	}
	return c
}

func (r *CartRepository) Get(_ context.Context, userID string) (*model.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[userID]
	if !ok {
		return nil, nil
	}
	c = cloneCart(c)
	return &c, nil
}

func (r *CartRepository) Save(_ context.Context, cart *model.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[cart.UserID] = cloneCart(*cart)
	return nil
}

func (r *CartRepository) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)
	return nil
}

var _ repository.CartRepository = (*CartRepository)(nil)
