package service

import (
	"context"
	"fmt"
	"time"

	"petshop/internal/catalog"
	"petshop/internal/coupon"
	"petshop/internal/lock"
	"petshop/internal/metrics"
	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// cartService implements CartService.
type cartService struct {
	carts   repository.CartRepository
	catalog catalog.Gateway
	coupons coupon.Engine
	locks   *lock.Keyed
	reads   singleflight.Group
	now     func() time.Time
	logger  zerolog.Logger
}

// NewCartService creates a new cart service. locks must be shared with the
// order service so checkout and cart edits of one user never interleave.
func NewCartService(
	carts repository.CartRepository,
	gateway catalog.Gateway,
	coupons coupon.Engine,
	locks *lock.Keyed,
	logger zerolog.Logger,
) CartService {
	return &cartService{
		carts:   carts,
		catalog: gateway,
		coupons: coupons,
		locks:   locks,
		now:     time.Now,
		logger:  logger.With().Str("service", "cart").Logger(),
	}
}

// Get returns the user's cart. Concurrent reads of one cart share a lookup.
func (s *cartService) Get(ctx context.Context, userID string) (*model.Cart, error) {
	v, err, _ := s.reads.Do(userID, func() (any, error) {
		return s.load(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Cart), nil
}

func (s *cartService) load(ctx context.Context, userID string) (*model.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load cart")
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil {
		cart = model.NewCart(userID, s.now())
	}
	return cart, nil
}

func (s *cartService) save(ctx context.Context, cart *model.Cart) error {
	cart.Recalculate()
	cart.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, cart); err != nil {
		s.logger.Error().Err(err).Str("user_id", cart.UserID).Msg("failed to save cart")
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// AddItem adds a product line or merges it into the existing line of the
// same product and variant. Stock is checked for the merged quantity.
func (s *cartService) AddItem(ctx context.Context, userID string, req *model.AddItemRequest) (*model.Cart, error) {
	if req == nil || req.ProductID == "" {
		return nil, model.NewValidationError("productId is required")
	}
	if req.Quantity <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	unlock := s.locks.Lock(lock.UserKey(userID))
	defer unlock()

	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := cart.FindLine(req.ProductID, req.VariantID)
	quantity := req.Quantity
	if idx >= 0 {
		quantity += cart.Items[idx].Quantity
	}
	if err := ValidateAvailability(product, quantity); err != nil {
		s.logger.Debug().Err(err).Str("product_id", product.ID).Int("quantity", quantity).Msg("item rejected")
		return nil, err
	}

	if idx >= 0 {
		item := &cart.Items[idx]
		item.Quantity = quantity
		item.UnitPrice = product.EffectivePrice()
		if req.Note != "" {
			item.Note = req.Note
		}
	} else {
		cart.Items = append(cart.Items, model.CartItem{
			ID:        uuid.New(),
			ProductID: product.ID,
			VariantID: req.VariantID,
			Name:      product.Name,
			Category:  product.Category,
			Quantity:  quantity,
			UnitPrice: product.EffectivePrice(),
			Note:      req.Note,
			AddedAt:   s.now(),
		})
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("product_id", product.ID).
		Int("quantity", quantity).
		Msg("cart item added")
	return cart, nil
}

// UpdateItem sets the absolute quantity of a line. Zero removes the line.
func (s *cartService) UpdateItem(ctx context.Context, userID string, itemID uuid.UUID, req *model.UpdateItemRequest) (*model.Cart, error) {
	if req == nil || req.Quantity < 0 {
		return nil, model.ErrInvalidQuantity
	}

	unlock := s.locks.Lock(lock.UserKey(userID))
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := cart.FindItem(itemID)
	if idx < 0 {
		return nil, model.ErrCartItemNotFound
	}

	if req.Quantity == 0 {
		cart.RemoveAt(idx)
	} else {
		item := &cart.Items[idx]
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if err := ValidateAvailability(product, req.Quantity); err != nil {
			return nil, err
		}
		item.Quantity = req.Quantity
		item.UnitPrice = product.EffectivePrice()
		if req.Note != nil {
			item.Note = *req.Note
		}
	}

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem drops a line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, userID string, itemID uuid.UUID) (*model.Cart, error) {
	unlock := s.locks.Lock(lock.UserKey(userID))
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := cart.FindItem(itemID)
	if idx < 0 {
		return nil, model.ErrCartItemNotFound
	}
	cart.RemoveAt(idx)

	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear deletes the cart.
func (s *cartService) Clear(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(lock.UserKey(userID))
	defer unlock()

	if err := s.carts.Delete(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to clear cart")
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// ApplyCoupon evaluates code against the cart without redeeming it and
// attaches it for checkout.
func (s *cartService) ApplyCoupon(ctx context.Context, userID, code string) (*model.CouponPreview, error) {
	if code == "" {
		return nil, model.NewValidationError("code is required")
	}

	unlock := s.locks.Lock(lock.UserKey(userID))
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, model.ErrCartEmpty
	}

	eval, err := s.coupons.Evaluate(ctx, code, userID, cart.Subtotal, cart.DiscountLines())
	if err != nil {
		if de, ok := model.AsDomainError(err); ok {
			metrics.CouponRejections.WithLabelValues(de.Code).Inc()
		}
		s.logger.Debug().Err(err).Str("user_id", userID).Str("coupon_code", code).Msg("coupon rejected")
		return nil, err
	}

	applied := eval.Code
	cart.CouponCode = &applied
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	return &model.CouponPreview{
		Cart:       cart,
		Evaluation: *eval,
		Total:      model.Round2(cart.Total.Sub(eval.DiscountAmount)),
	}, nil
}

// RemoveCoupon detaches the coupon from the cart.
func (s *cartService) RemoveCoupon(ctx context.Context, userID string) (*model.Cart, error) {
	unlock := s.locks.Lock(lock.UserKey(userID))
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart.CouponCode = nil
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}
