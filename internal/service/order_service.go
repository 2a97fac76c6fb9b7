package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"petshop/internal/cache"
	"petshop/internal/catalog"
	"petshop/internal/coupon"
	"petshop/internal/events"
	"petshop/internal/identity"
	"petshop/internal/lock"
	"petshop/internal/metrics"
	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// orderService implements OrderService.
type orderService struct {
	store     repository.Store
	carts     repository.CartRepository
	catalog   catalog.Gateway
	coupons   coupon.Engine
	idem      cache.IdempotencyStore
	locks     *lock.Keyed
	committer committer
	now       func() time.Time
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	store repository.Store,
	carts repository.CartRepository,
	gateway catalog.Gateway,
	coupons coupon.Engine,
	idem cache.IdempotencyStore,
	locks *lock.Keyed,
	publisher events.Publisher,
	refunds *RefundQueue,
	logger zerolog.Logger,
) OrderService {
	logger = logger.With().Str("service", "order").Logger()
	return &orderService{
		store:     store,
		carts:     carts,
		catalog:   gateway,
		coupons:   coupons,
		idem:      idem,
		locks:     locks,
		committer: committer{publisher: publisher, queue: refunds, logger: logger},
		now:       time.Now,
		logger:    logger,
	}
}

// CreateOrder creates a new order from explicit line items.
func (s *orderService) CreateOrder(ctx context.Context, userID string, req *model.OrderRequest, idempotencyKey string) (*model.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		s.logger.Debug().Err(err).Str("user_id", userID).Msg("order request rejected")
		return nil, err
	}

	return s.idempotent(ctx, userID, idempotencyKey, func() (*model.Order, error) {
		unlock := s.locks.Lock(lock.UserKey(userID))
		defer unlock()
		return s.place(ctx, userID, req)
	})
}

// Checkout creates an order from the user's cart. The cart coupon is used
// unless the request names another one. The cart is cleared on success.
func (s *orderService) Checkout(ctx context.Context, userID string, req *model.CheckoutRequest, idempotencyKey string) (*model.Order, error) {
	if req == nil {
		return nil, model.NewValidationError("request body is required")
	}

	return s.idempotent(ctx, userID, idempotencyKey, func() (*model.Order, error) {
		unlock := s.locks.Lock(lock.UserKey(userID))
		defer unlock()

		cart, err := s.carts.Get(ctx, userID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load cart")
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}
		if cart == nil || len(cart.Items) == 0 {
			return nil, model.ErrCartEmpty
		}

		orderReq := &model.OrderRequest{
			Items:            make([]model.OrderItemRequest, len(cart.Items)),
			ShippingAddress:  req.ShippingAddress,
			BillingAddress:   req.BillingAddress,
			PaymentMethodID:  req.PaymentMethodID,
			ShippingMethodID: req.ShippingMethodID,
			CouponCode:       cart.CouponCode,
			Notes:            req.Notes,
		}
		for i, item := range cart.Items {
			orderReq.Items[i] = model.OrderItemRequest{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity}
		}
		if req.CouponCode != nil {
			orderReq.CouponCode = req.CouponCode
		}
		if err := validateOrderRequest(orderReq); err != nil {
			return nil, err
		}

		order, err := s.place(ctx, userID, orderReq)
		if err != nil {
			return nil, err
		}

		if err := s.carts.Delete(ctx, userID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Str("order_id", order.ID.String()).Msg("failed to clear cart after checkout")
		}
		return order, nil
	})
}

// idempotent runs create once per non-empty key and returns the order of
// the first successful run to repeated requests.
func (s *orderService) idempotent(ctx context.Context, userID, key string, create func() (*model.Order, error)) (*model.Order, error) {
	if key == "" || s.idem == nil {
		return create()
	}

	ref, found, err := s.idem.Recall(ctx, userID, key)
	if err != nil {
		s.logger.Error().Err(err).Str("idempotency_key", key).Msg("failed to read idempotency key")
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if found {
		id, err := uuid.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("corrupt idempotency entry %q: %w", ref, err)
		}
		s.logger.Debug().Str("idempotency_key", key).Str("order_id", ref).Msg("replaying order creation")
		return s.GetOrder(ctx, identity.Actor{ID: userID, Role: identity.RoleCustomer}, id)
	}

	locked, err := s.idem.TryLock(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !locked {
		return nil, model.ErrIdempotencyConflict
	}

	order, err := create()
	if err != nil {
		if unlockErr := s.idem.Unlock(ctx, userID, key); unlockErr != nil {
			s.logger.Warn().Err(unlockErr).Str("idempotency_key", key).Msg("failed to release idempotency key")
		}
		return nil, err
	}
	if err := s.idem.Remember(ctx, userID, key, order.ID.String()); err != nil {
		s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("failed to store idempotency result")
	}
	return order, nil
}

// place prices, reserves and stores the order in one transaction. The
// caller holds the user lock.
func (s *orderService) place(ctx context.Context, userID string, req *model.OrderRequest) (*model.Order, error) {
	now := s.now()
	order := &model.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Currency:        model.DefaultCurrency,
		Status:          model.OrderPending,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.ShippingAddress,
		Notes:           req.Notes,
		Tax:             decimal.Zero,
		RefundedAmount:  decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.BillingAddress != nil {
		order.BillingAddress = *req.BillingAddress
	}
	order.Number = orderNumber(order.ID, now)
	order.TrackingCode = trackingCode(order.ID)

	fx := &effects{}
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		pm, err := r.CheckoutOptions().GetPaymentMethod(ctx, req.PaymentMethodID)
		if err != nil {
			return fmt.Errorf("failed to get payment method: %w", err)
		}
		if pm == nil || !pm.Active {
			return model.ErrInvalidPaymentMethod.WithMessage("payment method %q is unknown or inactive", req.PaymentMethodID)
		}
		sm, err := r.CheckoutOptions().GetShippingMethod(ctx, req.ShippingMethodID)
		if err != nil {
			return fmt.Errorf("failed to get shipping method: %w", err)
		}
		if sm == nil || !sm.Active {
			return model.ErrInvalidShippingMethod.WithMessage("shipping method %q is unknown or inactive", req.ShippingMethodID)
		}
		order.PaymentMethod = *pm
		order.ShippingMethod = *sm
		order.ShippingCost = sm.Cost
		order.EstimatedDelivery = now.AddDate(0, 0, sm.EstimatedDays)

		products := s.catalog.Within(r.Products())
		if err := s.priceItems(ctx, products, order, req.Items); err != nil {
			return err
		}

		if req.CouponCode != nil && *req.CouponCode != "" {
			eval, err := s.coupons.With(r.Coupons()).Evaluate(ctx, *req.CouponCode, userID, order.Subtotal, discountLines(order.Items))
			if err != nil {
				if de, ok := model.AsDomainError(err); ok {
					metrics.CouponRejections.WithLabelValues(de.Code).Inc()
				}
				return err
			}
			order.Discount = eval.DiscountAmount
			if eval.FreeShipping {
				order.ShippingCost = decimal.Zero
			}
			code := eval.Code
			order.CouponCode = &code
		} else {
			order.Discount = decimal.Zero
		}

		order.PaymentStatus, order.ShippingStatus = model.DeriveStatuses(*order, model.EventCreated)
		order.RecalculateTotal()

		if err := products.Reserve(ctx, order.StockLines()); err != nil {
			return err
		}
		if order.CouponCode != nil {
			redemption := model.CouponRedemption{Code: *order.CouponCode, UserID: userID, OrderID: order.ID.String(), RedeemedAt: now}
			if err := r.Coupons().Redeem(ctx, redemption); err != nil {
				return err
			}
		}
		if err := r.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		fx.emit(events.OrderCreated, order.ID.String(), *order)
		return nil
	})
	if err != nil {
		if _, ok := model.AsDomainError(err); ok {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("order rejected")
		} else {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create order")
		}
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	s.committer.apply(ctx, fx)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.Number).
		Int("item_count", len(order.Items)).
		Str("total", order.Total.StringFixed(2)).
		Msg("order created successfully")

	return order, nil
}

// priceItems resolves every requested product and freezes its price on the order.
func (s *orderService) priceItems(ctx context.Context, products catalog.Gateway, order *model.Order, items []model.OrderItemRequest) error {
	requested := make(map[string]int, len(items))
	for _, item := range items {
		requested[item.ProductID] += item.Quantity
	}

	resolved := make(map[string]*model.Product, len(requested))
	for id, qty := range requested {
		product, err := products.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := ValidateAvailability(product, qty); err != nil {
			return err
		}
		resolved[id] = product
	}

	subtotal := decimal.Zero
	order.Items = make([]model.OrderItem, len(items))
	for i, item := range items {
		product := resolved[item.ProductID]
		unit := product.EffectivePrice()
		line := model.Round2(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
		order.Items[i] = model.OrderItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ProductID:  product.ID,
			VariantID:  item.VariantID,
			Name:       product.Name,
			Category:   product.Category,
			Quantity:   item.Quantity,
			UnitPrice:  unit,
			TotalPrice: line,
		}
		subtotal = subtotal.Add(line)
	}
	order.Subtotal = model.Round2(subtotal)
	return nil
}

// GetOrder returns the order when the actor owns it or is an admin.
func (s *orderService) GetOrder(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil || (!actor.IsAdmin() && !order.OwnedBy(actor.ID)) {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	limit, offset = pageBounds(limit, offset)
	orders, err := s.store.Orders().ListByUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// CancelOrder cancels a pending or confirmed order: stock and coupon usage
// are given back, a completed payment is refunded and a processing one failed.
func (s *orderService) CancelOrder(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*model.Order, error) {
	if _, err := s.GetOrder(ctx, actor, id); err != nil {
		return nil, err
	}

	unlockOrder := s.locks.Lock(lock.OrderKey(id.String()))
	defer unlockOrder()

	// The payment reference only changes under the order lock.
	current, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if current.PaymentID != nil {
		// A payment never changes intent, so the intent can be locked first.
		existing, err := s.store.Payments().GetByID(ctx, *current.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get payment: %w", err)
		}
		if existing != nil {
			unlockIntent := s.locks.Lock(lock.IntentKey(existing.IntentID.String()))
			defer unlockIntent()
		}
		unlockPayment := s.locks.Lock(lock.PaymentKey(current.PaymentID.String()))
		defer unlockPayment()
	}

	if reason == "" {
		reason = "cancelled by customer"
	}

	now := s.now()
	fx := &effects{}
	var order *model.Order
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		o, err := r.Orders().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}
		if o == nil {
			return model.ErrOrderNotFound
		}
		if !o.Cancellable() {
			return model.ErrCannotCancelOrder.WithMessage("order %s is %s and can no longer be cancelled", o.Number, o.Status)
		}
		from := o.Status

		if err := s.catalog.Within(r.Products()).Release(ctx, o.StockLines()); err != nil {
			return err
		}
		if o.CouponCode != nil {
			if err := r.Coupons().ReleaseRedemption(ctx, *o.CouponCode, o.ID.String()); err != nil {
				return fmt.Errorf("failed to release coupon redemption: %w", err)
			}
		}

		if o.PaymentID != nil {
			if err := s.settlePaymentOnCancel(ctx, r, o, reason, now, fx); err != nil {
				return err
			}
		}

		o.CancellationReason = reason
		if err := model.ApplyEvent(o, model.EventCancelled, now); err != nil {
			return err
		}
		if err := r.Orders().Update(ctx, o); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		fx.orderChanged(o, from)
		fx.emit(events.OrderCancelled, o.ID.String(), *o)
		order = o
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", id.String()).Msg("failed to cancel order")
		return nil, err
	}

	s.committer.apply(ctx, fx)
	s.logger.Info().Str("order_id", id.String()).Str("reason", reason).Msg("order cancelled")
	return order, nil
}

func (s *orderService) settlePaymentOnCancel(ctx context.Context, r repository.Repos, o *model.Order, reason string, now time.Time, fx *effects) error {
	p, err := r.Payments().GetByID(ctx, *o.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if p == nil {
		return nil
	}

	switch p.Status {
	case model.PaymentCompleted:
		rf, err := openRefund(ctx, r, p, nil, reason, now)
		if err != nil {
			return err
		}
		fx.refund(rf.ID)
	case model.PaymentPending, model.PaymentProcessing:
		p.Status = model.PaymentFailed
		p.FailureReason = "order cancelled"
		p.UpdatedAt = now
		if err := r.Payments().Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		in, err := r.Payments().GetIntent(ctx, p.IntentID)
		if err != nil {
			return fmt.Errorf("failed to get payment intent: %w", err)
		}
		if in != nil && !in.Status.Terminal() {
			in.Status = model.IntentCancelled
			in.UpdatedAt = now
			if err := r.Payments().UpdateIntent(ctx, in); err != nil {
				return fmt.Errorf("failed to update payment intent: %w", err)
			}
		}
	}
	return nil
}

var advanceEvents = map[model.OrderStatus]model.OrderEvent{
	model.OrderProcessing: model.EventProcessing,
	model.OrderShipped:    model.EventShipped,
	model.OrderDelivered:  model.EventDelivered,
}

// AdvanceOrder moves an order to processing, shipped or delivered. Delivery
// credits the customer's loyalty points.
func (s *orderService) AdvanceOrder(ctx context.Context, actor identity.Actor, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, model.ErrForbidden
	}
	event, ok := advanceEvents[status]
	if !ok {
		return nil, model.NewValidationError("status must be one of processing, shipped, delivered")
	}

	existing, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	unlockUser := s.locks.Lock(lock.UserKey(existing.UserID))
	defer unlockUser()
	unlockOrder := s.locks.Lock(lock.OrderKey(id.String()))
	defer unlockOrder()

	now := s.now()
	fx := &effects{}
	var order *model.Order
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		o, err := r.Orders().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}
		if o == nil {
			return model.ErrOrderNotFound
		}
		from := o.Status
		if from == status {
			return model.ErrInvalidTransition.WithMessage("order %s is already %s", o.Number, status)
		}
		if err := model.ApplyEvent(o, event, now); err != nil {
			return err
		}
		if err := r.Orders().Update(ctx, o); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		if status == model.OrderDelivered {
			if _, err := earnPoints(ctx, r, o.UserID, o.ID, o.Total.Sub(o.RefundedAmount), now); err != nil {
				return err
			}
		}

		fx.orderChanged(o, from)
		order = o
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", id.String()).Str("status", string(status)).Msg("failed to advance order")
		return nil, err
	}

	s.committer.apply(ctx, fx)
	s.logger.Info().Str("order_id", id.String()).Str("status", string(status)).Msg("order advanced")
	return order, nil
}

// GetTracking returns the tracking view of an order.
func (s *orderService) GetTracking(ctx context.Context, actor identity.Actor, id uuid.UUID) (*model.Tracking, error) {
	order, err := s.GetOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return model.NewTracking(order), nil
}

// validateOrderRequest checks the shape of the request before any state is touched.
func validateOrderRequest(req *model.OrderRequest) error {
	if req == nil {
		return model.NewValidationError("request body is required")
	}
	if len(req.Items) == 0 {
		return model.NewValidationError("order must contain at least one item")
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			return model.NewValidationError("item %d: productId is required", i)
		}
		if item.Quantity <= 0 {
			return model.ErrInvalidQuantity.WithMessage("item %d: quantity must be greater than zero", i)
		}
	}
	if req.PaymentMethodID == "" {
		return model.NewValidationError("paymentMethodId is required")
	}
	if req.ShippingMethodID == "" {
		return model.NewValidationError("shippingMethodId is required")
	}
	return validateAddress("shippingAddress", req.ShippingAddress)
}

func validateAddress(field string, a model.Address) error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"street", a.Street},
		{"number", a.Number},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return model.NewValidationError("%s: missing %s", field, strings.Join(missing, ", "))
	}
	return nil
}

func discountLines(items []model.OrderItem) []model.DiscountLine {
	lines := make([]model.DiscountLine, len(items))
	for i, item := range items {
		lines[i] = model.DiscountLine{ProductID: item.ProductID, Category: item.Category, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	return lines
}

// orderNumber is PET, the creation date and the first block of the id.
func orderNumber(id uuid.UUID, now time.Time) string {
	return "PET" + now.UTC().Format("20060102") + "-" + strings.ToUpper(id.String()[:8])
}

// trackingCode is PS, nine digits derived from the order id and BR.
func trackingCode(id uuid.UUID) string {
	return fmt.Sprintf("PS%09dBR", binary.BigEndian.Uint64(id[8:])%1_000_000_000)
}
