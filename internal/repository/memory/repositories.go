package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"petshop/internal/model"

	"github.com/google/uuid"
)

type productRepository struct{ st *state }

func (r *productRepository) GetAll(_ context.Context, limit, offset int) ([]model.Product, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	products := make([]model.Product, 0, len(d.products))
	for _, p := range d.products {
		if p.Active {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return page(products, limit, offset), nil
}

func (r *productRepository) GetByID(_ context.Context, id string) (*model.Product, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	p, ok := d.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *productRepository) GetByIDs(_ context.Context, ids []string) ([]model.Product, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	products := []model.Product{}
	for _, id := range ids {
		if p, ok := d.products[id]; ok {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (r *productRepository) AdjustStock(_ context.Context, id string, delta int) error {
	d, unlock := r.st.acquire()
	defer unlock()

	p, ok := d.products[id]
	if !ok {
		return model.ErrProductNotFound.WithMessage("product %s not found", id)
	}
	if p.Stock+delta < 0 {
		return model.ErrInsufficientStock.WithMessage("product %s has %d units, %d requested", id, p.Stock, -delta)
	}
	p.Stock += delta
	p.UpdatedAt = time.Now()
	d.products[id] = p
	return nil
}

// Reserve validates every line before touching any stock.
func (r *productRepository) Reserve(_ context.Context, lines []model.StockLine) error {
	d, unlock := r.st.acquire()
	defer unlock()

	wanted := map[string]int{}
	for _, l := range lines {
		wanted[l.ProductID] += l.Quantity
	}

	for id, qty := range wanted {
		p, ok := d.products[id]
		if !ok {
			return model.ErrProductNotFound.WithMessage("product %s not found", id)
		}
		if !p.Active {
			return model.ErrProductUnavailable.WithMessage("product %s is not available", id)
		}
		if p.Stock < qty {
			return model.ErrInsufficientStock.WithMessage("product %s has %d units, %d requested", id, p.Stock, qty)
		}
	}

	now := time.Now()
	for id, qty := range wanted {
		p := d.products[id]
		p.Stock -= qty
		p.UpdatedAt = now
		d.products[id] = p
	}
	return nil
}

func (r *productRepository) Release(_ context.Context, lines []model.StockLine) error {
	d, unlock := r.st.acquire()
	defer unlock()

	for _, l := range lines {
		if _, ok := d.products[l.ProductID]; !ok {
			return model.ErrProductNotFound.WithMessage("product %s not found", l.ProductID)
		}
	}
	now := time.Now()
	for _, l := range lines {
		p := d.products[l.ProductID]
		p.Stock += l.Quantity
		p.UpdatedAt = now
		d.products[l.ProductID] = p
	}
	return nil
}

type orderRepository struct{ st *state }

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem(nil), o.Items...)
	return o
}

func (r *orderRepository) Create(_ context.Context, order *model.Order) error {
	d, unlock := r.st.acquire()
	defer unlock()

	d.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r *orderRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	o, ok := d.orders[id]
	if !ok {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *orderRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]model.Order, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	orders := []model.Order{}
	for _, o := range d.orders {
		if o.UserID == userID {
			orders = append(orders, cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return page(orders, limit, offset), nil
}

func (r *orderRepository) Update(_ context.Context, order *model.Order) error {
	d, unlock := r.st.acquire()
	defer unlock()

	existing, ok := d.orders[order.ID]
	if !ok {
		return model.ErrOrderNotFound
	}
	updated := cloneOrder(*order)
	updated.Items = existing.Items
	d.orders[order.ID] = updated
	return nil
}

type couponRepository struct{ st *state }

func cloneCoupon(c model.Coupon) model.Coupon {
	c.ApplicableCategories = append([]string(nil), c.ApplicableCategories...)
	c.ApplicableProducts = append([]string(nil), c.ApplicableProducts...)
	return c
}

func (r *couponRepository) GetByCode(_ context.Context, code string) (*model.Coupon, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	c, ok := d.coupons[model.NormalizeCouponCode(code)]
	if !ok {
		return nil, nil
	}
	c = cloneCoupon(c)
	return &c, nil
}

func (r *couponRepository) Upsert(_ context.Context, coupon *model.Coupon) error {
	d, unlock := r.st.acquire()
	defer unlock()

	c := cloneCoupon(*coupon)
	c.Code = model.NormalizeCouponCode(c.Code)
	if existing, ok := d.coupons[c.Code]; ok {
		c.UsageCount = existing.UsageCount
		c.CreatedAt = existing.CreatedAt
	}
	d.coupons[c.Code] = c
	return nil
}

func (r *couponRepository) CountUserRedemptions(_ context.Context, code, userID string) (int, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	code = model.NormalizeCouponCode(code)
	count := 0
	for _, red := range d.redemptions {
		if red.Code == code && red.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *couponRepository) Redeem(_ context.Context, redemption model.CouponRedemption) error {
	d, unlock := r.st.acquire()
	defer unlock()

	code := model.NormalizeCouponCode(redemption.Code)
	c, ok := d.coupons[code]
	if !ok {
		return model.ErrCouponNotFound
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return model.ErrCouponExhausted
	}
	c.UsageCount++
	c.UpdatedAt = time.Now()
	d.coupons[code] = c

	redemption.Code = code
	d.redemptions = append(d.redemptions, redemption)
	return nil
}

func (r *couponRepository) ReleaseRedemption(_ context.Context, code, orderID string) error {
	d, unlock := r.st.acquire()
	defer unlock()

	code = model.NormalizeCouponCode(code)
	for i, red := range d.redemptions {
		if red.Code == code && red.OrderID == orderID {
			d.redemptions = append(d.redemptions[:i:i], d.redemptions[i+1:]...)
			if c, ok := d.coupons[code]; ok && c.UsageCount > 0 {
				c.UsageCount--
				d.coupons[code] = c
			}
			return nil
		}
	}
	return nil
}

type paymentRepository struct{ st *state }

func cloneIntent(i model.PaymentIntent) model.PaymentIntent {
	i.AllowedTypes = append([]model.InstrumentType(nil), i.AllowedTypes...)
	return i
}

func (r *paymentRepository) CreateIntent(_ context.Context, intent *model.PaymentIntent) error {
	d, unlock := r.st.acquire()
	defer unlock()

	d.intents[intent.ID] = cloneIntent(*intent)
	return nil
}

func (r *paymentRepository) GetIntent(_ context.Context, id uuid.UUID) (*model.PaymentIntent, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	i, ok := d.intents[id]
	if !ok {
		return nil, nil
	}
	i = cloneIntent(i)
	return &i, nil
}

func (r *paymentRepository) UpdateIntent(_ context.Context, intent *model.PaymentIntent) error {
	d, unlock := r.st.acquire()
	defer unlock()

	if _, ok := d.intents[intent.ID]; !ok {
		return model.ErrIntentNotFound
	}
	d.intents[intent.ID] = cloneIntent(*intent)
	return nil
}

func (r *paymentRepository) Create(_ context.Context, payment *model.Payment) error {
	d, unlock := r.st.acquire()
	defer unlock()

	d.payments[payment.ID] = *payment
	return nil
}

func (r *paymentRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	p, ok := d.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *paymentRepository) Update(_ context.Context, payment *model.Payment) error {
	d, unlock := r.st.acquire()
	defer unlock()

	if _, ok := d.payments[payment.ID]; !ok {
		return model.ErrPaymentNotFound
	}
	d.payments[payment.ID] = *payment
	return nil
}

type instrumentRepository struct{ st *state }

func (r *instrumentRepository) Create(_ context.Context, in *model.PaymentInstrument) error {
	d, unlock := r.st.acquire()
	defer unlock()

	d.instruments[in.ID] = *in
	return nil
}

func (r *instrumentRepository) GetByID(_ context.Context, id uuid.UUID) (*model.PaymentInstrument, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	in, ok := d.instruments[id]
	if !ok {
		return nil, nil
	}
	return &in, nil
}

func (r *instrumentRepository) ListByUser(_ context.Context, userID string) ([]model.PaymentInstrument, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	out := []model.PaymentInstrument{}
	for _, in := range d.instruments {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *instrumentRepository) Update(_ context.Context, in *model.PaymentInstrument) error {
	d, unlock := r.st.acquire()
	defer unlock()

	if _, ok := d.instruments[in.ID]; !ok {
		return model.ErrInstrumentNotFound
	}
	d.instruments[in.ID] = *in
	return nil
}

type refundRepository struct{ st *state }

func (r *refundRepository) Create(_ context.Context, rf *model.Refund) error {
	d, unlock := r.st.acquire()
	defer unlock()

	d.refunds[rf.ID] = *rf
	return nil
}

func (r *refundRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Refund, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	rf, ok := d.refunds[id]
	if !ok {
		return nil, nil
	}
	return &rf, nil
}

func (r *refundRepository) filter(keep func(model.Refund) bool) []model.Refund {
	d, unlock := r.st.acquire()
	defer unlock()

	out := []model.Refund{}
	for _, rf := range d.refunds {
		if keep(rf) {
			out = append(out, rf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *refundRepository) ListByPayment(_ context.Context, paymentID uuid.UUID) ([]model.Refund, error) {
	return r.filter(func(rf model.Refund) bool { return rf.PaymentID == paymentID }), nil
}

func (r *refundRepository) ListByStatus(_ context.Context, status model.RefundStatus, limit int) ([]model.Refund, error) {
	return page(r.filter(func(rf model.Refund) bool { return rf.Status == status }), limit, 0), nil
}

func (r *refundRepository) Update(_ context.Context, rf *model.Refund) error {
	d, unlock := r.st.acquire()
	defer unlock()

	if _, ok := d.refunds[rf.ID]; !ok {
		return fmt.Errorf("refund %s not found", rf.ID)
	}
	d.refunds[rf.ID] = *rf
	return nil
}

type loyaltyRepository struct{ st *state }

func (r *loyaltyRepository) GetAccount(_ context.Context, userID string) (*model.LoyaltyAccount, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	a, ok := d.accounts[userID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *loyaltyRepository) SaveAccount(_ context.Context, a *model.LoyaltyAccount) error {
	d, unlock := r.st.acquire()
	defer unlock()

	d.accounts[a.UserID] = *a
	return nil
}

func (r *loyaltyRepository) AddTransaction(_ context.Context, t *model.PointsTransaction) error {
	d, unlock := r.st.acquire()
	defer unlock()

	d.points = append(d.points, *t)
	return nil
}

func (r *loyaltyRepository) ListTransactions(_ context.Context, userID string, limit, offset int) ([]model.PointsTransaction, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	out := []model.PointsTransaction{}
	for _, t := range d.points {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (r *loyaltyRepository) HasOrderTransaction(_ context.Context, userID string, orderID uuid.UUID, typ model.PointsType) (bool, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	for _, t := range d.points {
		if t.UserID == userID && t.Type == typ && t.OrderID != nil && *t.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *loyaltyRepository) ListExpiring(_ context.Context, now time.Time, limit int) ([]model.PointsTransaction, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	out := []model.PointsTransaction{}
	for _, t := range d.points {
		if t.ExpiredAt != nil || t.ExpiresAt == nil || t.ExpiresAt.After(now) {
			continue
		}
		if t.Type == model.PointsEarned || t.Type == model.PointsBonus {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return page(out, limit, 0), nil
}

func (r *loyaltyRepository) MarkExpired(_ context.Context, id uuid.UUID, at time.Time) error {
	d, unlock := r.st.acquire()
	defer unlock()

	points := append([]model.PointsTransaction(nil), d.points...)
	for i := range points {
		if points[i].ID == id {
			ts := at
			points[i].ExpiredAt = &ts
		}
	}
	d.points = points
	return nil
}

type checkoutOptionRepository struct{ st *state }

func (r *checkoutOptionRepository) GetPaymentMethod(_ context.Context, id string) (*model.PaymentMethod, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	m, ok := d.paymentMethods[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *checkoutOptionRepository) GetShippingMethod(_ context.Context, id string) (*model.ShippingMethod, error) {
	d, unlock := r.st.acquire()
	defer unlock()

	m, ok := d.shippingMethods[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
