package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one product/variant line in a cart.
type CartItem struct {
	ID         uuid.UUID       `json:"id"`
	ProductID  string          `json:"productId"`
	VariantID  *string         `json:"variantId,omitempty"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Note       string          `json:"note,omitempty"`
	AddedAt    time.Time       `json:"addedAt"`
}

// SameLine reports whether the item refers to the given product and variant.
func (i *CartItem) SameLine(productID string, variantID *string) bool {
	if i.ProductID != productID {
		return false
	}
	if i.VariantID == nil || variantID == nil {
		return i.VariantID == nil && variantID == nil
	}
	return *i.VariantID == *variantID
}

// Cart holds a user's line items. There is at most one cart per user.
type Cart struct {
	UserID     string          `json:"userId"`
	Items      []CartItem      `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"itemCount"`
	CouponCode *string         `json:"couponCode,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// NewCart returns an empty cart for userID.
func NewCart(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:    userID,
		Items:     []CartItem{},
		Subtotal:  decimal.Zero,
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Recalculate derives line totals, subtotal, total and item count from the items alone.
func (c *Cart) Recalculate() {
	subtotal := decimal.Zero
	count := 0
	for i := range c.Items {
		item := &c.Items[i]
		item.TotalPrice = Round2(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		subtotal = subtotal.Add(item.TotalPrice)
		count += item.Quantity
	}
	c.Subtotal = subtotal
	c.Total = subtotal
	c.ItemCount = count
}

// FindItem returns the index of the item with id, or -1.
func (c *Cart) FindItem(id uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// FindLine returns the index of the line for product+variant, or -1.
func (c *Cart) FindLine(productID string, variantID *string) int {
	for i := range c.Items {
		if c.Items[i].SameLine(productID, variantID) {
			return i
		}
	}
	return -1
}

// RemoveAt drops the item at index i, keeping order.
func (c *Cart) RemoveAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// DiscountLines projects the cart items for coupon evaluation.
func (c *Cart) DiscountLines() []DiscountLine {
	lines := make([]DiscountLine, len(c.Items))
	for i, item := range c.Items {
		lines[i] = DiscountLine{
			ProductID: item.ProductID,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return lines
}

// AddItemRequest is the payload of POST /cart/items.
type AddItemRequest struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
	Note      string  `json:"note,omitempty"`
}

// UpdateItemRequest is the payload of PATCH /cart/items/{itemId}.
type UpdateItemRequest struct {
	Quantity int     `json:"quantity"`
	Note     *string `json:"note,omitempty"`
}

// ApplyCouponRequest is the payload of POST /cart/coupon.
type ApplyCouponRequest struct {
	Code string `json:"code"`
}

// CouponPreview is the cart view after a coupon was validated against it.
type CouponPreview struct {
	Cart       *Cart              `json:"cart"`
	Evaluation DiscountEvaluation `json:"evaluation"`
	Total      decimal.Decimal    `json:"totalAfterDiscount"`
}
