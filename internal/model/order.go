package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// PaymentStatus is the payment side of an order.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
)

// ShippingStatus is the fulfilment side of an order.
type ShippingStatus string

const (
	ShippingPending   ShippingStatus = "pending"
	ShippingPreparing ShippingStatus = "preparing"
	ShippingShipped   ShippingStatus = "shipped"
	ShippingDelivered ShippingStatus = "delivered"
	ShippingCancelled ShippingStatus = "cancelled"
)

// Address is a postal address snapshot.
type Address struct {
	Recipient  string `json:"recipient"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// PaymentMethod is a checkout payment option (e.g. "Cartão de crédito", "PIX").
type PaymentMethod struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Type   InstrumentType `json:"type"`
	Active bool           `json:"active"`
}

// ShippingMethod is a checkout delivery option.
type ShippingMethod struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Carrier       string          `json:"carrier,omitempty"`
	Cost          decimal.Decimal `json:"cost"`
	EstimatedDays int             `json:"estimatedDays"`
	Active        bool            `json:"active"`
}

// Order is a customer order. Orders are never deleted.
type Order struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	Number             string          `json:"orderNumber" db:"number"`
	UserID             string          `json:"userId" db:"user_id"`
	Items              []OrderItem     `json:"items"`
	Subtotal           decimal.Decimal `json:"subtotal" db:"subtotal"`
	ShippingCost       decimal.Decimal `json:"shippingCost" db:"shipping_cost"`
	Tax                decimal.Decimal `json:"tax" db:"tax"`
	Discount           decimal.Decimal `json:"discount" db:"discount"`
	Total              decimal.Decimal `json:"total" db:"total"`
	Currency           string          `json:"currency" db:"currency"`
	Status             OrderStatus     `json:"status" db:"status"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus" db:"payment_status"`
	ShippingStatus     ShippingStatus  `json:"shippingStatus" db:"shipping_status"`
	ShippingAddress    Address         `json:"shippingAddress" db:"shipping_address"`
	BillingAddress     Address         `json:"billingAddress" db:"billing_address"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod" db:"payment_method"`
	ShippingMethod     ShippingMethod  `json:"shippingMethod" db:"shipping_method"`
	CouponCode         *string         `json:"couponCode,omitempty" db:"coupon_code"`
	TrackingCode       string          `json:"trackingCode" db:"tracking_code"`
	EstimatedDelivery  time.Time       `json:"estimatedDelivery" db:"estimated_delivery"`
	Notes              string          `json:"notes,omitempty" db:"notes"`
	PaymentID          *uuid.UUID      `json:"paymentId,omitempty" db:"payment_id"`
	CancellationReason string          `json:"cancellationReason,omitempty" db:"cancellation_reason"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty" db:"cancelled_at"`
	RefundedAmount     decimal.Decimal `json:"refundedAmount" db:"refunded_amount"`
	RefundedAt         *time.Time      `json:"refundedAt,omitempty" db:"refunded_at"`
	ConfirmedAt        *time.Time      `json:"confirmedAt,omitempty" db:"confirmed_at"`
	ProcessingAt       *time.Time      `json:"processingAt,omitempty" db:"processing_at"`
	ShippedAt          *time.Time      `json:"shippedAt,omitempty" db:"shipped_at"`
	DeliveredAt        *time.Time      `json:"deliveredAt,omitempty" db:"delivered_at"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt" db:"updated_at"`
}

// OrderItem represents a line item in an order. Prices are frozen at creation.
type OrderItem struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	OrderID    uuid.UUID       `json:"-" db:"order_id"`
	ProductID  string          `json:"productId" db:"product_id"`
	VariantID  *string         `json:"variantId,omitempty" db:"variant_id"`
	Name       string          `json:"name" db:"name"`
	Category   string          `json:"category" db:"category"`
	Quantity   int             `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice" db:"unit_price"`
	TotalPrice decimal.Decimal `json:"totalPrice" db:"total_price"`
}

// RecalculateTotal derives Total from its components; it is never trusted from input.
func (o *Order) RecalculateTotal() {
	o.Total = Round2(o.Subtotal.Add(o.ShippingCost).Add(o.Tax).Sub(o.Discount))
}

// StockLines lists the reserved quantities of the order.
func (o *Order) StockLines() []StockLine {
	lines := make([]StockLine, len(o.Items))
	for i, item := range o.Items {
		lines[i] = StockLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}

// OwnedBy reports whether userID owns the order.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}

// OrderItemRequest represents a single item in an order request.
type OrderItemRequest struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
}

// OrderRequest represents the request payload for creating an order.
type OrderRequest struct {
	Items            []OrderItemRequest `json:"items"`
	ShippingAddress  Address            `json:"shippingAddress"`
	BillingAddress   *Address           `json:"billingAddress,omitempty"`
	PaymentMethodID  string             `json:"paymentMethodId"`
	ShippingMethodID string             `json:"shippingMethodId"`
	CouponCode       *string            `json:"couponCode,omitempty"`
	Notes            string             `json:"notes,omitempty"`
}

// CheckoutRequest turns the caller's cart into an order.
type CheckoutRequest struct {
	ShippingAddress  Address  `json:"shippingAddress"`
	BillingAddress   *Address `json:"billingAddress,omitempty"`
	PaymentMethodID  string   `json:"paymentMethodId"`
	ShippingMethodID string   `json:"shippingMethodId"`
	CouponCode       *string  `json:"couponCode,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// CancelOrderRequest carries an optional cancellation reason.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// AdvanceOrderRequest moves an order forward in fulfilment.
type AdvanceOrderRequest struct {
	Status OrderStatus `json:"status"`
}
