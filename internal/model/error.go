package model

import (
	"errors"
	"fmt"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ErrorKind classifies a domain error for transport mapping.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindForbidden    ErrorKind = "forbidden"
	KindUnauthorised ErrorKind = "unauthorised"
	KindExpired      ErrorKind = "expired"
	KindDownstream   ErrorKind = "downstream"
)

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON           = "INVALID_JSON"
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeInvalidQuantity       = "INVALID_QUANTITY"
	ErrCodeUnauthorised          = "UNAUTHORIZED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeInternalError         = "INTERNAL_ERROR"
	ErrCodeProductNotFound       = "PRODUCT_NOT_FOUND"
	ErrCodeProductUnavailable    = "PRODUCT_UNAVAILABLE"
	ErrCodeInsufficientStock     = "INSUFFICIENT_STOCK"
	ErrCodeCatalogUnavailable    = "CATALOG_UNAVAILABLE"
	ErrCodeCartItemNotFound      = "CART_ITEM_NOT_FOUND"
	ErrCodeCartEmpty             = "CART_EMPTY"
	ErrCodeCouponInvalid         = "COUPON_INVALID"
	ErrCodeCouponNotFound        = "COUPON_NOT_FOUND"
	ErrCodeCouponInactive        = "COUPON_INACTIVE"
	ErrCodeCouponNotYetValid     = "COUPON_NOT_YET_VALID"
	ErrCodeCouponExpired         = "COUPON_EXPIRED"
	ErrCodeCouponExhausted       = "COUPON_USAGE_EXHAUSTED"
	ErrCodeCouponMinOrder        = "COUPON_MIN_ORDER_NOT_MET"
	ErrCodeCouponUserLimit       = "COUPON_USER_LIMIT_REACHED"
	ErrCodeCouponNotApplicable   = "COUPON_NOT_APPLICABLE"
	ErrCodeOrderNotFound         = "ORDER_NOT_FOUND"
	ErrCodeCannotCancelOrder     = "CANNOT_CANCEL_ORDER"
	ErrCodeInvalidTransition     = "INVALID_STATUS_TRANSITION"
	ErrCodeInvalidPaymentMethod  = "INVALID_PAYMENT_METHOD"
	ErrCodeInvalidShippingMethod = "INVALID_SHIPPING_METHOD"
	ErrCodeIntentNotFound        = "PAYMENT_INTENT_NOT_FOUND"
	ErrCodeIntentExpired         = "PAYMENT_INTENT_EXPIRED"
	ErrCodeInvalidIntentStatus   = "INVALID_INTENT_STATUS"
	ErrCodeInstrumentNotFound    = "INSTRUMENT_NOT_FOUND"
	ErrCodePaymentNotFound       = "PAYMENT_NOT_FOUND"
	ErrCodeInvalidPaymentStatus  = "INVALID_PAYMENT_STATUS"
	ErrCodeInvalidRefundAmount   = "INVALID_REFUND_AMOUNT"
	ErrCodeInsufficientPoints    = "INSUFFICIENT_POINTS"
	ErrCodeIdempotencyConflict   = "IDEMPOTENCY_CONFLICT"
)

// DomainError is a business error carrying a stable machine-readable code.
type DomainError struct {
	Code    string
	Message string
	Kind    ErrorKind
	cause   error
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code, so sentinels survive re-wrapping with detail.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Unwrap exposes the error family, e.g. ErrCouponInvalid for every coupon rejection.
func (e *DomainError) Unwrap() error {
	return e.cause
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, kind ErrorKind) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

// WithMessage returns a copy of the error with a more specific message.
func (e *DomainError) WithMessage(format string, args ...any) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: fmt.Sprintf(format, args...),
		Kind:    e.Kind,
		cause:   e.cause,
	}
}

// NewValidationError reports malformed input rejected before any state change.
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeValidation, fmt.Sprintf(format, args...), KindValidation)
}

func couponInvalid(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindConflict, cause: ErrCouponInvalid}
}

// Common domain errors
var (
	ErrInvalidQuantity    = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero", KindValidation)
	ErrUnauthorised       = NewDomainError(ErrCodeUnauthorised, "Authentication required", KindUnauthorised)
	ErrForbidden          = NewDomainError(ErrCodeForbidden, "Not allowed to act on this resource", KindForbidden)
	ErrProductNotFound    = NewDomainError(ErrCodeProductNotFound, "Product not found", KindNotFound)
	ErrProductUnavailable = NewDomainError(ErrCodeProductUnavailable, "Product is not available for sale", KindConflict)
	ErrInsufficientStock  = NewDomainError(ErrCodeInsufficientStock, "Not enough stock for the requested quantity", KindConflict)
	ErrCatalogUnavailable = NewDomainError(ErrCodeCatalogUnavailable, "Catalog is temporarily unavailable, retry later", KindDownstream)
	ErrCartItemNotFound   = NewDomainError(ErrCodeCartItemNotFound, "Cart item not found", KindNotFound)
	ErrCartEmpty          = NewDomainError(ErrCodeCartEmpty, "Cart is empty", KindValidation)

	ErrCouponInvalid       = NewDomainError(ErrCodeCouponInvalid, "Coupon is not valid for this order", KindConflict)
	ErrCouponNotFound      = couponInvalid(ErrCodeCouponNotFound, "Coupon does not exist")
	ErrCouponInactive      = couponInvalid(ErrCodeCouponInactive, "Coupon is not active")
	ErrCouponNotYetValid   = couponInvalid(ErrCodeCouponNotYetValid, "Coupon is not valid yet")
	ErrCouponExpired       = couponInvalid(ErrCodeCouponExpired, "Coupon has expired")
	ErrCouponExhausted     = couponInvalid(ErrCodeCouponExhausted, "Coupon usage limit has been reached")
	ErrCouponMinOrder      = couponInvalid(ErrCodeCouponMinOrder, "Order subtotal is below the coupon minimum")
	ErrCouponUserLimit     = couponInvalid(ErrCodeCouponUserLimit, "Coupon usage limit for this customer has been reached")
	ErrCouponNotApplicable = couponInvalid(ErrCodeCouponNotApplicable, "Coupon does not apply to any item in the order")

	ErrOrderNotFound         = NewDomainError(ErrCodeOrderNotFound, "Order not found", KindNotFound)
	ErrCannotCancelOrder     = NewDomainError(ErrCodeCannotCancelOrder, "Order can only be cancelled while pending or confirmed", KindConflict)
	ErrInvalidTransition     = NewDomainError(ErrCodeInvalidTransition, "Order status transition is not allowed", KindConflict)
	ErrInvalidPaymentMethod  = NewDomainError(ErrCodeInvalidPaymentMethod, "Payment method is unknown or inactive", KindValidation)
	ErrInvalidShippingMethod = NewDomainError(ErrCodeInvalidShippingMethod, "Shipping method is unknown or inactive", KindValidation)

	ErrIntentNotFound       = NewDomainError(ErrCodeIntentNotFound, "Payment intent not found", KindNotFound)
	ErrIntentExpired        = NewDomainError(ErrCodeIntentExpired, "Payment intent has expired", KindExpired)
	ErrInvalidIntentStatus  = NewDomainError(ErrCodeInvalidIntentStatus, "Payment intent cannot be confirmed in its current status", KindConflict)
	ErrInstrumentNotFound   = NewDomainError(ErrCodeInstrumentNotFound, "Payment instrument not found", KindNotFound)
	ErrPaymentNotFound      = NewDomainError(ErrCodePaymentNotFound, "Payment not found", KindNotFound)
	ErrInvalidPaymentStatus = NewDomainError(ErrCodeInvalidPaymentStatus, "Payment is not in a valid status for this operation", KindConflict)
	ErrInvalidRefundAmount  = NewDomainError(ErrCodeInvalidRefundAmount, "Refund amount exceeds the refundable balance", KindConflict)

	ErrInsufficientPoints  = NewDomainError(ErrCodeInsufficientPoints, "Not enough loyalty points", KindConflict)
	ErrIdempotencyConflict = NewDomainError(ErrCodeIdempotencyConflict, "A request with this idempotency key is still in progress", KindConflict)
)

// AsDomainError extracts the outermost DomainError from err.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
