package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntentTTL is how long a payment intent accepts confirmation.
const IntentTTL = 30 * time.Minute

// MaxInstallments bounds credit card installment plans.
const MaxInstallments = 12

// InstrumentType is the kind of stored payment instrument.
type InstrumentType string

const (
	InstrumentCreditCard InstrumentType = "credit_card"
	InstrumentDebitCard  InstrumentType = "debit_card"
	InstrumentPix        InstrumentType = "pix"
	InstrumentBoleto     InstrumentType = "boleto"
	InstrumentWallet     InstrumentType = "wallet"
)

// SettlementKind groups instrument types by how they settle.
type SettlementKind string

const (
	SettlementInstant  SettlementKind = "instant"
	SettlementDeferred SettlementKind = "deferred"
	SettlementCard     SettlementKind = "card"
)

// Valid reports whether t is a known instrument type.
func (t InstrumentType) Valid() bool {
	switch t {
	case InstrumentCreditCard, InstrumentDebitCard, InstrumentPix, InstrumentBoleto, InstrumentWallet:
		return true
	}
	return false
}

// Kind maps the instrument type to its settlement behaviour.
func (t InstrumentType) Kind() SettlementKind {
	switch t {
	case InstrumentPix:
		return SettlementInstant
	case InstrumentBoleto:
		return SettlementDeferred
	default:
		return SettlementCard
	}
}

// IntentStatus is the status of a payment intent.
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentProcessing            IntentStatus = "processing"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCancelled             IntentStatus = "cancelled"
)

// Confirmable reports whether an intent in this status accepts a confirmation.
func (s IntentStatus) Confirmable() bool {
	return s == IntentRequiresPaymentMethod || s == IntentRequiresConfirmation
}

// Terminal reports whether the intent can no longer change.
func (s IntentStatus) Terminal() bool {
	return s == IntentSucceeded || s == IntentCancelled
}

// PaymentIntent is a short-lived authorisation to attempt one payment.
type PaymentIntent struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	UserID       string           `json:"userId" db:"user_id"`
	OrderID      *uuid.UUID       `json:"orderId,omitempty" db:"order_id"`
	Amount       decimal.Decimal  `json:"amount" db:"amount"`
	Currency     string           `json:"currency" db:"currency"`
	AllowedTypes []InstrumentType `json:"allowedTypes" db:"allowed_types"`
	ClientSecret string           `json:"clientSecret" db:"client_secret"`
	Status       IntentStatus     `json:"status" db:"status"`
	PaymentID    *uuid.UUID       `json:"paymentId,omitempty" db:"payment_id"`
	ExpiresAt    time.Time        `json:"expiresAt" db:"expires_at"`
	CreatedAt    time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time        `json:"updatedAt" db:"updated_at"`
}

// Expired reports whether the intent is past its deadline at now.
func (i *PaymentIntent) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Allows reports whether the intent accepts instruments of type t.
// An empty allow list accepts every type.
func (i *PaymentIntent) Allows(t InstrumentType) bool {
	if len(i.AllowedTypes) == 0 {
		return true
	}
	for _, allowed := range i.AllowedTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// PaymentInstrument is a stored payment method owned by one user.
type PaymentInstrument struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    string         `json:"userId" db:"user_id"`
	Type      InstrumentType `json:"type" db:"type"`
	Label     string         `json:"label" db:"label"`
	Brand     string         `json:"brand,omitempty" db:"brand"`
	Last4     string         `json:"last4,omitempty" db:"last4"`
	Active    bool           `json:"active" db:"active"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// PaymentState is the status of a payment record.
type PaymentState string

const (
	PaymentPending    PaymentState = "pending"
	PaymentProcessing PaymentState = "processing"
	PaymentCompleted  PaymentState = "completed"
	PaymentFailed     PaymentState = "failed"
	PaymentCancelled  PaymentState = "cancelled"
	PaymentRefunded   PaymentState = "refunded"
)

// PixDetails is the instant-transfer artifact of a payment.
type PixDetails struct {
	Code      string    `json:"code"`
	QRCode    string    `json:"qrCode"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// BoletoDetails is the bank-slip artifact of a payment.
type BoletoDetails struct {
	URL       string    `json:"url"`
	Barcode   string    `json:"barcode"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Payment is the result of confirming an intent against an instrument.
type Payment struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	UserID            string          `json:"userId" db:"user_id"`
	OrderID           *uuid.UUID      `json:"orderId,omitempty" db:"order_id"`
	IntentID          uuid.UUID       `json:"intentId" db:"intent_id"`
	InstrumentID      uuid.UUID       `json:"instrumentId" db:"instrument_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Currency          string          `json:"currency" db:"currency"`
	Status            PaymentState    `json:"status" db:"status"`
	InstrumentType    InstrumentType  `json:"instrumentType" db:"instrument_type"`
	ProcessingFee     decimal.Decimal `json:"processingFee" db:"processing_fee"`
	NetAmount         decimal.Decimal `json:"netAmount" db:"net_amount"`
	Installments      int             `json:"installments" db:"installments"`
	InstallmentAmount decimal.Decimal `json:"installmentAmount" db:"installment_amount"`
	Pix               *PixDetails     `json:"pix,omitempty" db:"pix"`
	Boleto            *BoletoDetails  `json:"boleto,omitempty" db:"boleto"`
	AuthorizationCode string          `json:"authorizationCode,omitempty" db:"authorization_code"`
	FailureReason     string          `json:"failureReason,omitempty" db:"failure_reason"`
	RefundedAmount    decimal.Decimal `json:"refundedAmount" db:"refunded_amount"`
	RefundReason      string          `json:"refundReason,omitempty" db:"refund_reason"`
	RefundedAt        *time.Time      `json:"refundedAt,omitempty" db:"refunded_at"`
	PaidAt            *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt" db:"updated_at"`
}

// Refundable returns the amount not yet refunded.
func (p *Payment) Refundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

// CreateIntentRequest is the payload of POST /payments/intents.
type CreateIntentRequest struct {
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Currency     string           `json:"currency,omitempty"`
	AllowedTypes []InstrumentType `json:"allowedTypes,omitempty"`
	OrderID      *uuid.UUID       `json:"orderId,omitempty"`
}

// ConfirmIntentRequest is the payload of POST /payments/intents/{id}/confirm.
type ConfirmIntentRequest struct {
	InstrumentID uuid.UUID  `json:"instrumentId"`
	OrderID      *uuid.UUID `json:"orderId,omitempty"`
	Installments int        `json:"installments,omitempty"`
}

// SettlementRequest is an out-of-band settlement outcome for a processing payment.
type SettlementRequest struct {
	PaymentID uuid.UUID `json:"paymentId"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
}

// AddInstrumentRequest registers a new payment instrument.
type AddInstrumentRequest struct {
	Type  InstrumentType `json:"type"`
	Label string         `json:"label"`
	Brand string         `json:"brand,omitempty"`
	Last4 string         `json:"last4,omitempty"`
}
