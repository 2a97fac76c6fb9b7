package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundStatus is the status of a refund.
type RefundStatus string

const (
	RefundPending    RefundStatus = "pending"
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
)

// Outstanding reports whether the refund still counts against the refundable balance.
func (s RefundStatus) Outstanding() bool {
	return s == RefundPending || s == RefundProcessing || s == RefundCompleted
}

// Refund is a full or partial return of a completed payment.
type Refund struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	PaymentID     uuid.UUID       `json:"paymentId" db:"payment_id"`
	UserID        string          `json:"userId" db:"user_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Reason        string          `json:"reason" db:"reason"`
	Status        RefundStatus    `json:"status" db:"status"`
	FailureReason string          `json:"failureReason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty" db:"completed_at"`
}

// RefundRequest is the payload of POST /payments/{id}/refund.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason"`
}

// ReservedRefunds sums the refunds that count against a payment's balance.
func ReservedRefunds(refunds []Refund) decimal.Decimal {
	total := decimal.Zero
	for _, r := range refunds {
		if r.Status.Outstanding() {
			total = total.Add(r.Amount)
		}
	}
	return total
}
