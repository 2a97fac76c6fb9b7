// Package payment holds the acquirer capability and the instrument-specific
// payment artifacts.
package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuthorizationRequest asks the acquirer to authorise a card charge.
type AuthorizationRequest struct {
	PaymentID      uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	InstrumentType model.InstrumentType
	Installments   int
}

// Authorization is the acquirer's binary answer.
type Authorization struct {
	Approved bool
	Code     string
	Reason   string
}

// Gateway authorises card payments synchronously. An error means the
// acquirer could not be reached; a decline is an Authorization with Approved false.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizationRequest) (Authorization, error)
}

// SimulatedGateway approves a configurable share of authorisations.
type SimulatedGateway struct {
	mu           sync.Mutex
	rnd          *rand.Rand
	approvalRate float64
}

// NewSimulatedGateway creates a simulated acquirer. approvalRate is clamped to [0, 1].
func NewSimulatedGateway(approvalRate float64, seed int64) *SimulatedGateway {
	approvalRate = min(max(approvalRate, 0), 1)
	return &SimulatedGateway{rnd: rand.New(rand.NewSource(seed)), approvalRate: approvalRate}
}

func (g *SimulatedGateway) Authorize(ctx context.Context, req AuthorizationRequest) (Authorization, error) {
	if err := ctx.Err(); err != nil {
		return Authorization{}, err
	}

	g.mu.Lock()
	roll := g.rnd.Float64()
	code := g.rnd.Intn(1_000_000)
	g.mu.Unlock()

	if roll >= g.approvalRate {
		return Authorization{Reason: "Card declined by issuer"}, nil
	}
	return Authorization{
		Approved: true,
		Code:     fmt.Sprintf("AUTH%s%06d", strings.ToUpper(req.PaymentID.String()[:4]), code),
	}, nil
}

var _ Gateway = (*SimulatedGateway)(nil)
