package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PointsValidity is how long earned points stay redeemable.
const PointsValidity = 365 * 24 * time.Hour

// LoyaltyTier ranks customers by lifetime spend.
type LoyaltyTier string

const (
	TierBronze   LoyaltyTier = "bronze"
	TierSilver   LoyaltyTier = "silver"
	TierGold     LoyaltyTier = "gold"
	TierPlatinum LoyaltyTier = "platinum"
)

var tierThresholds = []struct {
	tier       LoyaltyTier
	minSpend   decimal.Decimal
	multiplier int64 // percent
}{
	{TierPlatinum, decimal.NewFromInt(15000), 200},
	{TierGold, decimal.NewFromInt(5000), 150},
	{TierSilver, decimal.NewFromInt(1000), 125},
	{TierBronze, decimal.Zero, 100},
}

// TierFor returns the tier reached with the given lifetime spend.
func TierFor(lifetimeSpend decimal.Decimal) LoyaltyTier {
	for _, t := range tierThresholds {
		if lifetimeSpend.GreaterThanOrEqual(t.minSpend) {
			return t.tier
		}
	}
	return TierBronze
}

// PointsFor returns the points earned for amount at tier: one point per whole
// currency unit, scaled by the tier multiplier and rounded down.
func PointsFor(amount decimal.Decimal, tier LoyaltyTier) int64 {
	multiplier := int64(100)
	for _, t := range tierThresholds {
		if t.tier == tier {
			multiplier = t.multiplier
		}
	}
	if amount.IsNegative() {
		return 0
	}
	return amount.Floor().IntPart() * multiplier / 100
}

// PointsType classifies a ledger entry.
type PointsType string

const (
	PointsEarned   PointsType = "earned"
	PointsRedeemed PointsType = "redeemed"
	PointsExpired  PointsType = "expired"
	PointsBonus    PointsType = "bonus"
)

// LoyaltyAccount is a user's points balance.
type LoyaltyAccount struct {
	UserID          string          `json:"userId" db:"user_id"`
	AvailablePoints int64           `json:"availablePoints" db:"available_points"`
	Tier            LoyaltyTier     `json:"tier" db:"tier"`
	LifetimeSpend   decimal.Decimal `json:"lifetimeSpend" db:"lifetime_spend"`
	OrderCount      int             `json:"orderCount" db:"order_count"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// NewLoyaltyAccount returns an empty bronze account.
func NewLoyaltyAccount(userID string, now time.Time) *LoyaltyAccount {
	return &LoyaltyAccount{
		UserID:        userID,
		Tier:          TierBronze,
		LifetimeSpend: decimal.Zero,
		UpdatedAt:     now,
	}
}

// PointsTransaction is one signed ledger entry.
type PointsTransaction struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      string     `json:"userId" db:"user_id"`
	Type        PointsType `json:"type" db:"type"`
	Points      int64      `json:"points" db:"points"`
	OrderID     *uuid.UUID `json:"orderId,omitempty" db:"order_id"`
	Description string     `json:"description" db:"description"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty" db:"expires_at"`
	ExpiredAt   *time.Time `json:"expiredAt,omitempty" db:"expired_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

// RedeemRequest is the payload of POST /loyalty/redeem.
type RedeemRequest struct {
	Points  int64      `json:"points"`
	OrderID *uuid.UUID `json:"orderId,omitempty"`
}

// BonusRequest is the payload of POST /loyalty/bonus.
type BonusRequest struct {
	UserID      string `json:"userId"`
	Points      int64  `json:"points"`
	Description string `json:"description"`
}
