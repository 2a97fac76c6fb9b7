package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view of a pet-shop item as the checkout core sees it.
type Product struct {
	ID        string           `json:"id" db:"id"`
	Name      string           `json:"name" db:"name"`
	Category  string           `json:"category" db:"category"`
	Price     decimal.Decimal  `json:"price" db:"price"`
	SalePrice *decimal.Decimal `json:"salePrice,omitempty" db:"sale_price"`
	Stock     int              `json:"stock" db:"stock"`
	Active    bool             `json:"active" db:"active"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time        `json:"updatedAt" db:"updated_at"`
}

// EffectivePrice is the sale price when one is set below the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.IsPositive() && p.SalePrice.LessThan(p.Price) {
		return *p.SalePrice
	}
	return p.Price
}

// StockLine is one product quantity to reserve or release.
type StockLine struct {
	ProductID string
	Quantity  int
}

// StockAdjustmentRequest is the payload of POST /products/{id}/stock.
// Delta is added to the current stock and may be negative.
type StockAdjustmentRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}
