package service

import "petshop/internal/model"

// ValidateAvailability checks that qty units of product can be sold.
// A nil product is reported as not found.
func ValidateAvailability(product *model.Product, qty int) error {
	if qty <= 0 {
		return model.ErrInvalidQuantity
	}
	if product == nil {
		return model.ErrProductNotFound
	}
	if !product.Active {
		return model.ErrProductUnavailable.WithMessage("product %s is not available for sale", product.ID)
	}
	if product.Stock < qty {
		return model.ErrInsufficientStock.WithMessage("only %d units of %s in stock, %d requested", product.Stock, product.ID, qty)
	}
	return nil
}
