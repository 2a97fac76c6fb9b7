package service

import (
	"context"
	"fmt"

	"petshop/internal/catalog"
	"petshop/internal/identity"
	"petshop/internal/model"

	"github.com/rs/zerolog"
)

// productService implements ProductService.
type productService struct {
	catalog catalog.Gateway
	logger  zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(gateway catalog.Gateway, logger zerolog.Logger) ProductService {
	return &productService{
		catalog: gateway,
		logger:  logger.With().Str("service", "product").Logger(),
	}
}

// GetAll retrieves active products with pagination.
func (s *productService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	limit, offset = pageBounds(limit, offset)

	products, err := s.catalog.ListProducts(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to get all products")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	s.logger.Debug().
		Int("count", len(products)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved products")

	return products, nil
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		s.logger.Warn().Msg("product ID is empty")
		return nil, model.ErrProductNotFound
	}

	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		s.logger.Debug().Err(err).Str("product_id", id).Msg("failed to get product by ID")
		return nil, err
	}
	return product, nil
}

// AdjustStock adds req.Delta to the product's stock and returns the product.
func (s *productService) AdjustStock(ctx context.Context, actor identity.Actor, id string, req *model.StockAdjustmentRequest) (*model.Product, error) {
	if !actor.IsAdmin() {
		return nil, model.ErrForbidden
	}
	if id == "" {
		return nil, model.ErrProductNotFound
	}
	if req == nil || req.Delta == 0 {
		return nil, model.NewValidationError("delta must not be zero")
	}

	if err := s.catalog.AdjustStock(ctx, id, req.Delta); err != nil {
		s.logger.Warn().Err(err).Str("product_id", id).Int("delta", req.Delta).Msg("failed to adjust stock")
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("product_id", id).
		Int("delta", req.Delta).
		Int("stock", product.Stock).
		Str("reason", req.Reason).
		Str("admin_id", actor.ID).
		Msg("stock adjusted")
	return product, nil
}
