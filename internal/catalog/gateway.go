// Package catalog is the gateway to product prices and stock levels.
package catalog

import (
	"context"
	"errors"
	"time"

	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Gateway resolves products and moves stock. Infrastructure failures and an
// open circuit surface as model.ErrCatalogUnavailable; business failures
// (unknown product, not enough stock) pass through unchanged.
type Gateway interface {
	// GetProduct returns the product or model.ErrProductNotFound.
	GetProduct(ctx context.Context, id string) (*model.Product, error)

	// ListProducts returns active products.
	ListProducts(ctx context.Context, limit, offset int) ([]model.Product, error)

	// AdjustStock adds delta to a product's stock.
	AdjustStock(ctx context.Context, id string, delta int) error

	// Reserve decrements stock for every line or for none of them.
	Reserve(ctx context.Context, lines []model.StockLine) error

	// Release puts reserved units back.
	Release(ctx context.Context, lines []model.StockLine) error

	// Within returns a gateway over products, typically bound to a
	// transaction, sharing this gateway's circuit breaker.
	Within(products repository.ProductRepository) Gateway
}

// Settings configures the circuit breaker.
type Settings struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a trial request is let through.
	OpenTimeout time.Duration
}

type gateway struct {
	products repository.ProductRepository
	breaker  *gobreaker.CircuitBreaker[any]
	logger   zerolog.Logger
}

// NewGateway creates a catalog gateway over a product repository.
func NewGateway(products repository.ProductRepository, settings Settings, logger zerolog.Logger) Gateway {
	logger = logger.With().Str("component", "catalog-gateway").Logger()
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			_, business := model.AsDomainError(err)
			return err == nil || business
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &gateway{products: products, breaker: breaker, logger: logger}
}

func (g *gateway) Within(products repository.ProductRepository) Gateway {
	return &gateway{products: products, breaker: g.breaker, logger: g.logger}
}

// call runs fn through the breaker and maps infrastructure failures.
func (g *gateway) call(op string, fn func() (any, error)) (any, error) {
	v, err := g.breaker.Execute(fn)
	if err == nil {
		return v, nil
	}
	if de, ok := model.AsDomainError(err); ok && de.Kind != model.KindDownstream {
		return nil, err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.Warn().Str("op", op).Msg("catalog circuit open")
	} else {
		g.logger.Error().Err(err).Str("op", op).Msg("catalog call failed")
	}
	return nil, model.ErrCatalogUnavailable
}

func (g *gateway) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	v, err := g.call("get_product", func() (any, error) {
		p, err := g.products.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, model.ErrProductNotFound.WithMessage("product %s not found", id)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Product), nil
}

func (g *gateway) ListProducts(ctx context.Context, limit, offset int) ([]model.Product, error) {
	v, err := g.call("list_products", func() (any, error) {
		return g.products.GetAll(ctx, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Product), nil
}

func (g *gateway) AdjustStock(ctx context.Context, id string, delta int) error {
	_, err := g.call("adjust_stock", func() (any, error) {
		return nil, g.products.AdjustStock(ctx, id, delta)
	})
	return err
}

func (g *gateway) Reserve(ctx context.Context, lines []model.StockLine) error {
	_, err := g.call("reserve", func() (any, error) {
		return nil, g.products.Reserve(ctx, lines)
	})
	return err
}

func (g *gateway) Release(ctx context.Context, lines []model.StockLine) error {
	_, err := g.call("release", func() (any, error) {
		return nil, g.products.Release(ctx, lines)
	})
	return err
}
