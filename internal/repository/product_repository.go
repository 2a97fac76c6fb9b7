package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"petshop/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, category, price, sale_price, stock, active, created_at, updated_at`

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	db     querier
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db querier, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		db:     db,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	var sale decimal.NullDecimal
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &sale, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if sale.Valid {
		p.SalePrice = &sale.Decimal
	}
	return &p, nil
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// GetAll retrieves active products with pagination support.
func (r *productRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE active
		ORDER BY name
		LIMIT $1 OFFSET $2`

	return r.queryProducts(ctx, query, limit, offset)
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return p, nil
}

// GetByIDs retrieves multiple products by their IDs.
func (r *productRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY name`

	return r.queryProducts(ctx, query, ids)
}

// AdjustStock adds delta to a product's stock without letting it go negative.
func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0`

	tag, err := r.db.Exec(ctx, query, id, delta)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", id).Int("delta", delta).Msg("failed to adjust stock")
		return fmt.Errorf("failed to adjust stock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return r.stockFailure(ctx, id, -delta)
	}

	return nil
}

// Reserve decrements stock for every line inside one savepoint, so a failing
// line leaves the earlier ones untouched.
func (r *productRepository) Reserve(ctx context.Context, lines []model.StockLine) (err error) {
	merged := mergeLines(lines)
	if len(merged) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin stock reservation")
		return fmt.Errorf("failed to begin stock reservation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND active AND stock >= $2`

	for _, line := range merged {
		tag, execErr := tx.Exec(ctx, query, line.ProductID, line.Quantity)
		if execErr != nil {
			r.logger.Error().Err(execErr).Str("product_id", line.ProductID).Msg("failed to reserve stock")
			return fmt.Errorf("failed to reserve stock: %w", execErr)
		}
		if tag.RowsAffected() == 0 {
			r.logger.Warn().
				Str("product_id", line.ProductID).
				Int("quantity", line.Quantity).
				Msg("stock reservation rejected")
			return r.stockFailure(ctx, line.ProductID, line.Quantity)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Msg("failed to commit stock reservation")
		return fmt.Errorf("failed to commit stock reservation: %w", err)
	}

	return nil
}

// Release adds the reserved quantities back to stock.
func (r *productRepository) Release(ctx context.Context, lines []model.StockLine) error {
	query := `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`

	for _, line := range mergeLines(lines) {
		tag, err := r.db.Exec(ctx, query, line.ProductID, line.Quantity)
		if err != nil {
			r.logger.Error().Err(err).Str("product_id", line.ProductID).Msg("failed to release stock")
			return fmt.Errorf("failed to release stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrProductNotFound.WithMessage("product %s not found", line.ProductID)
		}
	}

	return nil
}

// stockFailure explains why a conditional stock update matched no row.
func (r *productRepository) stockFailure(ctx context.Context, id string, wanted int) error {
	var stock int
	var active bool
	err := r.db.QueryRow(ctx, `SELECT stock, active FROM products WHERE id = $1`, id).Scan(&stock, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrProductNotFound.WithMessage("product %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to query product stock: %w", err)
	}
	if !active {
		return model.ErrProductUnavailable.WithMessage("product %s is not available", id)
	}
	return model.ErrInsufficientStock.WithMessage("product %s has %d units, %d requested", id, stock, wanted)
}

// mergeLines sums quantities per product and orders them by product ID so
// concurrent reservations lock rows in the same order.
func mergeLines(lines []model.StockLine) []model.StockLine {
	totals := make(map[string]int, len(lines))
	for _, l := range lines {
		totals[l.ProductID] += l.Quantity
	}
	merged := make([]model.StockLine, 0, len(totals))
	for id, qty := range totals {
		if qty > 0 {
			merged = append(merged, model.StockLine{ProductID: id, Quantity: qty})
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged
}
