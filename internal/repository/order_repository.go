package repository

import (
	"context"
	"errors"
	"fmt"

	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const orderColumns = `id, number, user_id, subtotal, shipping_cost, tax, discount, total, currency,
	status, payment_status, shipping_status, shipping_address, billing_address, payment_method,
	shipping_method, coupon_code, tracking_code, estimated_delivery, notes, payment_id,
	cancellation_reason, cancelled_at, refunded_amount, refunded_at, confirmed_at, processing_at,
	shipped_at, delivered_at, created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	db     querier
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db querier, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		db:     db,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts an order and its items.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)`

	_, err := r.db.Exec(ctx, query,
		order.ID, order.Number, order.UserID, order.Subtotal, order.ShippingCost, order.Tax,
		order.Discount, order.Total, order.Currency, order.Status, order.PaymentStatus,
		order.ShippingStatus, order.ShippingAddress, order.BillingAddress, order.PaymentMethod,
		order.ShippingMethod, order.CouponCode, order.TrackingCode, order.EstimatedDelivery,
		order.Notes, order.PaymentID, order.CancellationReason, order.CancelledAt,
		order.RefundedAmount, order.RefundedAt, order.ConfirmedAt, order.ProcessingAt,
		order.ShippedAt, order.DeliveredAt, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := r.createItems(ctx, order); err != nil {
		return err
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Int("item_count", len(order.Items)).
		Msg("order created successfully")

	return nil
}

// createItems inserts all order items with a single batch.
func (r *orderRepository) createItems(ctx context.Context, order *model.Order) error {
	if len(order.Items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, position, product_id, variant_id, name, category,
			quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	batch := &pgx.Batch{}
	for i, item := range order.Items {
		batch.Queue(query, item.ID, order.ID, i, item.ProductID, item.VariantID, item.Name,
			item.Category, item.Quantity, item.UnitPrice, item.TotalPrice)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin order items insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := tx.SendBatch(ctx, batch)
	for i := range order.Items {
		if _, err := results.Exec(); err != nil {
			results.Close()
			r.logger.Error().
				Err(err).
				Str("order_id", order.ID.String()).
				Int("item_index", i).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close order items batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order items: %w", err)
	}

	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.Subtotal, &o.ShippingCost, &o.Tax, &o.Discount, &o.Total,
		&o.Currency, &o.Status, &o.PaymentStatus, &o.ShippingStatus, &o.ShippingAddress,
		&o.BillingAddress, &o.PaymentMethod, &o.ShippingMethod, &o.CouponCode, &o.TrackingCode,
		&o.EstimatedDelivery, &o.Notes, &o.PaymentID, &o.CancellationReason, &o.CancelledAt,
		&o.RefundedAmount, &o.RefundedAt, &o.ConfirmedAt, &o.ProcessingAt, &o.ShippedAt,
		&o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := r.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) getItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, variant_id, name, category, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := []model.OrderItem{}
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID, &item.Name,
			&item.Category, &item.Quantity, &item.UnitPrice, &item.TotalPrice)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// ListByUser retrieves a user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	for i := range orders {
		items, err := r.getItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// Update persists the mutable fields of an order.
func (r *orderRepository) Update(ctx context.Context, order *model.Order) error {
	query := `
		UPDATE orders SET
			subtotal = $2, shipping_cost = $3, tax = $4, discount = $5, total = $6,
			status = $7, payment_status = $8, shipping_status = $9, payment_id = $10,
			cancellation_reason = $11, cancelled_at = $12, refunded_amount = $13, refunded_at = $14,
			confirmed_at = $15, processing_at = $16, shipped_at = $17, delivered_at = $18,
			updated_at = $19
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		order.ID, order.Subtotal, order.ShippingCost, order.Tax, order.Discount, order.Total,
		order.Status, order.PaymentStatus, order.ShippingStatus, order.PaymentID,
		order.CancellationReason, order.CancelledAt, order.RefundedAmount, order.RefundedAt,
		order.ConfirmedAt, order.ProcessingAt, order.ShippedAt, order.DeliveredAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	return nil
}
