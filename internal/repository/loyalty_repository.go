package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const pointsColumns = `id, user_id, type, points, order_id, description, expires_at, expired_at, created_at`

// loyaltyRepository implements the LoyaltyRepository interface using PostgreSQL.
type loyaltyRepository struct {
	db     querier
	logger zerolog.Logger
}

// NewLoyaltyRepository creates a new PostgreSQL-backed loyalty repository.
func NewLoyaltyRepository(db querier, logger zerolog.Logger) LoyaltyRepository {
	return &loyaltyRepository{
		db:     db,
		logger: logger.With().Str("repository", "loyalty").Logger(),
	}
}

func (r *loyaltyRepository) GetAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error) {
	query := `
		SELECT user_id, available_points, tier, lifetime_spend, order_count, updated_at
		FROM loyalty_accounts
		WHERE user_id = $1`

	var a model.LoyaltyAccount
	err := r.db.QueryRow(ctx, query, userID).Scan(&a.UserID, &a.AvailablePoints, &a.Tier, &a.LifetimeSpend, &a.OrderCount, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query loyalty account")
		return nil, fmt.Errorf("failed to query loyalty account: %w", err)
	}

	return &a, nil
}

func (r *loyaltyRepository) SaveAccount(ctx context.Context, a *model.LoyaltyAccount) error {
	query := `
		INSERT INTO loyalty_accounts (user_id, available_points, tier, lifetime_spend, order_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			available_points = EXCLUDED.available_points,
			tier = EXCLUDED.tier,
			lifetime_spend = EXCLUDED.lifetime_spend,
			order_count = EXCLUDED.order_count,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query, a.UserID, a.AvailablePoints, a.Tier, a.LifetimeSpend, a.OrderCount, a.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", a.UserID).Msg("failed to save loyalty account")
		return fmt.Errorf("failed to save loyalty account: %w", err)
	}

	return nil
}

func (r *loyaltyRepository) AddTransaction(ctx context.Context, t *model.PointsTransaction) error {
	query := `INSERT INTO points_transactions (` + pointsColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query, t.ID, t.UserID, t.Type, t.Points, t.OrderID, t.Description, t.ExpiresAt, t.ExpiredAt, t.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", t.UserID).Msg("failed to add points transaction")
		return fmt.Errorf("failed to add points transaction: %w", err)
	}

	return nil
}

func (r *loyaltyRepository) listTransactions(ctx context.Context, query string, args ...any) ([]model.PointsTransaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query points transactions")
		return nil, fmt.Errorf("failed to query points transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.PointsTransaction{}
	for rows.Next() {
		var t model.PointsTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Points, &t.OrderID, &t.Description, &t.ExpiresAt, &t.ExpiredAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan points transaction: %w", err)
		}
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating points transactions: %w", err)
	}

	return txs, nil
}

func (r *loyaltyRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.PointsTransaction, error) {
	return r.listTransactions(ctx,
		`SELECT `+pointsColumns+` FROM points_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
}

func (r *loyaltyRepository) HasOrderTransaction(ctx context.Context, userID string, orderID uuid.UUID, typ model.PointsType) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM points_transactions WHERE user_id = $1 AND order_id = $2 AND type = $3)`,
		userID, orderID, typ).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check points transaction: %w", err)
	}
	return exists, nil
}

func (r *loyaltyRepository) ListExpiring(ctx context.Context, now time.Time, limit int) ([]model.PointsTransaction, error) {
	return r.listTransactions(ctx, `
		SELECT `+pointsColumns+`
		FROM points_transactions
		WHERE expired_at IS NULL AND expires_at IS NOT NULL AND expires_at <= $1
			AND type IN ('earned', 'bonus')
		ORDER BY expires_at
		LIMIT $2`, now, limit)
}

func (r *loyaltyRepository) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE points_transactions SET expired_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark points transaction expired: %w", err)
	}
	return nil
}
