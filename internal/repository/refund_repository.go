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

const refundColumns = `id, payment_id, user_id, amount, reason, status, failure_reason, created_at, updated_at, completed_at`

// refundRepository implements the RefundRepository interface using PostgreSQL.
type refundRepository struct {
	db     querier
	logger zerolog.Logger
}

// NewRefundRepository creates a new PostgreSQL-backed refund repository.
func NewRefundRepository(db querier, logger zerolog.Logger) RefundRepository {
	return &refundRepository{
		db:     db,
		logger: logger.With().Str("repository", "refund").Logger(),
	}
}

func scanRefund(row pgx.Row) (*model.Refund, error) {
	var rf model.Refund
	err := row.Scan(&rf.ID, &rf.PaymentID, &rf.UserID, &rf.Amount, &rf.Reason, &rf.Status,
		&rf.FailureReason, &rf.CreatedAt, &rf.UpdatedAt, &rf.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

func (r *refundRepository) Create(ctx context.Context, rf *model.Refund) error {
	query := `INSERT INTO refunds (` + refundColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query, rf.ID, rf.PaymentID, rf.UserID, rf.Amount, rf.Reason, rf.Status,
		rf.FailureReason, rf.CreatedAt, rf.UpdatedAt, rf.CompletedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("refund_id", rf.ID.String()).Msg("failed to create refund")
		return fmt.Errorf("failed to create refund: %w", err)
	}

	return nil
}

func (r *refundRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Refund, error) {
	rf, err := scanRefund(r.db.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("refund_id", id.String()).Msg("failed to query refund")
		return nil, fmt.Errorf("failed to query refund: %w", err)
	}
	return rf, nil
}

func (r *refundRepository) list(ctx context.Context, query string, args ...any) ([]model.Refund, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query refunds")
		return nil, fmt.Errorf("failed to query refunds: %w", err)
	}
	defer rows.Close()

	refunds := []model.Refund{}
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, *rf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating refunds: %w", err)
	}

	return refunds, nil
}

func (r *refundRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]model.Refund, error) {
	return r.list(ctx, `SELECT `+refundColumns+` FROM refunds WHERE payment_id = $1 ORDER BY created_at`, paymentID)
}

func (r *refundRepository) ListByStatus(ctx context.Context, status model.RefundStatus, limit int) ([]model.Refund, error) {
	return r.list(ctx, `SELECT `+refundColumns+` FROM refunds WHERE status = $1 ORDER BY created_at LIMIT $2`, status, limit)
}

func (r *refundRepository) Update(ctx context.Context, rf *model.Refund) error {
	query := `
		UPDATE refunds
		SET status = $2, failure_reason = $3, updated_at = $4, completed_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, rf.ID, rf.Status, rf.FailureReason, rf.UpdatedAt, rf.CompletedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("refund_id", rf.ID.String()).Msg("failed to update refund")
		return fmt.Errorf("failed to update refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refund %s not found", rf.ID)
	}

	return nil
}
