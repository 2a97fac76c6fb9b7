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

// instrumentRepository implements the InstrumentRepository interface using PostgreSQL.
type instrumentRepository struct {
	db     querier
	logger zerolog.Logger
}

// NewInstrumentRepository creates a new PostgreSQL-backed instrument repository.
func NewInstrumentRepository(db querier, logger zerolog.Logger) InstrumentRepository {
	return &instrumentRepository{
		db:     db,
		logger: logger.With().Str("repository", "instrument").Logger(),
	}
}

func (r *instrumentRepository) Create(ctx context.Context, in *model.PaymentInstrument) error {
	query := `
		INSERT INTO payment_instruments (id, user_id, type, label, brand, last4, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query, in.ID, in.UserID, in.Type, in.Label, in.Brand, in.Last4, in.Active, in.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("instrument_id", in.ID.String()).Msg("failed to create instrument")
		return fmt.Errorf("failed to create instrument: %w", err)
	}

	return nil
}

func (r *instrumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentInstrument, error) {
	query := `
		SELECT id, user_id, type, label, brand, last4, active, created_at
		FROM payment_instruments
		WHERE id = $1`

	var in model.PaymentInstrument
	err := r.db.QueryRow(ctx, query, id).Scan(&in.ID, &in.UserID, &in.Type, &in.Label, &in.Brand, &in.Last4, &in.Active, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("instrument_id", id.String()).Msg("failed to query instrument")
		return nil, fmt.Errorf("failed to query instrument: %w", err)
	}

	return &in, nil
}

func (r *instrumentRepository) ListByUser(ctx context.Context, userID string) ([]model.PaymentInstrument, error) {
	query := `
		SELECT id, user_id, type, label, brand, last4, active, created_at
		FROM payment_instruments
		WHERE user_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query instruments")
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	instruments := []model.PaymentInstrument{}
	for rows.Next() {
		var in model.PaymentInstrument
		if err := rows.Scan(&in.ID, &in.UserID, &in.Type, &in.Label, &in.Brand, &in.Last4, &in.Active, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, in)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}

	return instruments, nil
}

func (r *instrumentRepository) Update(ctx context.Context, in *model.PaymentInstrument) error {
	tag, err := r.db.Exec(ctx, `UPDATE payment_instruments SET label = $2, active = $3 WHERE id = $1`, in.ID, in.Label, in.Active)
	if err != nil {
		r.logger.Error().Err(err).Str("instrument_id", in.ID.String()).Msg("failed to update instrument")
		return fmt.Errorf("failed to update instrument: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrInstrumentNotFound
	}

	return nil
}
