package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx. Begin on a pgx.Tx
// opens a savepoint.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgRepos binds every PostgreSQL repository to one querier.
type pgRepos struct {
	products    ProductRepository
	orders      OrderRepository
	coupons     CouponRepository
	payments    PaymentRepository
	instruments InstrumentRepository
	refunds     RefundRepository
	loyalty     LoyaltyRepository
	options     CheckoutOptionRepository
}

func newPgRepos(db querier, logger zerolog.Logger) *pgRepos {
	return &pgRepos{
		products:    NewProductRepository(db, logger),
		orders:      NewOrderRepository(db, logger),
		coupons:     NewCouponRepository(db, logger),
		payments:    NewPaymentRepository(db, logger),
		instruments: NewInstrumentRepository(db, logger),
		refunds:     NewRefundRepository(db, logger),
		loyalty:     NewLoyaltyRepository(db, logger),
		options:     NewCheckoutOptionRepository(db, logger),
	}
}

func (r *pgRepos) Products() ProductRepository               { return r.products }
func (r *pgRepos) Orders() OrderRepository                   { return r.orders }
func (r *pgRepos) Coupons() CouponRepository                 { return r.coupons }
func (r *pgRepos) Payments() PaymentRepository               { return r.payments }
func (r *pgRepos) Instruments() InstrumentRepository         { return r.instruments }
func (r *pgRepos) Refunds() RefundRepository                 { return r.refunds }
func (r *pgRepos) Loyalty() LoyaltyRepository                { return r.loyalty }
func (r *pgRepos) CheckoutOptions() CheckoutOptionRepository { return r.options }

// pgStore implements Store on a PostgreSQL connection pool.
type pgStore struct {
	*pgRepos
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore creates a PostgreSQL-backed transactional store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) Store {
	return &pgStore{
		pgRepos: newPgRepos(pool, logger),
		pool:    pool,
		logger:  logger.With().Str("repository", "store").Logger(),
	}
}

// WithinTx runs fn inside a single database transaction.
func (s *pgStore) WithinTx(ctx context.Context, fn func(r Repos) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = fn(newPgRepos(tx, s.logger)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to commit transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
