package service

import (
	"context"
	"fmt"
	"time"

	"petshop/internal/identity"
	"petshop/internal/lock"
	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const expiryBatch = 500

// loyaltyService implements LoyaltyService.
type loyaltyService struct {
	store  repository.Store
	locks  *lock.Keyed
	now    func() time.Time
	logger zerolog.Logger
}

// NewLoyaltyService creates a new loyalty service.
func NewLoyaltyService(store repository.Store, locks *lock.Keyed, logger zerolog.Logger) LoyaltyService {
	return &loyaltyService{
		store:  store,
		locks:  locks,
		now:    time.Now,
		logger: logger.With().Str("service", "loyalty").Logger(),
	}
}

// GetAccount returns the user's account, an empty bronze one when the user
// never earned points.
func (s *loyaltyService) GetAccount(ctx context.Context, userID string) (*model.LoyaltyAccount, error) {
	account, err := s.store.Loyalty().GetAccount(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to get loyalty account")
		return nil, fmt.Errorf("failed to get loyalty account: %w", err)
	}
	if account == nil {
		account = model.NewLoyaltyAccount(userID, s.now())
	}
	return account, nil
}

func (s *loyaltyService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.PointsTransaction, error) {
	limit, offset = pageBounds(limit, offset)
	txs, err := s.store.Loyalty().ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list points transactions")
		return nil, fmt.Errorf("failed to list points transactions: %w", err)
	}
	return txs, nil
}

// Earn credits the points of an order. A second call for the same order
// returns nil without crediting again.
func (s *loyaltyService) Earn(ctx context.Context, userID string, orderID uuid.UUID, amount decimal.Decimal) (*model.PointsTransaction, error) {
	unlock := s.locks.Lock(lock.UserKey(userID))
	defer unlock()

	var earned *model.PointsTransaction
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		var err error
		earned, err = earnPoints(ctx, r, userID, orderID, amount, s.now())
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("order_id", orderID.String()).Msg("failed to earn points")
		return nil, err
	}
	return earned, nil
}

// Redeem spends points.
func (s *loyaltyService) Redeem(ctx context.Context, userID string, req *model.RedeemRequest) (*model.LoyaltyAccount, error) {
	if req == nil || req.Points <= 0 {
		return nil, model.NewValidationError("points must be greater than zero")
	}

	unlock := s.locks.Lock(lock.UserKey(userID))
	defer unlock()

	now := s.now()
	var account *model.LoyaltyAccount
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		acc, err := loadAccount(ctx, r, userID, now)
		if err != nil {
			return err
		}
		if acc.AvailablePoints < req.Points {
			return model.ErrInsufficientPoints.WithMessage("%d points available, %d requested", acc.AvailablePoints, req.Points)
		}
		acc.AvailablePoints -= req.Points
		acc.UpdatedAt = now

		entry := &model.PointsTransaction{
			ID:          uuid.New(),
			UserID:      userID,
			Type:        model.PointsRedeemed,
			Points:      -req.Points,
			OrderID:     req.OrderID,
			Description: "Points redeemed",
			CreatedAt:   now,
		}
		if err := r.Loyalty().AddTransaction(ctx, entry); err != nil {
			return fmt.Errorf("failed to add points transaction: %w", err)
		}
		if err := r.Loyalty().SaveAccount(ctx, acc); err != nil {
			return fmt.Errorf("failed to save loyalty account: %w", err)
		}
		account = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Int64("points", req.Points).Msg("points redeemed")
	return account, nil
}

// Bonus credits points granted by an admin. Bonus points expire like earned ones.
func (s *loyaltyService) Bonus(ctx context.Context, actor identity.Actor, req *model.BonusRequest) (*model.LoyaltyAccount, error) {
	if !actor.IsAdmin() {
		return nil, model.ErrForbidden
	}
	if req == nil || req.UserID == "" {
		return nil, model.NewValidationError("userId is required")
	}
	if req.Points <= 0 {
		return nil, model.NewValidationError("points must be greater than zero")
	}

	unlock := s.locks.Lock(lock.UserKey(req.UserID))
	defer unlock()

	now := s.now()
	var account *model.LoyaltyAccount
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		acc, err := loadAccount(ctx, r, req.UserID, now)
		if err != nil {
			return err
		}
		acc.AvailablePoints += req.Points
		acc.UpdatedAt = now

		description := req.Description
		if description == "" {
			description = "Bonus points"
		}
		expires := now.Add(model.PointsValidity)
		entry := &model.PointsTransaction{
			ID:          uuid.New(),
			UserID:      req.UserID,
			Type:        model.PointsBonus,
			Points:      req.Points,
			Description: description,
			ExpiresAt:   &expires,
			CreatedAt:   now,
		}
		if err := r.Loyalty().AddTransaction(ctx, entry); err != nil {
			return fmt.Errorf("failed to add points transaction: %w", err)
		}
		if err := r.Loyalty().SaveAccount(ctx, acc); err != nil {
			return fmt.Errorf("failed to save loyalty account: %w", err)
		}
		account = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", req.UserID).Str("granted_by", actor.ID).Int64("points", req.Points).Msg("bonus points granted")
	return account, nil
}

// ExpireDue expires every earned or bonus entry whose validity ended at or
// before now. The expired points are taken from the available balance,
// never below zero.
func (s *loyaltyService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	for {
		due, err := s.store.Loyalty().ListExpiring(ctx, now, expiryBatch)
		if err != nil {
			return expired, fmt.Errorf("failed to list expiring points: %w", err)
		}
		for _, entry := range due {
			if err := s.expire(ctx, entry, now); err != nil {
				return expired, err
			}
			expired++
		}
		if len(due) < expiryBatch {
			break
		}
	}
	if expired > 0 {
		s.logger.Info().Int("entries", expired).Msg("loyalty points expired")
	}
	return expired, nil
}

func (s *loyaltyService) expire(ctx context.Context, entry model.PointsTransaction, now time.Time) error {
	unlock := s.locks.Lock(lock.UserKey(entry.UserID))
	defer unlock()

	return s.store.WithinTx(ctx, func(r repository.Repos) error {
		acc, err := loadAccount(ctx, r, entry.UserID, now)
		if err != nil {
			return err
		}
		deduct := min(entry.Points, acc.AvailablePoints)
		if err := r.Loyalty().MarkExpired(ctx, entry.ID, now); err != nil {
			return fmt.Errorf("failed to mark points expired: %w", err)
		}
		if deduct <= 0 {
			return nil
		}
		acc.AvailablePoints -= deduct
		acc.UpdatedAt = now
		if err := r.Loyalty().AddTransaction(ctx, &model.PointsTransaction{
			ID:          uuid.New(),
			UserID:      entry.UserID,
			Type:        model.PointsExpired,
			Points:      -deduct,
			OrderID:     entry.OrderID,
			Description: "Points expired",
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to add points transaction: %w", err)
		}
		if err := r.Loyalty().SaveAccount(ctx, acc); err != nil {
			return fmt.Errorf("failed to save loyalty account: %w", err)
		}
		return nil
	})
}

// RunLoyaltyExpiry calls ExpireDue every interval until ctx is cancelled.
func RunLoyaltyExpiry(ctx context.Context, loyalty LoyaltyService, interval time.Duration, logger zerolog.Logger) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := loyalty.ExpireDue(ctx, now); err != nil {
				logger.Error().Err(err).Msg("loyalty expiry sweep failed")
			}
		}
	}
}

func loadAccount(ctx context.Context, r repository.Repos, userID string, now time.Time) (*model.LoyaltyAccount, error) {
	acc, err := r.Loyalty().GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loyalty account: %w", err)
	}
	if acc == nil {
		acc = model.NewLoyaltyAccount(userID, now)
	}
	return acc, nil
}

// earnPoints credits the points of a delivered order at the account's
// current tier, once per order.
func earnPoints(ctx context.Context, r repository.Repos, userID string, orderID uuid.UUID, amount decimal.Decimal, now time.Time) (*model.PointsTransaction, error) {
	done, err := r.Loyalty().HasOrderTransaction(ctx, userID, orderID, model.PointsEarned)
	if err != nil {
		return nil, fmt.Errorf("failed to check points transaction: %w", err)
	}
	if done {
		return nil, nil
	}

	acc, err := loadAccount(ctx, r, userID, now)
	if err != nil {
		return nil, err
	}
	points := model.PointsFor(amount, acc.Tier)

	acc.AvailablePoints += points
	acc.LifetimeSpend = model.Round2(acc.LifetimeSpend.Add(amount))
	acc.OrderCount++
	acc.Tier = model.TierFor(acc.LifetimeSpend)
	acc.UpdatedAt = now

	expires := now.Add(model.PointsValidity)
	id := orderID
	entry := &model.PointsTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        model.PointsEarned,
		Points:      points,
		OrderID:     &id,
		Description: fmt.Sprintf("Points for order %s", orderID),
		ExpiresAt:   &expires,
		CreatedAt:   now,
	}
	if err := r.Loyalty().AddTransaction(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to add points transaction: %w", err)
	}
	if err := r.Loyalty().SaveAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to save loyalty account: %w", err)
	}
	return entry, nil
}
