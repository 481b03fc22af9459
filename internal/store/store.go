// Package store is the gorm-backed persistence layer behind the
// execution loop's storage contract.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"soltrader/internal/models"
)

// ErrDailyLimit is returned when a count-then-act guard rejects a new
// record for today.
var ErrDailyLimit = errors.New("daily limit reached")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ListActiveStrategies returns the user's active strategies, oldest first.
func (s *Store) ListActiveStrategies(userID string) ([]models.Strategy, error) {
	var strategies []models.Strategy
	err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("id asc").
		Find(&strategies).Error
	if err != nil {
		return nil, err
	}
	return strategies, nil
}

// CreateTrade inserts a trade row; the caller sets the PENDING status.
func (s *Store) CreateTrade(trade *models.Trade) error {
	return s.db.Create(trade).Error
}

// UpdateTrade applies a partial update to one trade.
func (s *Store) UpdateTrade(id uint, patch map[string]any) error {
	return s.db.Model(&models.Trade{}).Where("id = ?", id).Updates(patch).Error
}

// CountTradesSince counts the user's trades created at or after since,
// excluding the given status.
func (s *Store) CountTradesSince(userID string, since time.Time, excludeStatus string) (int64, error) {
	var count int64
	err := s.db.Model(&models.Trade{}).
		Where("user_id = ? AND created_at >= ? AND status <> ?", userID, since, excludeStatus).
		Count(&count).Error
	return count, err
}

// LastTradeAt returns the creation time of the strategy's most recent
// trade excluding the given status, or nil when none exists.
func (s *Store) LastTradeAt(strategyID uint, excludeStatus string) (*time.Time, error) {
	var trade models.Trade
	err := s.db.Where("strategy_id = ? AND status <> ?", strategyID, excludeStatus).
		Order("created_at desc").
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade.CreatedAt, nil
}

// SetStrategyActive toggles a strategy's active flag.
func (s *Store) SetStrategyActive(id uint, active bool) error {
	return s.db.Model(&models.Strategy{}).Where("id = ?", id).
		Update("is_active", active).Error
}

// ListPendingTradesBefore returns PENDING trades with a real signature
// created before the cutoff. These only exist after a crash between
// submission and the terminal status update.
func (s *Store) ListPendingTradesBefore(cutoff time.Time) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.Where("status = ? AND created_at < ? AND signature <> ?",
		models.TradeStatusPending, cutoff, models.PendingSignature).
		Find(&trades).Error
	return trades, err
}

// ListConfirmTimeoutTrades returns FAILED trades whose confirmation wait
// timed out but which were submitted with a real signature. The chain may
// still have landed them.
func (s *Store) ListConfirmTimeoutTrades(cutoff time.Time) ([]models.Trade, error) {
	var trades []models.Trade
	err := s.db.Where("status = ? AND created_at < ? AND signature <> ? AND error LIKE ?",
		models.TradeStatusFailed, cutoff, models.PendingSignature, "%confirmation timed out%").
		Find(&trades).Error
	return trades, err
}

// CreateWithdrawal inserts a withdrawal, enforcing the daily per-user cap
// inside one transaction so the count-then-act sequence stays atomic with
// respect to concurrent requests for the same user.
func (s *Store) CreateWithdrawal(withdrawal *models.Withdrawal, dailyCap int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

		var count int64
		err := tx.Model(&models.Withdrawal{}).
			Where("user_id = ? AND created_at >= ? AND status <> ?",
				withdrawal.UserID, midnight, models.WithdrawalStatusFailed).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count >= int64(dailyCap) {
			return fmt.Errorf("%w: %d withdrawals today", ErrDailyLimit, count)
		}

		return tx.Create(withdrawal).Error
	})
}

// ListWithdrawals returns the user's withdrawals, newest first.
func (s *Store) ListWithdrawals(userID string) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := s.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&withdrawals).Error
	return withdrawals, err
}

// ListUsersWithActiveStrategies returns the distinct user ids the worker
// should poll.
func (s *Store) ListUsersWithActiveStrategies() ([]string, error) {
	var users []string
	err := s.db.Model(&models.Strategy{}).
		Where("is_active = ?", true).
		Distinct().
		Pluck("user_id", &users).Error
	return users, err
}
