package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"betledger/internal/models"
	"betledger/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- bets -------------------------------------------------------------------

func (s *Store) CreateBet(ctx context.Context, bet *models.Bet) error {
	if s == nil || s.db == nil || bet == nil {
		return nil
	}
	// gorm persists ChildBets through the association in the same
	// transaction as the parent, filling ParentBetID on each leg.
	return s.db.WithContext(ctx).Create(bet).Error
}

func (s *Store) SaveBet(ctx context.Context, bet *models.Bet) error {
	if s == nil || s.db == nil || bet == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(bet).Error
}

func (s *Store) GetBetByID(ctx context.Context, id uint64) (*models.Bet, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var bet models.Bet
	err := s.db.WithContext(ctx).
		Preload("ChildBets").
		First(&bet, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

func (s *Store) ListBetsByUser(ctx context.Context, userID uint64) ([]models.Bet, error) {
	return s.listTopLevel(ctx, userID, "placed_at desc")
}

func (s *Store) ListBetsByUserOrderedByPlacedAt(ctx context.Context, userID uint64) ([]models.Bet, error) {
	return s.listTopLevel(ctx, userID, "placed_at asc")
}

func (s *Store) listTopLevel(ctx context.Context, userID uint64, order string) ([]models.Bet, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Bet
	err := s.db.WithContext(ctx).
		Preload("ChildBets").
		Where("user_id = ?", userID).
		Where("parent_bet_id IS NULL").
		Order(order).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountBetsByUserAndStatus(ctx context.Context, userID uint64, status models.BetStatus) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("user_id = ?", userID).
		Where("parent_bet_id IS NULL").
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (s *Store) SettleBet(ctx context.Context, bet *models.Bet) error {
	if s == nil || s.db == nil || bet == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional write: the transition only applies if the row is
		// still PENDING, so a second concurrent settlement fails instead
		// of overwriting the first.
		res := tx.Model(&models.Bet{}).
			Where("id = ?", bet.ID).
			Where("status = ?", models.BetStatusPending).
			Updates(map[string]any{
				"status":       bet.Status,
				"settled_at":   bet.SettledAt,
				"final_profit": bet.FinalProfit,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotPending
		}
		return tx.Model(&models.Bet{}).
			Where("parent_bet_id = ?", bet.ID).
			Updates(map[string]any{
				"status":     bet.Status,
				"settled_at": bet.SettledAt,
			}).Error
	})
}

func (s *Store) DeleteBet(ctx context.Context, bet *models.Bet) error {
	if s == nil || s.db == nil || bet == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_bet_id = ?", bet.ID).Delete(&models.Bet{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Bet{}, "id = ?", bet.ID).Error
	})
}

// --- users ------------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if s == nil || s.db == nil || user == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	if s == nil || s.db == nil || user == nil {
		return nil
	}
	return s.db.WithContext(ctx).Save(user).Error
}

func (s *Store) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if s == nil || s.db == nil || username == "" {
		return nil, nil
	}
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if s == nil || s.db == nil || email == "" {
		return nil, nil
	}
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// --- password reset tokens --------------------------------------------------

func (s *Store) CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	if s == nil || s.db == nil || token == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *Store) GetResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	token = strings.TrimSpace(token)
	if s == nil || s.db == nil || token == "" {
		return nil, nil
	}
	var item models.PasswordResetToken
	err := s.db.WithContext(ctx).First(&item, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) MarkResetTokenUsed(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.PasswordResetToken{}).
		Where("id = ?", id).
		Update("used", true).Error
}

func (s *Store) DeleteStaleResetTokens(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR used = ?", before, true).
		Delete(&models.PasswordResetToken{})
	return res.RowsAffected, res.Error
}
