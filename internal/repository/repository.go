package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"betledger/internal/models"
)

// ErrNotPending is returned by BetRepository.Settle when the conditional
// status transition matched no row: the bet was settled by a concurrent
// writer between read and write. Callers surface it as an invalid-state
// rejection rather than applying last-writer-wins.
var ErrNotPending = errors.New("bet is not pending")

// BetRepository is the persistence collaborator for the bet ledger. A parlay
// parent and its legs always commit as one transaction.
type BetRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// CreateBet inserts the bet and cascades to its ChildBets.
	CreateBet(ctx context.Context, bet *models.Bet) error
	SaveBet(ctx context.Context, bet *models.Bet) error
	GetBetByID(ctx context.Context, id uint64) (*models.Bet, error)

	// ListBetsByUser returns the user's top-level bets (legs excluded),
	// children preloaded, most recently placed first.
	ListBetsByUser(ctx context.Context, userID uint64) ([]models.Bet, error)
	// ListBetsByUserOrderedByPlacedAt is the same set ordered ascending,
	// as consumed by the advanced statistics derivations.
	ListBetsByUserOrderedByPlacedAt(ctx context.Context, userID uint64) ([]models.Bet, error)
	CountBetsByUserAndStatus(ctx context.Context, userID uint64, status models.BetStatus) (int64, error)

	// SettleBet applies the terminal fields already set on bet, guarded by
	// a conditional write on the parent (status must still be PENDING) and
	// propagating status and settledAt to every leg in the same
	// transaction. Returns ErrNotPending when the guard matches no row.
	SettleBet(ctx context.Context, bet *models.Bet) error

	// DeleteBet removes the bet and, for a parlay parent, its legs in one
	// transaction.
	DeleteBet(ctx context.Context, bet *models.Bet) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type ResetTokenRepository interface {
	CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error
	GetResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error)
	MarkResetTokenUsed(ctx context.Context, id uint64) error
	DeleteStaleResetTokens(ctx context.Context, before time.Time) (int64, error)
}

// Repository is the unified store handed to services.
type Repository interface {
	BetRepository
	UserRepository
	ResetTokenRepository
}
