package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"betledger/internal/models"
	"betledger/internal/repository"
)

// stubRepo is an in-memory repository.Repository used by the service tests.
// It mimics the store's observable behavior: reads return copies, the
// settlement write is guarded by the stored status, and parlay legs live
// inside their parent.
type stubRepo struct {
	bets   map[uint64]*models.Bet
	users  map[uint64]*models.User
	tokens map[uint64]*models.PasswordResetToken

	nextBetID   uint64
	nextUserID  uint64
	nextTokenID uint64

	settleErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		bets:   map[uint64]*models.Bet{},
		users:  map[uint64]*models.User{},
		tokens: map[uint64]*models.PasswordResetToken{},
	}
}

func (r *stubRepo) addUser(username, email, passwordHash string) *models.User {
	r.nextUserID++
	u := &models.User{
		ID:           r.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		JoinedAt:     time.Now().UTC(),
	}
	r.users[u.ID] = u
	return u
}

func copyBet(b *models.Bet) *models.Bet {
	cp := *b
	cp.ChildBets = make([]models.Bet, len(b.ChildBets))
	copy(cp.ChildBets, b.ChildBets)
	return &cp
}

func (r *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *stubRepo) CreateBet(ctx context.Context, bet *models.Bet) error {
	r.nextBetID++
	bet.ID = r.nextBetID
	for i := range bet.ChildBets {
		r.nextBetID++
		bet.ChildBets[i].ID = r.nextBetID
		bet.ChildBets[i].ParentBetID = &bet.ID
	}
	r.bets[bet.ID] = copyBet(bet)
	return nil
}

func (r *stubRepo) SaveBet(ctx context.Context, bet *models.Bet) error {
	stored, ok := r.bets[bet.ID]
	if !ok {
		r.bets[bet.ID] = copyBet(bet)
		return nil
	}
	children := stored.ChildBets
	cp := copyBet(bet)
	if len(cp.ChildBets) == 0 {
		cp.ChildBets = children
	}
	r.bets[bet.ID] = cp
	return nil
}

func (r *stubRepo) GetBetByID(ctx context.Context, id uint64) (*models.Bet, error) {
	bet, ok := r.bets[id]
	if !ok {
		return nil, nil
	}
	return copyBet(bet), nil
}

func (r *stubRepo) ListBetsByUser(ctx context.Context, userID uint64) ([]models.Bet, error) {
	return r.listTopLevel(userID, false), nil
}

func (r *stubRepo) ListBetsByUserOrderedByPlacedAt(ctx context.Context, userID uint64) ([]models.Bet, error) {
	return r.listTopLevel(userID, true), nil
}

func (r *stubRepo) listTopLevel(userID uint64, asc bool) []models.Bet {
	var out []models.Bet
	for _, b := range r.bets {
		if b.UserID != userID || !b.TopLevel() {
			continue
		}
		out = append(out, *copyBet(b))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if asc {
			return out[i].PlacedAt.Before(out[j].PlacedAt)
		}
		return out[i].PlacedAt.After(out[j].PlacedAt)
	})
	return out
}

func (r *stubRepo) CountBetsByUserAndStatus(ctx context.Context, userID uint64, status models.BetStatus) (int64, error) {
	var n int64
	for _, b := range r.bets {
		if b.UserID == userID && b.TopLevel() && b.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *stubRepo) SettleBet(ctx context.Context, bet *models.Bet) error {
	if r.settleErr != nil {
		return r.settleErr
	}
	stored, ok := r.bets[bet.ID]
	if !ok || stored.Status != models.BetStatusPending {
		return repository.ErrNotPending
	}
	stored.Status = bet.Status
	stored.SettledAt = bet.SettledAt
	stored.FinalProfit = bet.FinalProfit
	for i := range stored.ChildBets {
		stored.ChildBets[i].Status = bet.Status
		stored.ChildBets[i].SettledAt = bet.SettledAt
	}
	return nil
}

func (r *stubRepo) DeleteBet(ctx context.Context, bet *models.Bet) error {
	delete(r.bets, bet.ID)
	return nil
}

func (r *stubRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.nextUserID++
	user.ID = r.nextUserID
	if user.JoinedAt.IsZero() {
		user.JoinedAt = time.Now().UTC()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *stubRepo) SaveUser(ctx context.Context, user *models.User) error {
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *stubRepo) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *stubRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	r.nextTokenID++
	token.ID = r.nextTokenID
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r *stubRepo) GetResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	for _, t := range r.tokens {
		if t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) MarkResetTokenUsed(ctx context.Context, id uint64) error {
	if t, ok := r.tokens[id]; ok {
		t.Used = true
	}
	return nil
}

func (r *stubRepo) DeleteStaleResetTokens(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for id, t := range r.tokens {
		if t.Used || t.ExpiresAt.Before(before) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}
