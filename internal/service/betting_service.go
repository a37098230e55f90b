package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betledger/internal/models"
	"betledger/internal/repository"
)

var minOdds = decimal.NewFromFloat(1.01)

// LegRequest is one constituent leg of a placement batch. A batch of one
// produces a single bet; a larger batch produces a parlay with one child
// bet per leg.
type LegRequest struct {
	Stake          *decimal.Decimal
	Odds           decimal.Decimal
	OddsType       string
	Sport          string
	EventName      string
	EventDate      *time.Time
	MarketType     string
	Selection      string
	Line           string
	Bookmaker      string
	ExternalBetID  string
	ExternalSource string
	Notes          string
}

// UpdateBetRequest is the replacement field set applied by UpdateBet.
type UpdateBetRequest struct {
	Sport      string
	EventName  string
	EventDate  *time.Time
	MarketType string
	Selection  string
	Odds       decimal.Decimal
	Bookmaker  string
	Stake      *decimal.Decimal
	Notes      string
}

type BettingService struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

// PlaceBets creates a single bet or a parlay from the leg batch on behalf
// of username. The returned slice always holds exactly one top-level bet.
func (s *BettingService) PlaceBets(ctx context.Context, legs []LegRequest, username string) ([]models.Bet, error) {
	user, err := s.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, validationErrorf("bet requests cannot be empty")
	}
	for i, leg := range legs {
		if leg.Odds.Cmp(minOdds) < 0 {
			return nil, validationErrorf("leg %d: odds must be at least 1.01", i+1)
		}
	}

	now := time.Now().UTC()

	if len(legs) == 1 {
		leg := legs[0]
		if leg.Stake == nil || leg.Stake.Sign() <= 0 {
			return nil, validationErrorf("stake must be positive for a single bet")
		}
		bet := buildBet(leg, user.ID, leg.Stake, now)
		if err := s.Repo.CreateBet(ctx, bet); err != nil {
			return nil, err
		}
		if s.Logger != nil {
			s.Logger.Info("single bet placed",
				zap.Uint64("bet_id", bet.ID),
				zap.Uint64("user_id", user.ID),
				zap.String("stake", leg.Stake.String()))
		}
		return []models.Bet{*bet}, nil
	}

	// Parlay stake: first leg in batch order that carries one. Later
	// stakes are accepted silently and ignored.
	var stake *decimal.Decimal
	for _, leg := range legs {
		if leg.Stake != nil {
			stake = leg.Stake
			break
		}
	}
	if stake == nil {
		return nil, validationErrorf("stake is required for a parlay bet")
	}
	if stake.Sign() <= 0 {
		return nil, validationErrorf("stake must be positive for a parlay bet")
	}

	parlay := &models.Bet{
		UserID:    user.ID,
		BetType:   models.BetTypeParlay,
		Status:    models.BetStatusPending,
		Stake:     stake,
		Odds:      parlayOdds(legs),
		OddsType:  "DECIMAL",
		Sport:     "Multi-Sport",
		EventName: fmt.Sprintf("Parlay Bet (%d legs)", len(legs)),
		PlacedAt:  now,
	}
	parlay.RecalcPotentialWinnings()
	for _, leg := range legs {
		child := buildBet(leg, user.ID, nil, now)
		parlay.ChildBets = append(parlay.ChildBets, *child)
	}

	if err := s.Repo.CreateBet(ctx, parlay); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("parlay placed",
			zap.Uint64("bet_id", parlay.ID),
			zap.Uint64("user_id", user.ID),
			zap.Int("legs", len(legs)),
			zap.String("odds", parlay.Odds.String()))
	}
	return []models.Bet{*parlay}, nil
}

// GetUserBets lists the user's top-level bets; parlay legs stay hidden.
func (s *BettingService) GetUserBets(ctx context.Context, username string) ([]models.Bet, error) {
	user, err := s.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.Repo.ListBetsByUser(ctx, user.ID)
}

// SettleBet transitions a pending bet to a terminal status and realizes its
// profit. The transition is one-way; settling an already-settled bet fails.
func (s *BettingService) SettleBet(ctx context.Context, betID uint64, status models.BetStatus, username string) (*models.Bet, error) {
	if !status.Terminal() {
		return nil, validationErrorf("invalid settlement status %q", status)
	}
	user, err := s.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}
	bet, err := s.ownedBet(ctx, betID, user.ID)
	if err != nil {
		return nil, err
	}
	if bet.Status != models.BetStatusPending {
		return nil, invalidStateErrorf("bet %d is already settled", betID)
	}

	now := time.Now().UTC()
	bet.Status = status
	bet.SettledAt = &now
	profit := settlementProfit(bet, status)
	bet.FinalProfit = &profit

	if err := s.Repo.SettleBet(ctx, bet); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			// Lost the race: another settlement committed first.
			return nil, invalidStateErrorf("bet %d is already settled", betID)
		}
		return nil, err
	}
	for i := range bet.ChildBets {
		bet.ChildBets[i].Status = status
		bet.ChildBets[i].SettledAt = bet.SettledAt
	}
	if s.Logger != nil {
		s.Logger.Info("bet settled",
			zap.Uint64("bet_id", bet.ID),
			zap.String("status", string(status)),
			zap.String("final_profit", profit.String()))
	}
	return bet, nil
}

// UpdateBet overwrites the descriptive and economic fields of a bet and
// rederives potential winnings. Status is deliberately not checked: settled
// bets stay editable, matching the source system.
func (s *BettingService) UpdateBet(ctx context.Context, betID uint64, req UpdateBetRequest, username string) (*models.Bet, error) {
	if req.Odds.Cmp(minOdds) < 0 {
		return nil, validationErrorf("odds must be at least 1.01")
	}
	user, err := s.resolveUser(ctx, username)
	if err != nil {
		return nil, err
	}
	bet, err := s.ownedBet(ctx, betID, user.ID)
	if err != nil {
		return nil, err
	}

	bet.Sport = req.Sport
	bet.EventName = req.EventName
	bet.EventDate = req.EventDate
	bet.MarketType = req.MarketType
	bet.Selection = req.Selection
	bet.Odds = req.Odds
	bet.Bookmaker = req.Bookmaker
	bet.Stake = req.Stake
	bet.Notes = req.Notes
	bet.RecalcPotentialWinnings()

	saved := *bet
	saved.ChildBets = nil
	if err := s.Repo.SaveBet(ctx, &saved); err != nil {
		return nil, err
	}
	saved.ChildBets = bet.ChildBets
	return &saved, nil
}

// DeleteBet removes a bet; for a parlay parent the legs go with it.
func (s *BettingService) DeleteBet(ctx context.Context, betID uint64, username string) error {
	user, err := s.resolveUser(ctx, username)
	if err != nil {
		return err
	}
	bet, err := s.ownedBet(ctx, betID, user.ID)
	if err != nil {
		return err
	}
	return s.Repo.DeleteBet(ctx, bet)
}

func (s *BettingService) resolveUser(ctx context.Context, username string) (*models.User, error) {
	return resolveUser(ctx, s.Repo, username)
}

func resolveUser(ctx context.Context, repo repository.UserRepository, username string) (*models.User, error) {
	user, err := repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFoundErrorf("user %q not found", username)
	}
	return user, nil
}

func (s *BettingService) ownedBet(ctx context.Context, betID, userID uint64) (*models.Bet, error) {
	bet, err := s.Repo.GetBetByID(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet == nil {
		return nil, notFoundErrorf("bet %d not found", betID)
	}
	if bet.UserID != userID {
		return nil, authorizationErrorf("bet %d does not belong to the acting user", betID)
	}
	return bet, nil
}

func buildBet(leg LegRequest, userID uint64, stake *decimal.Decimal, placedAt time.Time) *models.Bet {
	oddsType := leg.OddsType
	if oddsType == "" {
		oddsType = "DECIMAL"
	}
	bet := &models.Bet{
		UserID:         userID,
		BetType:        models.BetTypeSingle,
		Status:         models.BetStatusPending,
		Stake:          stake,
		Odds:           leg.Odds,
		OddsType:       oddsType,
		Sport:          leg.Sport,
		EventName:      leg.EventName,
		EventDate:      leg.EventDate,
		MarketType:     leg.MarketType,
		Selection:      leg.Selection,
		Line:           leg.Line,
		Bookmaker:      leg.Bookmaker,
		ExternalBetID:  leg.ExternalBetID,
		ExternalSource: leg.ExternalSource,
		Notes:          leg.Notes,
		PlacedAt:       placedAt,
	}
	bet.RecalcPotentialWinnings()
	return bet
}

func parlayOdds(legs []LegRequest) decimal.Decimal {
	odds := decimal.NewFromInt(1)
	for _, leg := range legs {
		odds = odds.Mul(leg.Odds)
	}
	return odds.Round(2)
}

func settlementProfit(bet *models.Bet, status models.BetStatus) decimal.Decimal {
	if bet.Stake == nil || bet.PotentialWinnings == nil {
		return decimal.Zero
	}
	switch status {
	case models.BetStatusWon:
		return bet.PotentialWinnings.Sub(*bet.Stake)
	case models.BetStatusLost:
		return bet.Stake.Neg()
	default: // VOID: stake refunded
		return decimal.Zero
	}
}
