package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"betledger/internal/models"
	"betledger/internal/repository"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newBettingFixture(t *testing.T) (*BettingService, *stubRepo, *models.User) {
	t.Helper()
	repo := newStubRepo()
	user := repo.addUser("alice", "alice@example.com", "x")
	return &BettingService{Repo: repo}, repo, user
}

func TestPlaceSingleBet(t *testing.T) {
	svc, _, user := newBettingFixture(t)

	bets, err := svc.PlaceBets(context.Background(), []LegRequest{{
		Stake:     decPtr("100"),
		Odds:      dec("2.50"),
		Sport:     "Football",
		EventName: "Derby",
	}}, user.Username)
	if err != nil {
		t.Fatalf("PlaceBets: %v", err)
	}
	if len(bets) != 1 {
		t.Fatalf("expected 1 bet, got %d", len(bets))
	}
	bet := bets[0]
	if bet.BetType != models.BetTypeSingle {
		t.Fatalf("bet type = %s", bet.BetType)
	}
	if bet.Status != models.BetStatusPending {
		t.Fatalf("status = %s", bet.Status)
	}
	if bet.PotentialWinnings == nil || !bet.PotentialWinnings.Equal(dec("250")) {
		t.Fatalf("potential winnings = %v, want 250", bet.PotentialWinnings)
	}
	if len(bet.ChildBets) != 0 {
		t.Fatalf("single bet should have no legs, got %d", len(bet.ChildBets))
	}
}

func TestPlaceParlay(t *testing.T) {
	svc, _, user := newBettingFixture(t)

	bets, err := svc.PlaceBets(context.Background(), []LegRequest{
		{Stake: decPtr("50"), Odds: dec("2.00"), Sport: "Football"},
		{Odds: dec("1.50"), Sport: "Tennis"},
	}, user.Username)
	if err != nil {
		t.Fatalf("PlaceBets: %v", err)
	}
	if len(bets) != 1 {
		t.Fatalf("expected 1 top-level bet, got %d", len(bets))
	}
	parlay := bets[0]
	if parlay.BetType != models.BetTypeParlay {
		t.Fatalf("bet type = %s", parlay.BetType)
	}
	if !parlay.Odds.Equal(dec("3.00")) {
		t.Fatalf("parlay odds = %s, want 3.00", parlay.Odds)
	}
	if parlay.Stake == nil || !parlay.Stake.Equal(dec("50")) {
		t.Fatalf("parlay stake = %v, want 50", parlay.Stake)
	}
	if parlay.PotentialWinnings == nil || !parlay.PotentialWinnings.Equal(dec("150")) {
		t.Fatalf("potential winnings = %v, want 150", parlay.PotentialWinnings)
	}
	if parlay.Sport != "Multi-Sport" {
		t.Fatalf("sport = %q", parlay.Sport)
	}
	if parlay.EventName != "Parlay Bet (2 legs)" {
		t.Fatalf("event name = %q", parlay.EventName)
	}
	if len(parlay.ChildBets) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(parlay.ChildBets))
	}
	for i, leg := range parlay.ChildBets {
		if leg.Stake != nil {
			t.Fatalf("leg %d carries a stake", i)
		}
		if leg.PotentialWinnings != nil {
			t.Fatalf("leg %d carries potential winnings", i)
		}
		if leg.ParentBetID == nil || *leg.ParentBetID != parlay.ID {
			t.Fatalf("leg %d not linked to parent", i)
		}
	}
}

func TestPlaceBetsValidation(t *testing.T) {
	svc, _, user := newBettingFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		legs []LegRequest
	}{
		{"empty batch", nil},
		{"odds below minimum", []LegRequest{{Stake: decPtr("10"), Odds: dec("1.00")}}},
		{"single without stake", []LegRequest{{Odds: dec("2.00")}}},
		{"single with zero stake", []LegRequest{{Stake: decPtr("0"), Odds: dec("2.00")}}},
		{"parlay without stake", []LegRequest{{Odds: dec("2.00")}, {Odds: dec("1.50")}}},
		{"parlay with negative stake", []LegRequest{{Stake: decPtr("-5"), Odds: dec("2.00")}, {Odds: dec("1.50")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceBets(ctx, tc.legs, user.Username)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPlaceBetsUnknownUser(t *testing.T) {
	svc, _, _ := newBettingFixture(t)
	_, err := svc.PlaceBets(context.Background(), []LegRequest{{Stake: decPtr("10"), Odds: dec("2.00")}}, "nobody")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSettleBetWon(t *testing.T) {
	svc, _, user := newBettingFixture(t)
	ctx := context.Background()

	placed, err := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("100"), Odds: dec("3.00")}}, user.Username)
	if err != nil {
		t.Fatalf("PlaceBets: %v", err)
	}

	settled, err := svc.SettleBet(ctx, placed[0].ID, models.BetStatusWon, user.Username)
	if err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if settled.Status != models.BetStatusWon {
		t.Fatalf("status = %s", settled.Status)
	}
	if settled.FinalProfit == nil || !settled.FinalProfit.Equal(dec("200")) {
		t.Fatalf("final profit = %v, want 200", settled.FinalProfit)
	}
	if settled.SettledAt == nil {
		t.Fatal("settledAt not set")
	}
}

func TestSettleBetLost(t *testing.T) {
	svc, _, user := newBettingFixture(t)
	ctx := context.Background()

	placed, _ := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("50"), Odds: dec("2.00")}}, user.Username)
	settled, err := svc.SettleBet(ctx, placed[0].ID, models.BetStatusLost, user.Username)
	if err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if settled.FinalProfit == nil || !settled.FinalProfit.Equal(dec("-50")) {
		t.Fatalf("final profit = %v, want -50", settled.FinalProfit)
	}
}

func TestSettleBetVoid(t *testing.T) {
	svc, _, user := newBettingFixture(t)
	ctx := context.Background()

	placed, _ := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("75"), Odds: dec("1.80")}}, user.Username)
	settled, err := svc.SettleBet(ctx, placed[0].ID, models.BetStatusVoid, user.Username)
	if err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if settled.FinalProfit == nil || !settled.FinalProfit.IsZero() {
		t.Fatalf("final profit = %v, want 0", settled.FinalProfit)
	}
}

func TestSettleBetRejectsNonTerminalStatus(t *testing.T) {
	svc, _, user := newBettingFixture(t)
	ctx := context.Background()

	placed, _ := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("10"), Odds: dec("2.00")}}, user.Username)
	_, err := svc.SettleBet(ctx, placed[0].ID, models.BetStatusPending, user.Username)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSettleBetAlreadySettled(t *testing.T) {
	svc, _, user := newBettingFixture(t)
	ctx := context.Background()

	placed, _ := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("10"), Odds: dec("2.00")}}, user.Username)
	if _, err := svc.SettleBet(ctx, placed[0].ID, models.BetStatusWon, user.Username); err != nil {
		t.Fatalf("first settlement: %v", err)
	}
	_, err := svc.SettleBet(ctx, placed[0].ID, models.BetStatusLost, user.Username)
	var iserr *InvalidStateError
	if !errors.As(err, &iserr) {
		t.Fatalf("expected invalid-state error, got %v", err)
	}
}

func TestSettleBetLosesRace(t *testing.T) {
	svc, repo, user := newBettingFixture(t)
	ctx := context.Background()

	placed, _ := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("10"), Odds: dec("2.00")}}, user.Username)

	// A concurrent writer settles between this caller's read and write: the
	// read still sees PENDING but the guarded update matches no row.
	repo.settleErr = repository.ErrNotPending

	_, err := svc.SettleBet(ctx, placed[0].ID, models.BetStatusWon, user.Username)
	var iserr *InvalidStateError
	if !errors.As(err, &iserr) {
		t.Fatalf("expected invalid-state error, got %v", err)
	}
}

func TestSettleParlayPropagatesToLegs(t *testing.T) {
	svc, repo, user := newBettingFixture(t)
	ctx := context.Background()

	placed, _ := svc.PlaceBets(ctx, []LegRequest{
		{Stake: decPtr("50"), Odds: dec("2.00")},
		{Odds: dec("1.50")},
	}, user.Username)

	settled, err := svc.SettleBet(ctx, placed[0].ID, models.BetStatusWon, user.Username)
	if err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	for i, leg := range settled.ChildBets {
		if leg.Status != models.BetStatusWon {
			t.Fatalf("returned leg %d status = %s", i, leg.Status)
		}
		if leg.SettledAt == nil {
			t.Fatalf("returned leg %d settledAt not set", i)
		}
	}
	stored := repo.bets[placed[0].ID]
	for i, leg := range stored.ChildBets {
		if leg.Status != models.BetStatusWon {
			t.Fatalf("stored leg %d status = %s", i, leg.Status)
		}
	}
}

func TestSettleBetOwnership(t *testing.T) {
	svc, repo, user := newBettingFixture(t)
	ctx := context.Background()
	repo.addUser("bob", "bob@example.com", "x")

	placed, _ := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("10"), Odds: dec("2.00")}}, user.Username)

	_, err := svc.SettleBet(ctx, placed[0].ID, models.BetStatusWon, "bob")
	var aerr *AuthorizationError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	_, err = svc.SettleBet(ctx, 9999, models.BetStatusWon, user.Username)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestUpdateBetRecalculatesWinnings(t *testing.T) {
	svc, _, user := newBettingFixture(t)
	ctx := context.Background()

	placed, _ := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("100"), Odds: dec("2.00"), Sport: "Football"}}, user.Username)

	updated, err := svc.UpdateBet(ctx, placed[0].ID, UpdateBetRequest{
		Sport: "Tennis",
		Odds:  dec("3.50"),
		Stake: decPtr("40"),
	}, user.Username)
	if err != nil {
		t.Fatalf("UpdateBet: %v", err)
	}
	if updated.Sport != "Tennis" {
		t.Fatalf("sport = %q", updated.Sport)
	}
	if updated.PotentialWinnings == nil || !updated.PotentialWinnings.Equal(dec("140")) {
		t.Fatalf("potential winnings = %v, want 140", updated.PotentialWinnings)
	}
}

func TestUpdateBetRejectsBadOdds(t *testing.T) {
	svc, _, user := newBettingFixture(t)
	ctx := context.Background()

	placed, _ := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("10"), Odds: dec("2.00")}}, user.Username)
	_, err := svc.UpdateBet(ctx, placed[0].ID, UpdateBetRequest{Odds: dec("0.99"), Stake: decPtr("10")}, user.Username)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteBet(t *testing.T) {
	svc, repo, user := newBettingFixture(t)
	ctx := context.Background()

	placed, _ := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("10"), Odds: dec("2.00")}}, user.Username)
	if err := svc.DeleteBet(ctx, placed[0].ID, user.Username); err != nil {
		t.Fatalf("DeleteBet: %v", err)
	}
	if _, ok := repo.bets[placed[0].ID]; ok {
		t.Fatal("bet still present after delete")
	}
}

func TestGetUserBetsHidesLegs(t *testing.T) {
	svc, _, user := newBettingFixture(t)
	ctx := context.Background()

	if _, err := svc.PlaceBets(ctx, []LegRequest{
		{Stake: decPtr("50"), Odds: dec("2.00")},
		{Odds: dec("1.50")},
	}, user.Username); err != nil {
		t.Fatalf("PlaceBets: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := svc.PlaceBets(ctx, []LegRequest{{Stake: decPtr("10"), Odds: dec("2.00")}}, user.Username); err != nil {
		t.Fatalf("PlaceBets: %v", err)
	}

	bets, err := svc.GetUserBets(ctx, user.Username)
	if err != nil {
		t.Fatalf("GetUserBets: %v", err)
	}
	if len(bets) != 2 {
		t.Fatalf("expected 2 top-level bets, got %d", len(bets))
	}
	for _, b := range bets {
		if !b.TopLevel() {
			t.Fatal("listing leaked a parlay leg")
		}
	}
}
