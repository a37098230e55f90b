package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"betledger/internal/models"
	"betledger/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// AdvancedStats mirrors the advanced-statistics record exposed to callers.
type AdvancedStats struct {
	TotalBets      int                                `json:"totalBets"`
	SuccessfulBets int                                `json:"successfulBets"`
	ProfitLoss     decimal.Decimal                    `json:"profitLoss"`
	ROIPercentage  decimal.Decimal                    `json:"roiPercentage"`
	WinRatesByType map[models.BetType]decimal.Decimal `json:"winRatesByType"`
	RollingAverage decimal.Decimal                    `json:"rollingAverage"`
	CurrentStreak  string                             `json:"currentStreak"`
	SharpeRatio    decimal.Decimal                    `json:"sharpeRatio"`
}

type EquityCurvePoint struct {
	Date             string          `json:"date"`
	CumulativeProfit decimal.Decimal `json:"cumulativeProfit"`
}

type DashboardStats struct {
	TotalProfitLoss decimal.Decimal            `json:"totalProfitLoss"`
	TotalBets       int                        `json:"totalBets"`
	ActiveBetsCount int                        `json:"activeBetsCount"`
	WinRate         decimal.Decimal            `json:"winRate"`
	TotalStaked     decimal.Decimal            `json:"totalStaked"`
	ROI             decimal.Decimal            `json:"roi"`
	Yield           decimal.Decimal            `json:"yield"`
	ProfitBySport   map[string]decimal.Decimal `json:"profitBySport"`
	EquityCurve     []EquityCurvePoint         `json:"equityCurve"`
}

// StatsService derives aggregate and time-series metrics from the ledger.
// Nothing is cached: every query recomputes from the current snapshot, so
// results are always fresh at user-scale data volumes.
type StatsService struct {
	Repo repository.Repository

	// RollingWindowDays is the advanced-stats rolling window (default 30).
	RollingWindowDays int
	// RecentBetsLimit caps the recent-bets slice in basic stats (default 5).
	RecentBetsLimit int
}

func (s *StatsService) rollingWindowDays() int {
	if s.RollingWindowDays <= 0 {
		return 30
	}
	return s.RollingWindowDays
}

func (s *StatsService) recentBetsLimit() int {
	if s.RecentBetsLimit <= 0 {
		return 5
	}
	return s.RecentBetsLimit
}

// Basic returns the basic statistics map: counts, total stake, net profit,
// ROI and the most recently placed bets.
func (s *StatsService) Basic(ctx context.Context, username string) (map[string]any, error) {
	user, err := resolveUser(ctx, s.Repo, username)
	if err != nil {
		return nil, err
	}
	bets, err := s.Repo.ListBetsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	wonBets, err := s.Repo.CountBetsByUserAndStatus(ctx, user.ID, models.BetStatusWon)
	if err != nil {
		return nil, err
	}

	totalStake := sumStakes(bets)
	profitLoss := netProfit(bets)

	recent := bets
	if len(recent) > s.recentBetsLimit() {
		recent = recent[:s.recentBetsLimit()]
	}

	return map[string]any{
		"totalBets":  len(bets),
		"wonBets":    wonBets,
		"totalStake": totalStake,
		"profitLoss": profitLoss,
		"roi":        roiPercent(profitLoss, totalStake),
		"recentBets": recent,
	}, nil
}

// Advanced returns the advanced statistics record, derived over the user's
// top-level bets ordered by placement time ascending.
func (s *StatsService) Advanced(ctx context.Context, username string) (*AdvancedStats, error) {
	user, err := resolveUser(ctx, s.Repo, username)
	if err != nil {
		return nil, err
	}
	bets, err := s.Repo.ListBetsByUserOrderedByPlacedAt(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	profit := netProfit(bets)
	return &AdvancedStats{
		TotalBets:      len(bets),
		SuccessfulBets: countByStatus(bets, models.BetStatusWon),
		ProfitLoss:     profit,
		ROIPercentage:  roiPercent(profit, sumStakes(bets)),
		WinRatesByType: winRatesByType(bets),
		RollingAverage: rollingAverage(bets, s.rollingWindowDays(), time.Now().UTC()),
		CurrentStreak:  analyzeStreaks(bets),
		SharpeRatio:    sharpeRatio(bets),
	}, nil
}

// Dashboard returns the dashboard statistics record, including the per-sport
// profit breakdown and the cumulative equity curve.
func (s *StatsService) Dashboard(ctx context.Context, username string) (*DashboardStats, error) {
	user, err := resolveUser(ctx, s.Repo, username)
	if err != nil {
		return nil, err
	}
	bets, err := s.Repo.ListBetsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	won := countByStatus(bets, models.BetStatusWon)
	lost := countByStatus(bets, models.BetStatusLost)
	winRate := decimal.Zero
	if won+lost > 0 {
		winRate = decimal.NewFromInt(int64(won)).
			DivRound(decimal.NewFromInt(int64(won+lost)), 4).
			Mul(hundred)
	}

	totalStaked := sumStakes(bets)
	profitLoss := netProfit(bets)
	roi := roiPercent(profitLoss, totalStaked)

	return &DashboardStats{
		TotalProfitLoss: profitLoss,
		TotalBets:       len(bets),
		ActiveBetsCount: countByStatus(bets, models.BetStatusPending),
		WinRate:         winRate,
		TotalStaked:     totalStaked,
		ROI:             roi,
		Yield:           roi,
		ProfitBySport:   profitBySport(bets),
		EquityCurve:     equityCurve(bets),
	}, nil
}

// Heatmap groups realized profit by settlement date: one entry per distinct
// date, values summed per day and not cumulative.
func (s *StatsService) Heatmap(ctx context.Context, username string) (map[string]decimal.Decimal, error) {
	user, err := resolveUser(ctx, s.Repo, username)
	if err != nil {
		return nil, err
	}
	bets, err := s.Repo.ListBetsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return dailyProfits(bets), nil
}

// --- derivations ------------------------------------------------------------

func sumStakes(bets []models.Bet) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bets {
		if b.Stake != nil {
			total = total.Add(*b.Stake)
		}
	}
	return total
}

func netProfit(bets []models.Bet) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bets {
		if b.Status == models.BetStatusPending {
			continue
		}
		if b.FinalProfit != nil {
			total = total.Add(*b.FinalProfit)
		}
	}
	return total
}

// roiPercent divides at 4 decimals half-up before the x100 scaling and
// short-circuits to zero on a zero stake.
func roiPercent(profit, investment decimal.Decimal) decimal.Decimal {
	if investment.IsZero() {
		return decimal.Zero
	}
	return profit.DivRound(investment, 4).Mul(hundred)
}

func countByStatus(bets []models.Bet, status models.BetStatus) int {
	n := 0
	for _, b := range bets {
		if b.Status == status {
			n++
		}
	}
	return n
}

func winRatesByType(bets []models.Bet) map[models.BetType]decimal.Decimal {
	totals := map[models.BetType]int64{}
	wins := map[models.BetType]int64{}
	for _, b := range bets {
		totals[b.BetType]++
		if b.Status == models.BetStatusWon {
			wins[b.BetType]++
		}
	}
	rates := make(map[models.BetType]decimal.Decimal, len(totals))
	for betType, total := range totals {
		if total == 0 {
			rates[betType] = decimal.Zero
			continue
		}
		rates[betType] = decimal.NewFromInt(wins[betType]).
			DivRound(decimal.NewFromInt(total), 4).
			Mul(hundred)
	}
	return rates
}

// rollingAverage sums realized profit of bets placed within the last `days`
// days and divides by the window length, not the bet count: the result is an
// average daily rate, not an average per bet.
func rollingAverage(bets []models.Bet, days int, now time.Time) decimal.Decimal {
	cutoff := startOfDay(now.AddDate(0, 0, -days))
	period := decimal.Zero
	for _, b := range bets {
		if !b.PlacedAt.After(cutoff) {
			continue
		}
		if b.Status == models.BetStatusPending {
			continue
		}
		if b.FinalProfit != nil {
			period = period.Add(*b.FinalProfit)
		}
	}
	return period.DivRound(decimal.NewFromInt(int64(days)), 2)
}

func analyzeStreaks(bets []models.Bet) string {
	settled := make([]models.Bet, 0, len(bets))
	for _, b := range bets {
		if (b.Status == models.BetStatusWon || b.Status == models.BetStatusLost) && b.SettledAt != nil {
			settled = append(settled, b)
		}
	}
	if len(settled) == 0 {
		return "No active streak"
	}
	sort.SliceStable(settled, func(i, j int) bool {
		return settled[i].SettledAt.Before(*settled[j].SettledAt)
	})

	maxWin, maxLoss, run := 0, 0, 0
	var last models.BetStatus
	for _, b := range settled {
		if b.Status != last {
			last = b.Status
			run = 1
		} else {
			run++
		}
		if last == models.BetStatusWon && run > maxWin {
			maxWin = run
		} else if last == models.BetStatusLost && run > maxLoss {
			maxLoss = run
		}
	}

	current := settled[len(settled)-1].Status
	currentRun := 0
	for i := len(settled) - 1; i >= 0; i-- {
		if settled[i].Status != current {
			break
		}
		currentRun++
	}
	label := "Win"
	if current == models.BetStatusLost {
		label = "Loss"
	}
	return fmt.Sprintf("Current: %d %s | Max Win: %d | Max Loss: %d", currentRun, label, maxWin, maxLoss)
}

// sharpeRatio is the population mean over the population standard deviation
// of realized profits, zero when fewer than two samples or when the profits
// do not vary.
func sharpeRatio(bets []models.Bet) decimal.Decimal {
	var profits []decimal.Decimal
	for _, b := range bets {
		if b.Status == models.BetStatusPending || b.FinalProfit == nil {
			continue
		}
		profits = append(profits, *b.FinalProfit)
	}
	if len(profits) < 2 {
		return decimal.Zero
	}

	n := decimal.NewFromInt(int64(len(profits)))
	sum := decimal.Zero
	for _, p := range profits {
		sum = sum.Add(p)
	}
	mean := sum.DivRound(n, 4)

	sumSq := decimal.Zero
	for _, p := range profits {
		d := p.Sub(mean)
		sumSq = sumSq.Add(d.Mul(d))
	}
	variance := sumSq.DivRound(n, 4)
	stdDev := decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
	if stdDev.IsZero() {
		return decimal.Zero
	}
	return mean.DivRound(stdDev, 4)
}

func profitBySport(bets []models.Bet) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, b := range bets {
		if b.Status == models.BetStatusPending || b.FinalProfit == nil || b.Sport == "" {
			continue
		}
		out[b.Sport] = out[b.Sport].Add(*b.FinalProfit)
	}
	return out
}

func dailyProfits(bets []models.Bet) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, b := range bets {
		if b.Status == models.BetStatusPending || b.SettledAt == nil || b.FinalProfit == nil {
			continue
		}
		day := b.SettledAt.Format("2006-01-02")
		out[day] = out[day].Add(*b.FinalProfit)
	}
	return out
}

// equityCurve emits one point per distinct settlement date, ascending, each
// carrying the cumulative realized profit up to and including that date.
func equityCurve(bets []models.Bet) []EquityCurvePoint {
	daily := dailyProfits(bets)
	if len(daily) == 0 {
		return nil
	}
	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]EquityCurvePoint, 0, len(days))
	running := decimal.Zero
	for _, day := range days {
		running = running.Add(daily[day])
		points = append(points, EquityCurvePoint{Date: day, CumulativeProfit: running})
	}
	return points
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
