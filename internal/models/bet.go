package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BetType string

const (
	BetTypeSingle BetType = "SINGLE"
	BetTypeParlay BetType = "PARLAY"
)

type BetStatus string

const (
	BetStatusPending BetStatus = "PENDING"
	BetStatusWon     BetStatus = "WON"
	BetStatusLost    BetStatus = "LOST"
	BetStatusVoid    BetStatus = "VOID"
)

// Terminal reports whether the status ends a bet's lifecycle. Settlement is
// one-way: no transition leaves a terminal state.
func (s BetStatus) Terminal() bool {
	return s == BetStatusWon || s == BetStatusLost || s == BetStatusVoid
}

// Bet is the single source of truth for the ledger. Parlay legs are stored
// as child rows with a nil stake; the parent owns the stake for the whole
// parlay.
type Bet struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID uint64 `gorm:"not null;index"`

	BetType BetType   `gorm:"type:varchar(10);not null"`
	Status  BetStatus `gorm:"type:varchar(10);not null;index"`

	Stake             *decimal.Decimal `gorm:"type:numeric(10,2)"`
	Odds              decimal.Decimal  `gorm:"type:numeric(10,2);not null"`
	OddsType          string           `gorm:"type:varchar(10);not null;default:DECIMAL"`
	PotentialWinnings *decimal.Decimal `gorm:"type:numeric(10,2)"`
	FinalProfit       *decimal.Decimal `gorm:"type:numeric(10,2)"`

	Sport          string     `gorm:"type:varchar(50)"`
	EventName      string     `gorm:"type:varchar(200)"`
	EventDate      *time.Time `gorm:"type:timestamptz"`
	MarketType     string     `gorm:"type:varchar(30)"`
	Selection      string     `gorm:"type:varchar(100)"`
	Line           string     `gorm:"type:varchar(20)"`
	Bookmaker      string     `gorm:"type:varchar(50)"`
	ExternalBetID  string     `gorm:"type:varchar(100)"`
	ExternalSource string     `gorm:"type:varchar(50)"`
	Notes          string     `gorm:"type:text"`

	PlacedAt  time.Time  `gorm:"type:timestamptz;not null;index"`
	SettledAt *time.Time `gorm:"type:timestamptz;index"`

	ParentBetID *uint64 `gorm:"index"`
	ChildBets   []Bet   `gorm:"foreignKey:ParentBetID;constraint:OnDelete:CASCADE"`
}

func (Bet) TableName() string {
	return "bets"
}

// RecalcPotentialWinnings rederives potential winnings from stake and odds.
// Called after every change to either field so the value is never stale.
// Legs carry no stake and therefore no potential winnings of their own.
func (b *Bet) RecalcPotentialWinnings() {
	if b.Stake == nil {
		b.PotentialWinnings = nil
		return
	}
	pw := b.Stake.Mul(b.Odds).Round(2)
	b.PotentialWinnings = &pw
}

// TopLevel reports whether the bet should surface in listings and
// statistics. Parlay legs are hidden to avoid double counting.
func (b *Bet) TopLevel() bool {
	return b.ParentBetID == nil
}
