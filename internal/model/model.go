// Package model defines the core domain types shared across the coach engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one record from the Deriv transaction stream.
// Amount is negative for purchases (money leaves the account) and
// positive for settlements (payout, possibly zero).
type Transaction struct {
	Action          string          `json:"action"` // "buy" or "sell"
	Amount          decimal.Decimal `json:"amount"`
	Balance         decimal.Decimal `json:"balance"`
	ContractID      int64           `json:"contract_id"`
	DisplayName     string          `json:"display_name"`
	TransactionID   int64           `json:"transaction_id"`
	TransactionTime int64           `json:"transaction_time"` // epoch seconds
}

// OpenContract is an in-flight purchase awaiting settlement.
// Owned exclusively by the session reconciler, keyed by contract ID.
type OpenContract struct {
	BuyAmount    decimal.Decimal
	Instrument   string
	PurchaseTime int64 // epoch seconds
}

// Outcome classifies a settled trade.
type Outcome int

const (
	OutcomeWin Outcome = iota
	OutcomeLoss
	OutcomeBreakeven
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLoss:
		return "loss"
	default:
		return "breakeven"
	}
}

// RealizedTrade is the result of matching a sell against its buy.
// Estimated marks outcomes produced by the missing-purchase heuristic
// rather than an exact buy/sell pair.
type RealizedTrade struct {
	ContractID int64
	Instrument string
	Profit     decimal.Decimal // sell amount - buy amount
	AbsPnL     decimal.Decimal
	Outcome    Outcome
	Estimated  bool
	SettledAt  time.Time
}

// SessionState is the mutable record for one monitoring session.
// Balance is display-only; win/loss classification never derives from it.
type SessionState struct {
	SessionID    string          `json:"session_id"`
	Balance      decimal.Decimal `json:"balance"`
	Currency     string          `json:"currency"`
	StartBalance decimal.Decimal `json:"session_start_balance"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	Streak       int             `json:"streak"` // positive = win run, negative = loss run
	LastLossTime time.Time       `json:"-"`
	HasPriorLoss bool            `json:"-"`
	StartedAt    time.Time       `json:"started_at"`
}

// TotalTrades is the number of counted trades (breakevens excluded).
func (s SessionState) TotalTrades() int {
	return s.Wins + s.Losses
}

// Tier is the severity implied by a loss relative to session-start capital.
type Tier int

const (
	TierNone Tier = iota
	TierWarning
	TierAlert
)

func (t Tier) String() string {
	switch t {
	case TierWarning:
		return "warning"
	case TierAlert:
		return "alert"
	default:
		return "none"
	}
}

// PatternSignal is the pattern detector's verdict for one loss.
// Computed fresh per loss; never stored.
type PatternSignal struct {
	RevengeTrading bool
	LossPercent    decimal.Decimal // fraction of session-start balance, 0..1
	Tier           Tier
}

// SessionRecord is the persisted form of a monitoring session.
type SessionRecord struct {
	SessionID      string          `json:"session_id" db:"session_id"`
	InitialBalance decimal.Decimal `json:"initial_balance" db:"initial_balance"`
	Currency       string          `json:"currency" db:"currency"`
	Wins           int             `json:"wins" db:"wins"`
	Losses         int             `json:"losses" db:"losses"`
	Streak         int             `json:"streak" db:"streak"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	StartedAt      time.Time       `json:"started_at" db:"started_at"`
}

// EventRecord is an immutable persisted coaching event.
// EventType is "win", "loss", or "pattern_alert"; connects are recorded
// as the session row itself.
type EventRecord struct {
	ID          string          `json:"id" db:"id"`
	SessionID   string          `json:"session_id" db:"session_id"`
	EventType   string          `json:"event_type" db:"event_type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	Message     string          `json:"message" db:"message"`
	LossPercent decimal.Decimal `json:"loss_percent" db:"loss_percent"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}
