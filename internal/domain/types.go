// Package domain defines the core value types shared across the engine:
// instruments, ticks, signals, fill records and the per-run context.
package domain

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Sides, fee tiers and actions
// ---------------------------------------------------------------------------

// Side identifies one of the two independent position books.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the other book.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// FeeTier selects which exchange rate applies to a fill.
type FeeTier string

const (
	TierOpen           FeeTier = "open"
	TierCloseToday     FeeTier = "close_today"
	TierCloseYesterday FeeTier = "close_yesterday"
)

// Closing reports whether the tier belongs to a position-reducing fill.
func (t FeeTier) Closing() bool {
	return t == TierCloseToday || t == TierCloseYesterday
}

// Action is the logical ledger operation that produced a fill.
type Action string

const (
	ActionOpen     Action = "open"
	ActionAdd      Action = "add"
	ActionReduce   Action = "reduce"
	ActionClose    Action = "close"
	ActionReverse  Action = "reverse"
	ActionCloseAll Action = "close_all"
)

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// Signal codes emitted by the strategy for the long book. The short book uses
// the negated values.
const (
	SignalNone    = 0
	SignalOpen    = 1
	SignalReduce  = 3
	SignalClose   = 4
	SignalReverse = 5
	SignalFlatten = 6
)

// BookCode normalises a raw book signal to the long-book vocabulary. Codes
// with the wrong sign for the book are treated as SignalNone.
func BookCode(side Side, raw int) int {
	if side == SideShort {
		raw = -raw
	}
	if raw < 0 {
		return SignalNone
	}
	return raw
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Tick is one best-quote row together with the strategy's book signals.
type Tick struct {
	Timestamp   time.Time
	Bid         float64
	Ask         float64
	BidSize     int64
	AskSize     int64
	Mid         float64
	LongSignal  int
	ShortSignal int
}

// TradingDay holds one session of ticks for a single instrument, materialised
// in memory, along with the daily price limits.
type TradingDay struct {
	Date       string // YYYY-MM-DD
	Instrument string
	UpperLimit float64
	LowerLimit float64
	Ticks      []Tick
}

// ---------------------------------------------------------------------------
// Reference data
// ---------------------------------------------------------------------------

// FeeSchedule holds the three exchange fee rates. A rate whose magnitude is
// below 1 is a fraction of notional; otherwise it is a flat charge per lot.
type FeeSchedule struct {
	Open           float64 `yaml:"open"`
	CloseToday     float64 `yaml:"close_today"`
	CloseYesterday float64 `yaml:"close_yesterday"`
}

// Rate returns the configured rate for tier.
func (f FeeSchedule) Rate(tier FeeTier) float64 {
	switch tier {
	case TierCloseToday:
		return f.CloseToday
	case TierCloseYesterday:
		return f.CloseYesterday
	default:
		return f.Open
	}
}

// Instrument is the static reference data needed to account for one contract.
type Instrument struct {
	Code       string      `yaml:"code"`
	TickSize   float64     `yaml:"tick_size"`
	Multiplier float64     `yaml:"multiplier"`
	MarginRate float64     `yaml:"margin_rate"`
	Fees       FeeSchedule `yaml:"fees"`
}

// ---------------------------------------------------------------------------
// Settlement
// ---------------------------------------------------------------------------

// Fill is one immutable settlement row. A logical action that splits across
// fee tiers, or a reverse, produces more than one Fill sharing an OrderID.
type Fill struct {
	AccountID   string
	OrderID     int64
	Timestamp   time.Time
	Instrument  string
	Price       float64
	Side        Side
	Action      Action
	Tier        FeeTier
	Split       bool // part of a yesterday/today split
	Qty         int
	Value       float64
	ExchangeFee float64
	TotalFee    float64
	LongPos     int
	ShortPos    int
	Unrealized  float64
	GrossPnL    float64 // realized before fees, zero for opening legs
	RealizedPnL float64 // GrossPnL - TotalFee
	CumRealized float64
}

// Closing reports whether the fill reduced a position.
func (f Fill) Closing() bool {
	return f.Tier.Closing()
}

// Tag renders the action label used in reports, e.g. "reduce-yesterday",
// "reduce-split" or "close-all-today".
func (f Fill) Tag() string {
	base := string(f.Action)
	if f.Action == ActionCloseAll {
		base = "close-all"
	}
	switch {
	case f.Tier == TierOpen:
		if f.Action == ActionReverse {
			return "reverse-open"
		}
		return base
	case f.Split:
		return base + "-split"
	case f.Tier == TierCloseYesterday:
		return base + "-yesterday"
	default:
		return base + "-today"
	}
}

// String implements fmt.Stringer for log output.
func (f Fill) String() string {
	return fmt.Sprintf("#%d %s %s %s %d@%.2f fee=%.2f pnl=%.2f l=%d s=%d",
		f.OrderID, f.Instrument, f.Side, f.Tag(), f.Qty, f.Price, f.TotalFee, f.RealizedPnL, f.LongPos, f.ShortPos)
}

// ---------------------------------------------------------------------------
// Run context
// ---------------------------------------------------------------------------

// RunContext is the explicit mutable state of one (instrument, account) run.
// It persists across trading days and is owned by a single engine.
type RunContext struct {
	AccountID      string
	Instrument     Instrument
	Capital        float64
	SlippageTicks  float64
	BrokerRate     float64
	ExchangeRebate float64
	BrokerRebate   float64

	Halted      bool
	HaltStart   float64 // session seconds at which the halt began
	HaltElapsed float64 // session seconds spent halted
	Terminated  bool
}

// ResetDay clears the per-session halt state. Termination is permanent.
func (rc *RunContext) ResetDay() {
	rc.Halted = false
	rc.HaltStart = 0
	rc.HaltElapsed = 0
}
