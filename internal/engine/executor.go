package engine

import (
	"math"

	"tickledger/internal/domain"
	"tickledger/internal/ledger"
)

// Execution is one ledger action taken by the executor.
type Execution struct {
	Side   domain.Side
	Action domain.Action
}

// Executor maps each book's signal code, the position on that book and the
// affordability headroom to at most one ledger action per book.
type Executor struct {
	rc      *domain.RunContext
	ledger  *ledger.Ledger
	lotSize int
}

// NewExecutor creates an Executor trading lotSize lots per action. A
// non-positive lotSize means 1.
func NewExecutor(rc *domain.RunContext, l *ledger.Ledger, lotSize int) *Executor {
	if lotSize <= 0 {
		lotSize = 1
	}
	return &Executor{rc: rc, ledger: l, lotSize: lotSize}
}

// MaxAffordable returns how many lots the account could hold in total at
// price, given current equity and the margin already in use.
func (x *Executor) MaxAffordable(price float64) int {
	inst := x.rc.Instrument
	perLot := inst.MarginRate * inst.Multiplier * price
	if perLot <= 0 {
		return 0
	}
	used := float64(x.ledger.Gross()) * perLot
	free := x.ledger.Equity() - used
	return int(math.Floor(free / perLot))
}

// Execute evaluates the long book then the short book for one tick. Headroom
// is sized once, at the mid price, before either book trades.
func (x *Executor) Execute(t domain.Tick) ([]Execution, error) {
	headroom := x.ledger.Gross() < x.MaxAffordable(t.Mid)

	var done []Execution
	for _, side := range []domain.Side{domain.SideLong, domain.SideShort} {
		raw := t.LongSignal
		if side == domain.SideShort {
			raw = t.ShortSignal
		}
		action, err := x.step(side, domain.BookCode(side, raw), headroom, t)
		if err != nil {
			return done, err
		}
		if action != "" {
			done = append(done, Execution{Side: side, Action: action})
		}
	}
	return done, nil
}

// quotes returns the price and size this book buys at (open, add,
// reverse-open) and sells at (reduce, close). Long buys at the ask; short
// sells to open at the bid.
func quotes(side domain.Side, t domain.Tick) (openPx float64, openSz int64, closePx float64, closeSz int64) {
	if side == domain.SideLong {
		return t.Ask, t.AskSize, t.Bid, t.BidSize
	}
	return t.Bid, t.BidSize, t.Ask, t.AskSize
}

func (x *Executor) step(side domain.Side, code int, headroom bool, t domain.Tick) (domain.Action, error) {
	pos := x.ledger.Position(side)
	openPx, openSz, closePx, closeSz := quotes(side, t)
	qty := x.lotSize
	if pos > 0 && qty > pos {
		qty = pos
	}

	switch {
	case code == domain.SignalOpen && headroom && openSz > 0:
		if pos == 0 {
			return domain.ActionOpen, x.ledger.Open(side, openPx, x.lotSize)
		}
		return domain.ActionAdd, x.ledger.Add(side, openPx, x.lotSize)

	case pos == 0:
		return "", nil

	case code == domain.SignalReduce && closeSz > 0:
		return domain.ActionReduce, x.ledger.Reduce(side, closePx, qty)

	case code == domain.SignalClose && closeSz > 0:
		return domain.ActionClose, x.ledger.Close(side, closePx)

	case code == domain.SignalReverse && closeSz > 0:
		// The opposite book opens on the same quote this book closes on.
		return domain.ActionReverse, x.ledger.Reverse(side.Opposite(), closePx, qty)
	}
	return "", nil
}
