// Package ledger implements FIFO lot-level position accounting for two
// independent books (long and short), including the today/yesterday split
// that selects exchange fee tiers.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tickledger/internal/domain"
	"tickledger/internal/fee"
)

// Recorder receives every fill the ledger produces, in order.
type Recorder interface {
	Append(f domain.Fill)
}

type book struct {
	side domain.Side
	pos  int
	lots lotQueue
}

// closeLeg is one fee-tier slice of a reduction.
type closeLeg struct {
	tier domain.FeeTier
	qty  int
}

// Ledger owns both books, the yesterday-position counter and the realized
// and unrealized accumulators for one (instrument, account) run. It is not
// safe for concurrent use.
type Ledger struct {
	rc   *domain.RunContext
	fees *fee.Calculator
	rec  Recorder

	long  book
	short book

	yesterday   int
	openedToday int

	realized   float64
	unrealized float64
	lastPrice  float64
	paid       fee.Breakdown

	orderSeq int64
	now      time.Time
}

// New creates an empty ledger bound to rc. Fills are priced with fees and
// appended to rec.
func New(rc *domain.RunContext, fees *fee.Calculator, rec Recorder) *Ledger {
	return &Ledger{
		rc:    rc,
		fees:  fees,
		rec:   rec,
		long:  book{side: domain.SideLong},
		short: book{side: domain.SideShort},
	}
}

// ---------------------------------------------------------------------------
// State accessors
// ---------------------------------------------------------------------------

// LongPos returns the open long quantity.
func (l *Ledger) LongPos() int { return l.long.pos }

// ShortPos returns the open short quantity.
func (l *Ledger) ShortPos() int { return l.short.pos }

// Position returns the open quantity of side.
func (l *Ledger) Position(side domain.Side) int { return l.book(side).pos }

// Gross returns the total open quantity across both books.
func (l *Ledger) Gross() int { return l.long.pos + l.short.pos }

// Flat reports whether both books are empty.
func (l *Ledger) Flat() bool { return l.Gross() == 0 }

// Yesterday returns the remaining carried-over quantity.
func (l *Ledger) Yesterday() int { return l.yesterday }

// OpenedToday returns the quantity opened since the last RollDay.
func (l *Ledger) OpenedToday() int { return l.openedToday }

// Realized returns cumulative realized PnL net of fees.
func (l *Ledger) Realized() float64 { return l.realized }

// Unrealized returns the mark-to-market PnL of open lots at the latest price.
func (l *Ledger) Unrealized() float64 { return l.unrealized }

// Equity returns capital plus realized and unrealized PnL.
func (l *Ledger) Equity() float64 { return l.rc.Capital + l.realized + l.unrealized }

// Lots returns the entry prices of side's open lots, oldest first.
func (l *Ledger) Lots(side domain.Side) []float64 { return l.book(side).lots.prices() }

// AvgPrice returns the mean entry price of side's open lots.
func (l *Ledger) AvgPrice(side domain.Side) float64 { return l.book(side).lots.avg() }

// FeesPaid returns the fees charged by every fill since New.
func (l *Ledger) FeesPaid() fee.Breakdown { return l.paid }

// CheckInvariants verifies that each lot queue matches its position.
func (l *Ledger) CheckInvariants() error {
	for _, b := range []*book{&l.long, &l.short} {
		if b.pos < 0 || b.lots.len() != b.pos {
			return fmt.Errorf("%w: %s position %d with %d lots", domain.ErrLedgerInconsistent, b.side, b.pos, b.lots.len())
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Clock and marking
// ---------------------------------------------------------------------------

// Mark sets the current timestamp and revalues open lots at price.
func (l *Ledger) Mark(ts time.Time, price float64) {
	l.now = ts
	l.lastPrice = price
	l.revalue()
}

// RollDay starts a new trading day: whatever was opened during the previous
// day becomes the yesterday position.
func (l *Ledger) RollDay() {
	l.yesterday = l.openedToday
	l.openedToday = 0
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// Open buys (long) or sells (short) qty lots at the quoted price. The fill is
// tagged "open" when the book is flat and "add" otherwise.
func (l *Ledger) Open(side domain.Side, price float64, qty int) error {
	b := l.book(side)
	if qty <= 0 {
		return &domain.PositionError{Op: "open", Side: side, Position: b.pos, Qty: qty}
	}
	action := domain.ActionOpen
	if b.pos > 0 {
		action = domain.ActionAdd
	}
	l.orderSeq++
	return l.open(b, action, l.slipped(side, true, price), qty)
}

// Add increases an existing position. It fails when side is flat.
func (l *Ledger) Add(side domain.Side, price float64, qty int) error {
	b := l.book(side)
	if b.pos <= 0 || qty <= 0 {
		return &domain.PositionError{Op: "add", Side: side, Position: b.pos, Qty: qty}
	}
	l.orderSeq++
	return l.open(b, domain.ActionAdd, l.slipped(side, true, price), qty)
}

// Reduce closes qty of side's oldest lots at the quoted price.
func (l *Ledger) Reduce(side domain.Side, price float64, qty int) error {
	b := l.book(side)
	if err := checkReduce("reduce", b, qty); err != nil {
		return err
	}
	l.orderSeq++
	return l.reduce(b, domain.ActionReduce, l.slipped(side, false, price), qty)
}

// Close flattens side at the quoted price.
func (l *Ledger) Close(side domain.Side, price float64) error {
	b := l.book(side)
	if err := checkReduce("close", b, b.pos); err != nil {
		return err
	}
	l.orderSeq++
	return l.reduce(b, domain.ActionClose, l.slipped(side, false, price), b.pos)
}

// Reverse reduces the opposite book by qty and opens side by qty, both at one
// slippage-adjusted price. Gross exposure is unchanged.
func (l *Ledger) Reverse(side domain.Side, price float64, qty int) error {
	target := l.book(side)
	opposite := l.book(side.Opposite())
	if err := checkReduce("reverse", opposite, qty); err != nil {
		return err
	}
	gross := l.Gross()
	p := l.slipped(side, true, price)

	l.orderSeq++
	if err := l.reduce(opposite, domain.ActionReverse, p, qty); err != nil {
		return err
	}
	if err := l.open(target, domain.ActionReverse, p, qty); err != nil {
		return err
	}
	if l.Gross() != gross {
		return fmt.Errorf("%w: reverse changed gross exposure %d -> %d", domain.ErrLedgerInconsistent, gross, l.Gross())
	}
	return nil
}

// CloseAll flattens the long book at the bid and the short book at the ask.
// Empty books are skipped.
func (l *Ledger) CloseAll(bid, ask float64) error {
	if l.Flat() {
		return nil
	}
	l.orderSeq++
	if l.long.pos > 0 {
		if err := l.reduce(&l.long, domain.ActionCloseAll, l.slipped(domain.SideLong, false, bid), l.long.pos); err != nil {
			return err
		}
	}
	if l.short.pos > 0 {
		if err := l.reduce(&l.short, domain.ActionCloseAll, l.slipped(domain.SideShort, false, ask), l.short.pos); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (l *Ledger) book(side domain.Side) *book {
	if side == domain.SideShort {
		return &l.short
	}
	return &l.long
}

func checkReduce(op string, b *book, qty int) error {
	if b.pos <= 0 || qty <= 0 || qty > b.pos {
		return &domain.PositionError{Op: op, Side: b.side, Position: b.pos, Qty: qty}
	}
	return nil
}

// slipped moves price against the trader by the configured slippage. Buying
// means opening long or closing short.
func (l *Ledger) slipped(side domain.Side, opening bool, price float64) float64 {
	offset := l.rc.SlippageTicks * l.rc.Instrument.TickSize
	buy := (side == domain.SideLong) == opening
	if buy {
		return price + offset
	}
	return price - offset
}

func (l *Ledger) open(b *book, action domain.Action, price float64, qty int) error {
	b.lots.push(price, qty)
	b.pos += qty
	l.openedToday += qty

	charge := l.fees.Fee(price, qty, domain.TierOpen)
	delta := fee.Round2(-charge.Total)
	l.realized += delta
	l.lastPrice = price
	l.revalue()

	l.record(b, action, domain.TierOpen, false, price, qty, charge, 0, delta)
	return l.CheckInvariants()
}

// reduce splits qty across the yesterday and today tiers and settles each
// slice against the oldest lots. The caller has validated qty.
func (l *Ledger) reduce(b *book, action domain.Action, price float64, qty int) error {
	var legs []closeLeg
	split := false
	switch {
	case l.yesterday == 0:
		legs = []closeLeg{{domain.TierCloseToday, qty}}
	case l.yesterday < qty:
		legs = []closeLeg{
			{domain.TierCloseYesterday, l.yesterday},
			{domain.TierCloseToday, qty - l.yesterday},
		}
		split = true
		l.yesterday = 0
	default:
		legs = []closeLeg{{domain.TierCloseYesterday, qty}}
		l.yesterday -= qty
	}

	for _, leg := range legs {
		if err := l.settle(b, action, leg, split, price); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) settle(b *book, action domain.Action, leg closeLeg, split bool, price float64) error {
	if b.lots.len() < leg.qty {
		return fmt.Errorf("%w: %s closing %d lots with only %d queued", domain.ErrLedgerInconsistent, b.side, leg.qty, b.lots.len())
	}
	entries := b.lots.pop(leg.qty)
	b.pos -= leg.qty
	if b.pos == 0 && b.lots.len() != 0 {
		return fmt.Errorf("%w: %s flat with %d lots queued", domain.ErrLedgerInconsistent, b.side, b.lots.len())
	}

	gross := decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(int64(leg.qty))).
		Sub(entries).
		Mul(decimal.NewFromFloat(l.rc.Instrument.Multiplier))
	if b.side == domain.SideShort {
		gross = gross.Neg()
	}
	grossPnL := gross.Round(2).InexactFloat64()

	charge := l.fees.Fee(price, leg.qty, leg.tier)
	delta := fee.Round2(grossPnL - charge.Total)
	l.realized += delta
	l.lastPrice = price
	l.revalue()

	l.record(b, action, leg.tier, split, price, leg.qty, charge, grossPnL, delta)
	return l.CheckInvariants()
}

// revalue recomputes unrealized PnL from the open lots at the latest price.
func (l *Ledger) revalue() {
	mult := decimal.NewFromFloat(l.rc.Instrument.Multiplier)
	p := decimal.NewFromFloat(l.lastPrice)

	total := decimal.Zero
	for _, b := range []*book{&l.long, &l.short} {
		if b.pos == 0 {
			continue
		}
		u := p.Mul(decimal.NewFromInt(int64(b.pos))).Sub(b.lots.sum()).Mul(mult)
		if b.side == domain.SideShort {
			u = u.Neg()
		}
		total = total.Add(u.Round(2))
	}
	l.unrealized = total.InexactFloat64()
}

func (l *Ledger) record(b *book, action domain.Action, tier domain.FeeTier, split bool, price float64, qty int, charge fee.Breakdown, gross, delta float64) {
	l.paid = l.paid.Add(charge)
	if l.rec == nil {
		return
	}
	l.rec.Append(domain.Fill{
		AccountID:   l.rc.AccountID,
		OrderID:     l.orderSeq,
		Timestamp:   l.now,
		Instrument:  l.rc.Instrument.Code,
		Price:       price,
		Side:        b.side,
		Action:      action,
		Tier:        tier,
		Split:       split,
		Qty:         qty,
		Value:       fee.Round2(price * float64(qty) * l.rc.Instrument.Multiplier),
		ExchangeFee: charge.Exchange,
		TotalFee:    charge.Total,
		LongPos:     l.long.pos,
		ShortPos:    l.short.pos,
		Unrealized:  l.unrealized,
		GrossPnL:    gross,
		RealizedPnL: delta,
		CumRealized: l.realized,
	})
}
