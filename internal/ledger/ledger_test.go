package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"tickledger/internal/domain"
	"tickledger/internal/fee"
	"tickledger/internal/settlement"
)

func newTestLedger(t *testing.T, fees domain.FeeSchedule, slippage float64) (*Ledger, *settlement.Recorder) {
	t.Helper()
	rc := &domain.RunContext{
		AccountID:     "acct-1",
		Capital:       100000,
		SlippageTicks: slippage,
		Instrument: domain.Instrument{
			Code:       "RB",
			TickSize:   1,
			Multiplier: 10,
			MarginRate: 0.1,
			Fees:       fees,
		},
	}
	rec := settlement.NewRecorder()
	l := New(rc, fee.NewCalculator(rc), rec)
	l.Mark(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), 100)
	return l, rec
}

func mustNil(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertLots(t *testing.T, l *Ledger) {
	t.Helper()
	if err := l.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenLongChargesOpenFee(t *testing.T) {
	l, rec := newTestLedger(t, domain.FeeSchedule{Open: 1.2, CloseToday: 1.2, CloseYesterday: 1.2}, 0)

	mustNil(t, l.Open(domain.SideLong, 100, 1))

	fills := rec.Fills()
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	if fills[0].ExchangeFee != 1.20 {
		t.Errorf("ExchangeFee = %v, want 1.20", fills[0].ExchangeFee)
	}
	if fills[0].Tag() != "open" {
		t.Errorf("Tag = %q, want open", fills[0].Tag())
	}
	if l.LongPos() != 1 {
		t.Errorf("LongPos = %d, want 1", l.LongPos())
	}
	if got := l.Lots(domain.SideLong); len(got) != 1 || got[0] != 100 {
		t.Errorf("Lots = %v, want [100]", got)
	}
	if l.Realized() != -1.20 {
		t.Errorf("Realized = %v, want -1.20", l.Realized())
	}
	assertLots(t, l)
}

func TestCloseLongTodayFIFO(t *testing.T) {
	l, rec := newTestLedger(t, domain.FeeSchedule{}, 0)

	mustNil(t, l.Open(domain.SideLong, 100, 1))
	mustNil(t, l.Add(domain.SideLong, 102, 1))
	if l.Yesterday() != 0 {
		t.Fatalf("Yesterday = %d, want 0", l.Yesterday())
	}

	mustNil(t, l.Close(domain.SideLong, 105))

	fills := rec.Fills()
	last := fills[len(fills)-1]
	if len(fills) != 3 {
		t.Fatalf("got %d fills, want 3", len(fills))
	}
	if last.Tier != domain.TierCloseToday {
		t.Errorf("Tier = %s, want close_today", last.Tier)
	}
	if last.GrossPnL != 80 {
		t.Errorf("GrossPnL = %v, want 80", last.GrossPnL)
	}
	if l.LongPos() != 0 || len(l.Lots(domain.SideLong)) != 0 {
		t.Errorf("position %d lots %v, want flat", l.LongPos(), l.Lots(domain.SideLong))
	}
	if l.Realized() != 80 {
		t.Errorf("Realized = %v, want 80", l.Realized())
	}
	assertLots(t, l)
}

func TestReduceSplitsYesterdayAndToday(t *testing.T) {
	l, rec := newTestLedger(t, domain.FeeSchedule{Open: 1, CloseToday: 3, CloseYesterday: 2}, 0)

	mustNil(t, l.Open(domain.SideLong, 100, 1))
	l.RollDay()
	mustNil(t, l.Add(domain.SideLong, 104, 2))
	if l.LongPos() != 3 || l.Yesterday() != 1 {
		t.Fatalf("setup: lpos=%d yesterday=%d, want 3 and 1", l.LongPos(), l.Yesterday())
	}
	before := rec.Len()

	mustNil(t, l.Reduce(domain.SideLong, 110, 2))

	fills := rec.Since(before)
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
	if fills[0].Tier != domain.TierCloseYesterday || fills[0].Qty != 1 {
		t.Errorf("first leg = %s x%d, want close_yesterday x1", fills[0].Tier, fills[0].Qty)
	}
	if fills[1].Tier != domain.TierCloseToday || fills[1].Qty != 1 {
		t.Errorf("second leg = %s x%d, want close_today x1", fills[1].Tier, fills[1].Qty)
	}
	if fills[0].TotalFee != 2 || fills[1].TotalFee != 3 {
		t.Errorf("fees = %v, %v, want 2 and 3", fills[0].TotalFee, fills[1].TotalFee)
	}
	if fills[0].OrderID != fills[1].OrderID {
		t.Errorf("sub-fills carry order ids %d and %d, want shared", fills[0].OrderID, fills[1].OrderID)
	}
	if fills[0].Tag() != "reduce-split" {
		t.Errorf("Tag = %q, want reduce-split", fills[0].Tag())
	}
	// FIFO: 100 then 104 are consumed.
	if fills[0].GrossPnL != 100 || fills[1].GrossPnL != 60 {
		t.Errorf("gross = %v, %v, want 100 and 60", fills[0].GrossPnL, fills[1].GrossPnL)
	}
	if l.Yesterday() != 0 || l.LongPos() != 1 {
		t.Errorf("yesterday=%d lpos=%d, want 0 and 1", l.Yesterday(), l.LongPos())
	}
	if got := l.Lots(domain.SideLong); len(got) != 1 || got[0] != 104 {
		t.Errorf("Lots = %v, want [104]", got)
	}
	// open 1 + add 2 + legs 2 and 3
	if paid := l.FeesPaid(); paid.Total != 8 || paid.Exchange != 8 {
		t.Errorf("FeesPaid = %+v, want 8 total", paid)
	}
	var sum float64
	for _, f := range rec.Fills() {
		sum += f.TotalFee
	}
	if l.FeesPaid().Total != fee.Round2(sum) {
		t.Errorf("FeesPaid total %v != fill fees %v", l.FeesPaid().Total, sum)
	}
	assertLots(t, l)
}

func TestReduceExactlyYesterdayIsSingleFill(t *testing.T) {
	l, rec := newTestLedger(t, domain.FeeSchedule{}, 0)

	mustNil(t, l.Open(domain.SideShort, 100, 2))
	l.RollDay()
	mustNil(t, l.Add(domain.SideShort, 98, 1))
	before := rec.Len()

	mustNil(t, l.Reduce(domain.SideShort, 95, 2))

	fills := rec.Since(before)
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	if fills[0].Tier != domain.TierCloseYesterday || fills[0].Split {
		t.Errorf("fill = %s split=%v, want close_yesterday unsplit", fills[0].Tier, fills[0].Split)
	}
	// Short profit: (100-95) * 2 * 10.
	if fills[0].GrossPnL != 100 {
		t.Errorf("GrossPnL = %v, want 100", fills[0].GrossPnL)
	}
	if l.Yesterday() != 0 {
		t.Errorf("Yesterday = %d, want 0", l.Yesterday())
	}
}

func TestReverseLongFromShort(t *testing.T) {
	l, rec := newTestLedger(t, domain.FeeSchedule{Open: 1, CloseToday: 1, CloseYesterday: 1}, 0)

	mustNil(t, l.Open(domain.SideShort, 100, 4))
	before := rec.Len()

	mustNil(t, l.Reverse(domain.SideLong, 99, 4))

	fills := rec.Since(before)
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
	if fills[0].Side != domain.SideShort || !fills[0].Closing() {
		t.Errorf("first leg = %s %s, want short close", fills[0].Side, fills[0].Tier)
	}
	if fills[1].Side != domain.SideLong || fills[1].Tier != domain.TierOpen {
		t.Errorf("second leg = %s %s, want long open", fills[1].Side, fills[1].Tier)
	}
	if fills[0].Price != fills[1].Price {
		t.Errorf("legs priced %v and %v, want shared", fills[0].Price, fills[1].Price)
	}
	if l.ShortPos() != 0 || l.LongPos() != 4 {
		t.Errorf("spos=%d lpos=%d, want 0 and 4", l.ShortPos(), l.LongPos())
	}
	if l.Gross() != 4 {
		t.Errorf("Gross = %d, want 4", l.Gross())
	}
	assertLots(t, l)
}

func TestReverseSharesSlippedPrice(t *testing.T) {
	l, rec := newTestLedger(t, domain.FeeSchedule{}, 2)

	mustNil(t, l.Open(domain.SideLong, 100, 1))
	if got := rec.Fills()[0].Price; got != 102 {
		t.Fatalf("long open price = %v, want 102", got)
	}
	mustNil(t, l.Reverse(domain.SideShort, 110, 1))

	fills := rec.Fills()
	if fills[1].Price != 108 || fills[2].Price != 108 {
		t.Errorf("reverse legs = %v, %v, want 108 for both", fills[1].Price, fills[2].Price)
	}
}

func TestCloseAllBothBooks(t *testing.T) {
	l, rec := newTestLedger(t, domain.FeeSchedule{}, 0)

	mustNil(t, l.Open(domain.SideLong, 100, 5))
	mustNil(t, l.Open(domain.SideShort, 100, 3))
	before := rec.Len()

	mustNil(t, l.CloseAll(99, 101))

	fills := rec.Since(before)
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
	if fills[0].Price != 99 || fills[1].Price != 101 {
		t.Errorf("prices = %v, %v, want bid 99 and ask 101", fills[0].Price, fills[1].Price)
	}
	if !l.Flat() {
		t.Errorf("lpos=%d spos=%d, want flat", l.LongPos(), l.ShortPos())
	}
	if fills[1].Tag() != "close-all-today" {
		t.Errorf("Tag = %q, want close-all-today", fills[1].Tag())
	}
	assertLots(t, l)
}

func TestCloseAllFlatIsNoop(t *testing.T) {
	l, rec := newTestLedger(t, domain.FeeSchedule{}, 0)
	mustNil(t, l.CloseAll(99, 101))
	if rec.Len() != 0 {
		t.Errorf("got %d fills, want 0", rec.Len())
	}
}

func TestInvalidPositionState(t *testing.T) {
	l, _ := newTestLedger(t, domain.FeeSchedule{}, 0)
	mustNil(t, l.Open(domain.SideLong, 100, 1))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"reduce flat short", func() error { return l.Reduce(domain.SideShort, 100, 1) }},
		{"close flat short", func() error { return l.Close(domain.SideShort, 100) }},
		{"reduce too many", func() error { return l.Reduce(domain.SideLong, 100, 2) }},
		{"add flat short", func() error { return l.Add(domain.SideShort, 100, 1) }},
		{"reverse without opposite", func() error { return l.Reverse(domain.SideLong, 100, 1) }},
		{"open zero", func() error { return l.Open(domain.SideLong, 100, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, domain.ErrInvalidPositionState) {
				t.Fatalf("err = %v, want ErrInvalidPositionState", err)
			}
			var pe *domain.PositionError
			if !errors.As(err, &pe) {
				t.Errorf("err %T is not *PositionError", err)
			}
		})
	}
	if l.LongPos() != 1 {
		t.Errorf("failed actions mutated state: lpos=%d", l.LongPos())
	}
}

func TestUnrealizedFollowsMark(t *testing.T) {
	l, _ := newTestLedger(t, domain.FeeSchedule{}, 0)

	mustNil(t, l.Open(domain.SideLong, 100, 2))
	mustNil(t, l.Open(domain.SideShort, 104, 1))

	l.Mark(time.Date(2024, 3, 1, 9, 1, 0, 0, time.UTC), 103)
	// long (103-100)*2*10 = 60, short -(103-104)*1*10 = 10
	if l.Unrealized() != 70 {
		t.Errorf("Unrealized = %v, want 70", l.Unrealized())
	}
	if l.AvgPrice(domain.SideLong) != 100 {
		t.Errorf("AvgPrice = %v, want 100", l.AvgPrice(domain.SideLong))
	}
	if l.Equity() != 100070 {
		t.Errorf("Equity = %v, want 100070", l.Equity())
	}
}

func TestRollDayCarriesOpenedToday(t *testing.T) {
	l, _ := newTestLedger(t, domain.FeeSchedule{}, 0)

	mustNil(t, l.Open(domain.SideLong, 100, 2))
	mustNil(t, l.Open(domain.SideShort, 100, 1))
	if l.OpenedToday() != 3 {
		t.Fatalf("OpenedToday = %d, want 3", l.OpenedToday())
	}
	l.RollDay()
	if l.Yesterday() != 3 || l.OpenedToday() != 0 {
		t.Errorf("yesterday=%d opened=%d, want 3 and 0", l.Yesterday(), l.OpenedToday())
	}
	l.RollDay()
	if l.Yesterday() != 0 {
		t.Errorf("Yesterday after idle day = %d, want 0", l.Yesterday())
	}
}

func TestReplayMatchesRealized(t *testing.T) {
	l, rec := newTestLedger(t, domain.FeeSchedule{Open: 1.5e-4, CloseToday: 3e-4, CloseYesterday: 1e-4}, 1)

	steps := []func() error{
		func() error { return l.Open(domain.SideLong, 3512, 2) },
		func() error { return l.Open(domain.SideShort, 3520, 1) },
		func() error { return l.Reduce(domain.SideLong, 3530, 1) },
		func() error { l.RollDay(); return nil },
		func() error { return l.Add(domain.SideLong, 3501, 2) },
		func() error { return l.Reverse(domain.SideShort, 3499, 1) },
		func() error { return l.CloseAll(3507, 3509) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		assertLots(t, l)
	}

	fills := rec.Fills()
	replay := settlement.Replay(fills)
	for i, f := range fills {
		if f.CumRealized != replay[i] {
			t.Errorf("fill %d: CumRealized %v, replay %v", i, f.CumRealized, replay[i])
		}
	}
	if got := replay[len(replay)-1]; math.Abs(got-l.Realized()) > 1e-9 {
		t.Errorf("replay total %v, ledger %v", got, l.Realized())
	}
	if err := settlement.Verify(fills); err != nil {
		t.Errorf("Verify: %v", err)
	}
}
