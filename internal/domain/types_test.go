package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Fill can be instantiated with zero values.
	fill := Fill{}
	if fill.AccountID != "" || fill.Instrument != "" {
		t.Error("expected empty AccountID/Instrument for zero-value Fill")
	}
	if !fill.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Fill")
	}
	if fill.Qty != 0 || fill.LongPos != 0 || fill.ShortPos != 0 {
		t.Error("expected zero Qty/LongPos/ShortPos for zero-value Fill")
	}

	// Verify enum constants are defined correctly.
	if SideLong != "long" || SideShort != "short" {
		t.Error("Side constants have unexpected values")
	}
	if SideLong.Opposite() != SideShort || SideShort.Opposite() != SideLong {
		t.Error("Opposite does not swap books")
	}
	if !TierCloseToday.Closing() || !TierCloseYesterday.Closing() || TierOpen.Closing() {
		t.Error("FeeTier.Closing misclassifies tiers")
	}

	fees := FeeSchedule{Open: 1.2, CloseToday: 2.4, CloseYesterday: 0.6}
	if fees.Rate(TierOpen) != 1.2 || fees.Rate(TierCloseToday) != 2.4 || fees.Rate(TierCloseYesterday) != 0.6 {
		t.Errorf("FeeSchedule.Rate returned unexpected values for %+v", fees)
	}
}

func TestBookCode(t *testing.T) {
	tests := []struct {
		name string
		side Side
		raw  int
		want int
	}{
		{"long open", SideLong, 1, SignalOpen},
		{"long close", SideLong, 4, SignalClose},
		{"long ignores short code", SideLong, -3, SignalNone},
		{"short open", SideShort, -1, SignalOpen},
		{"short reverse", SideShort, -5, SignalReverse},
		{"short ignores long code", SideShort, 4, SignalNone},
		{"none", SideShort, 0, SignalNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BookCode(tt.side, tt.raw); got != tt.want {
				t.Errorf("BookCode(%s, %d) = %d, want %d", tt.side, tt.raw, got, tt.want)
			}
		})
	}
}

func TestFillTag(t *testing.T) {
	tests := []struct {
		fill Fill
		want string
	}{
		{Fill{Action: ActionOpen, Tier: TierOpen}, "open"},
		{Fill{Action: ActionAdd, Tier: TierOpen}, "add"},
		{Fill{Action: ActionReduce, Tier: TierCloseToday}, "reduce-today"},
		{Fill{Action: ActionReduce, Tier: TierCloseYesterday}, "reduce-yesterday"},
		{Fill{Action: ActionReduce, Tier: TierCloseYesterday, Split: true}, "reduce-split"},
		{Fill{Action: ActionClose, Tier: TierCloseToday}, "close-today"},
		{Fill{Action: ActionReverse, Tier: TierCloseToday}, "reverse-today"},
		{Fill{Action: ActionReverse, Tier: TierOpen}, "reverse-open"},
		{Fill{Action: ActionCloseAll, Tier: TierCloseYesterday}, "close-all-yesterday"},
	}
	for _, tt := range tests {
		if got := tt.fill.Tag(); got != tt.want {
			t.Errorf("Tag() for %s/%s = %q, want %q", tt.fill.Action, tt.fill.Tier, got, tt.want)
		}
	}
}

func TestZipTicks(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	cols := TickColumns{
		Timestamps: []time.Time{t0, t0.Add(time.Second)},
		Bid:        []float64{100, 101},
		Ask:        []float64{101, 102},
		BidSize:    []int64{5, 5},
		AskSize:    []int64{3, 3},
		Mid:        []float64{100.5, 101.5},
		LongSignal: []int{1, 0},
	}

	ticks, err := ZipTicks(cols)
	if err != nil {
		t.Fatalf("ZipTicks returned error: %v", err)
	}
	if len(ticks) != 2 {
		t.Fatalf("ZipTicks returned %d rows, want 2", len(ticks))
	}
	if ticks[0].LongSignal != 1 || ticks[1].ShortSignal != 0 {
		t.Errorf("signals not carried over: %+v", ticks)
	}

	cols.Ask = cols.Ask[:1]
	if _, err := ZipTicks(cols); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("ZipTicks with short ask column error = %v, want ErrLengthMismatch", err)
	}
}

func TestTradingDayValidate(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day := TradingDay{
		Date:  "2024-03-01",
		Ticks: []Tick{{Timestamp: t0}, {Timestamp: t0}, {Timestamp: t0.Add(time.Second)}},
	}
	if err := day.Validate(); err != nil {
		t.Fatalf("Validate returned error for ordered ticks: %v", err)
	}

	day.Ticks = append(day.Ticks, Tick{Timestamp: t0.Add(-time.Second)})
	if err := day.Validate(); !errors.Is(err, ErrUnorderedTicks) {
		t.Errorf("Validate error = %v, want ErrUnorderedTicks", err)
	}
}

func TestTradingDayValidateRejectsNonFinite(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	good := Tick{Timestamp: t0, Bid: 99.5, Ask: 100.5, Mid: 100}
	tests := []struct {
		name   string
		mutate func(d *TradingDay)
	}{
		{"nan mid", func(d *TradingDay) { d.Ticks[1].Mid = math.NaN() }},
		{"inf ask", func(d *TradingDay) { d.Ticks[1].Ask = math.Inf(1) }},
		{"-inf bid", func(d *TradingDay) { d.Ticks[0].Bid = math.Inf(-1) }},
		{"nan upper limit", func(d *TradingDay) { d.UpperLimit = math.NaN() }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			day := TradingDay{Date: "2024-03-01", UpperLimit: 110, LowerLimit: 90, Ticks: []Tick{good, good}}
			if err := day.Validate(); err != nil {
				t.Fatalf("Validate on clean day: %v", err)
			}
			tc.mutate(&day)
			if err := day.Validate(); !errors.Is(err, ErrInvalidQuote) {
				t.Errorf("Validate error = %v, want ErrInvalidQuote", err)
			}
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	var err error = &PositionError{Op: "reduce", Side: SideLong, Position: 0, Qty: 1}
	if !errors.Is(err, ErrInvalidPositionState) {
		t.Error("PositionError should unwrap to ErrInvalidPositionState")
	}
	err = &ConfigError{Field: "instrument", Reason: "unknown code XX"}
	if !errors.Is(err, ErrConfiguration) {
		t.Error("ConfigError should unwrap to ErrConfiguration")
	}

	rc := RunContext{Halted: true, HaltStart: 10, HaltElapsed: 5, Terminated: true}
	rc.ResetDay()
	if rc.Halted || rc.HaltElapsed != 0 || rc.HaltStart != 0 {
		t.Errorf("ResetDay left halt state: %+v", rc)
	}
	if !rc.Terminated {
		t.Error("ResetDay must not clear termination")
	}
}
