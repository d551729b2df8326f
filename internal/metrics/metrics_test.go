package metrics

import (
	"errors"
	"math"
	"testing"

	"tickledger/internal/domain"
)

func closeFill(side domain.Side, pnl float64) domain.Fill {
	return domain.Fill{Side: side, Action: domain.ActionClose, Tier: domain.TierCloseToday, Qty: 1, RealizedPnL: pnl}
}

func openFill(side domain.Side, fee float64) domain.Fill {
	return domain.Fill{Side: side, Action: domain.ActionOpen, Tier: domain.TierOpen, Qty: 1, RealizedPnL: -fee}
}

// withCum fills in the running CumRealized column.
func withCum(fills ...domain.Fill) []domain.Fill {
	cum := 0.0
	for i := range fills {
		cum += fills[i].RealizedPnL
		fills[i].CumRealized = cum
	}
	return fills
}

func sample() []domain.Fill {
	return withCum(
		openFill(domain.SideLong, 1),
		closeFill(domain.SideLong, 30),
		openFill(domain.SideLong, 1),
		closeFill(domain.SideLong, -10),
		openFill(domain.SideShort, 1),
		closeFill(domain.SideShort, 20),
		openFill(domain.SideShort, 1),
		closeFill(domain.SideShort, 0),
	)
}

func TestWinRate(t *testing.T) {
	fills := sample()
	tests := []struct {
		side Side
		want float64
	}{
		{All, 0.5},
		{Long, 0.5},
		{Short, 0.5},
	}
	for _, tt := range tests {
		got, err := WinRate(fills, tt.side)
		if err != nil {
			t.Fatalf("WinRate(%q): %v", tt.side, err)
		}
		if got != tt.want {
			t.Errorf("WinRate(%q) = %v, want %v", tt.side, got, tt.want)
		}
	}
}

func TestWinRateOneSided(t *testing.T) {
	allWins := withCum(closeFill(domain.SideLong, 5), closeFill(domain.SideLong, 1))
	if got, _ := WinRate(allWins, All); got != 1 {
		t.Errorf("all wins = %v, want 1", got)
	}
	allLosses := withCum(closeFill(domain.SideLong, -5))
	if got, _ := WinRate(allLosses, All); got != 0 {
		t.Errorf("all losses = %v, want 0", got)
	}
}

func TestWinRateNoClosingFills(t *testing.T) {
	fills := withCum(openFill(domain.SideLong, 1))
	if _, err := WinRate(fills, All); !errors.Is(err, domain.ErrNoClosingFills) {
		t.Errorf("err = %v, want ErrNoClosingFills", err)
	}
	if _, err := PnLRatio(fills, Short); !errors.Is(err, domain.ErrNoClosingFills) {
		t.Errorf("err = %v, want ErrNoClosingFills", err)
	}
}

func TestPnLRatio(t *testing.T) {
	got, err := PnLRatio(sample(), All)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("PnLRatio = %v, want 5 (50 / 10)", got)
	}

	wins := withCum(closeFill(domain.SideLong, 5))
	if got, _ := PnLRatio(wins, All); !math.IsInf(got, 1) {
		t.Errorf("no losses = %v, want +Inf", got)
	}
	losses := withCum(closeFill(domain.SideLong, -5))
	if got, _ := PnLRatio(losses, All); !math.IsInf(got, -1) {
		t.Errorf("no wins = %v, want -Inf", got)
	}
}

func TestExpectancy(t *testing.T) {
	fills := sample()
	if got := Expectancy(fills, All); got != 10 {
		t.Errorf("Expectancy(all) = %v, want 10", got)
	}
	if got := Expectancy(fills, Long); got != 10 {
		t.Errorf("Expectancy(long) = %v, want 10", got)
	}
	if got := Expectancy(withCum(openFill(domain.SideLong, 1)), All); !math.IsNaN(got) {
		t.Errorf("Expectancy(no closes) = %v, want NaN", got)
	}
}

func TestMetricsArePure(t *testing.T) {
	fills := sample()
	first, _ := WinRate(fills, All)
	for i := 0; i < 3; i++ {
		if got, _ := WinRate(fills, All); got != first {
			t.Fatalf("call %d: WinRate changed %v -> %v", i, first, got)
		}
	}
	if fills[1].RealizedPnL != 30 {
		t.Error("metrics mutated their input")
	}
}

func TestMaxDrawdown(t *testing.T) {
	// realized curve: -1, 29, 28, 18, 17, 37, 36, 36
	dd := MaxDrawdown(sample(), 1000)
	if dd.Peak != 1037 || dd.Trough != 1036 {
		t.Errorf("peak/trough = %v/%v, want 1037/1036", dd.Peak, dd.Trough)
	}
	if dd.Absolute != 1 {
		t.Errorf("Absolute = %v, want 1", dd.Absolute)
	}

	// Peak early, deeper trough afterwards.
	fills := withCum(closeFill(domain.SideLong, 100), closeFill(domain.SideLong, -60), closeFill(domain.SideLong, 10))
	dd = MaxDrawdown(fills, 900)
	if dd.Absolute != 60 || dd.Ratio != 0.06 {
		t.Errorf("drawdown = %+v, want 60 and 0.06", dd)
	}

	// A trough before the peak does not count.
	fills = withCum(closeFill(domain.SideLong, -50), closeFill(domain.SideLong, 100))
	if dd = MaxDrawdown(fills, 1000); dd.Absolute != 0 {
		t.Errorf("drawdown before peak counted: %+v", dd)
	}
}

func TestCounts(t *testing.T) {
	c := Counts(sample())
	if got := c[CountKey{domain.SideLong, domain.ActionOpen}]; got != 2 {
		t.Errorf("long opens = %d, want 2", got)
	}
	if got := c[CountKey{domain.SideShort, domain.ActionClose}]; got != 2 {
		t.Errorf("short closes = %d, want 2", got)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample(), 1000, 500)
	if s.FinalCapital != 1036 || s.RealizedPnL != 36 {
		t.Errorf("final=%v realized=%v, want 1036 and 36", s.FinalCapital, s.RealizedPnL)
	}
	if s.ReturnPct != 3.6 {
		t.Errorf("ReturnPct = %v, want 3.6", s.ReturnPct)
	}
	if s.Ticks != 500 || s.Fills != 8 {
		t.Errorf("ticks=%d fills=%d", s.Ticks, s.Fills)
	}
	if s.Long.WinRate != 0.5 || s.Short.PnLRatio != math.Inf(1) {
		t.Errorf("side stats long=%+v short=%+v", s.Long, s.Short)
	}

	empty := Summarize(nil, 1000, 0)
	if !math.IsNaN(empty.All.WinRate) || !math.IsNaN(empty.All.Expectancy) {
		t.Errorf("undefined metrics = %+v, want NaN", empty.All)
	}
	if empty.FinalCapital != 1000 {
		t.Errorf("FinalCapital = %v, want 1000", empty.FinalCapital)
	}
}
