package fee

import (
	"testing"

	"tickledger/internal/domain"
)

func newCalc(fees domain.FeeSchedule, multiplier, brokerRate, exRebate, brRebate float64) *Calculator {
	return NewCalculator(&domain.RunContext{
		Instrument:     domain.Instrument{Code: "T", TickSize: 1, Multiplier: multiplier, MarginRate: 0.1, Fees: fees},
		BrokerRate:     brokerRate,
		ExchangeRebate: exRebate,
		BrokerRebate:   brRebate,
	})
}

func TestFeeFlat(t *testing.T) {
	c := newCalc(domain.FeeSchedule{Open: 1.2, CloseToday: 2.4, CloseYesterday: 1.2}, 10, 0, 0, 0)

	got := c.Fee(100, 1, domain.TierOpen)
	if got.Exchange != 1.20 {
		t.Errorf("Exchange = %v, want 1.20", got.Exchange)
	}
	if got.Total != 1.20 {
		t.Errorf("Total = %v, want 1.20", got.Total)
	}

	got = c.Fee(100, 3, domain.TierCloseToday)
	if got.Exchange != 7.2 {
		t.Errorf("close-today Exchange = %v, want 7.2", got.Exchange)
	}
}

func TestFeePercentage(t *testing.T) {
	// 1e-4 of notional: 3000 * 2 * 0.0001 * 100 = 60.
	c := newCalc(domain.FeeSchedule{Open: 1e-4, CloseToday: 4e-4, CloseYesterday: 1e-4}, 100, 0, 0, 0)

	got := c.Fee(3000, 2, domain.TierOpen)
	if got.Exchange != 60 {
		t.Errorf("Exchange = %v, want 60", got.Exchange)
	}
	got = c.Fee(3000, 2, domain.TierCloseToday)
	if got.Exchange != 240 {
		t.Errorf("close-today Exchange = %v, want 240", got.Exchange)
	}
}

func TestFeeRoundsToCents(t *testing.T) {
	// 4123 * 1 * 0.00015 * 10 = 6.1845 -> 6.18
	c := newCalc(domain.FeeSchedule{Open: 1.5e-4}, 10, 0, 0, 0)
	got := c.Fee(4123, 1, domain.TierOpen)
	if got.Exchange != 6.18 {
		t.Errorf("Exchange = %v, want 6.18", got.Exchange)
	}
}

func TestFeeBrokerAndRebate(t *testing.T) {
	tests := []struct {
		name       string
		brokerRate float64
		exRebate   float64
		brRebate   float64
		want       Breakdown
	}{
		{"markup fraction", 0.5, 0, 0, Breakdown{Exchange: 4, Broker: 2, Rebate: 0, Total: 6}},
		{"markup per lot", 1.5, 0, 0, Breakdown{Exchange: 4, Broker: 3, Rebate: 0, Total: 7}},
		{"rebate", 0, 0.5, 0.5, Breakdown{Exchange: 4, Broker: 0, Rebate: 1, Total: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCalc(domain.FeeSchedule{Open: 2}, 10, tt.brokerRate, tt.exRebate, tt.brRebate)
			if got := c.Fee(100, 2, domain.TierOpen); got != tt.want {
				t.Errorf("Fee() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBreakdownAdd(t *testing.T) {
	a := Breakdown{Exchange: 1.1, Broker: 0.2, Rebate: 0.1, Total: 1.2}
	b := Breakdown{Exchange: 2.2, Broker: 0.4, Rebate: 0.2, Total: 2.4}
	got := a.Add(b)
	want := Breakdown{Exchange: 3.3, Broker: 0.6, Rebate: 0.3, Total: 3.6}
	if got != want {
		t.Errorf("Add() = %+v, want %+v", got, want)
	}
}
