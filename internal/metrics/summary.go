package metrics

import (
	"math"

	"tickledger/internal/domain"
)

// SideStats holds the per-book trade statistics. Undefined values are NaN.
type SideStats struct {
	WinRate    float64
	PnLRatio   float64
	Expectancy float64
}

// Summary is the account report for one run.
type Summary struct {
	Ticks          int
	Fills          int
	InitialCapital float64
	FinalCapital   float64
	RealizedPnL    float64
	ReturnPct      float64
	Drawdown       float64
	DrawdownRatio  float64

	All   SideStats
	Long  SideStats
	Short SideStats

	Counts map[CountKey]int
}

// Summarize builds the account report from the fill table. ticks is the
// number of ticks the run evaluated.
func Summarize(fills []domain.Fill, capital float64, ticks int) Summary {
	s := Summary{
		Ticks:          ticks,
		Fills:          len(fills),
		InitialCapital: capital,
		FinalCapital:   capital,
		Counts:         Counts(fills),
	}
	if n := len(fills); n > 0 {
		s.RealizedPnL = fills[n-1].CumRealized
		s.FinalCapital = capital + s.RealizedPnL
	}
	if capital != 0 {
		s.ReturnPct = math.Round((s.FinalCapital/capital-1)*100*10) / 10
	}
	dd := MaxDrawdown(fills, capital)
	s.Drawdown = dd.Absolute
	s.DrawdownRatio = dd.Ratio

	s.All = sideStats(fills, All)
	s.Long = sideStats(fills, Long)
	s.Short = sideStats(fills, Short)
	return s
}

func sideStats(fills []domain.Fill, side Side) SideStats {
	st := SideStats{Expectancy: Expectancy(fills, side)}
	var err error
	if st.WinRate, err = WinRate(fills, side); err != nil {
		st.WinRate = math.NaN()
	}
	if st.PnLRatio, err = PnLRatio(fills, side); err != nil {
		st.PnLRatio = math.NaN()
	}
	return st
}
