// Package metrics derives performance statistics from the settlement table.
// Every function is a pure function of its []domain.Fill input.
package metrics

import (
	"fmt"
	"math"

	"tickledger/internal/domain"
	"tickledger/internal/fee"
)

// Side selects which book's closing fills a metric covers. The zero value
// covers both books.
type Side string

const (
	All   Side = ""
	Long  Side = Side(domain.SideLong)
	Short Side = Side(domain.SideShort)
)

func (s Side) matches(f domain.Fill) bool {
	return s == All || string(f.Side) == string(s)
}

// closing returns the realized PnL of every closing fill on side.
func closing(fills []domain.Fill, side Side) []float64 {
	var out []float64
	for _, f := range fills {
		if f.Closing() && side.matches(f) {
			out = append(out, f.RealizedPnL)
		}
	}
	return out
}

// WinRate returns the fraction of closing fills on side whose realized PnL,
// net of fees, is positive, rounded to two decimals.
func WinRate(fills []domain.Fill, side Side) (float64, error) {
	pnl := closing(fills, side)
	if len(pnl) == 0 {
		return 0, fmt.Errorf("win rate (%s): %w", sideName(side), domain.ErrNoClosingFills)
	}
	wins := 0
	for _, p := range pnl {
		if p > 0 {
			wins++
		}
	}
	return fee.Round2(float64(wins) / float64(len(pnl))), nil
}

// PnLRatio returns total winning PnL over the magnitude of total losing PnL
// for closing fills on side, rounded to two decimals. It is +Inf when there
// are no losing fills and -Inf when there are no winning fills.
func PnLRatio(fills []domain.Fill, side Side) (float64, error) {
	pnl := closing(fills, side)
	if len(pnl) == 0 {
		return 0, fmt.Errorf("pnl ratio (%s): %w", sideName(side), domain.ErrNoClosingFills)
	}
	var gains, losses float64
	var nGain, nLoss int
	for _, p := range pnl {
		if p > 0 {
			gains += p
			nGain++
		} else {
			losses += p
			nLoss++
		}
	}
	switch {
	case nLoss == 0:
		return math.Inf(1), nil
	case nGain == 0:
		return math.Inf(-1), nil
	case losses == 0:
		// Only break-even fills on the losing side.
		return math.Inf(1), nil
	}
	return fee.Round2(math.Abs(gains) / math.Abs(losses)), nil
}

// Expectancy returns the mean realized PnL per closing fill on side, rounded
// to two decimals, or NaN when there are none.
func Expectancy(fills []domain.Fill, side Side) float64 {
	pnl := closing(fills, side)
	if len(pnl) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, p := range pnl {
		sum += p
	}
	return fee.Round2(sum / float64(len(pnl)))
}

// Drawdown measures the largest fall of the realized equity curve
// (capital + cumulative realized PnL) after its peak.
type Drawdown struct {
	Peak     float64
	Trough   float64
	Absolute float64
	Ratio    float64
}

// MaxDrawdown computes the drop from the curve's maximum to the lowest value
// at or after it. Both the absolute drop and its ratio to the peak are
// rounded to two decimals.
func MaxDrawdown(fills []domain.Fill, capital float64) Drawdown {
	if len(fills) == 0 {
		return Drawdown{Peak: capital, Trough: capital}
	}
	peakIdx := 0
	peak := capital + fills[0].CumRealized
	for i, f := range fills {
		if v := capital + f.CumRealized; v > peak {
			peak, peakIdx = v, i
		}
	}
	trough := peak
	for _, f := range fills[peakIdx:] {
		if v := capital + f.CumRealized; v < trough {
			trough = v
		}
	}
	dd := Drawdown{Peak: peak, Trough: trough, Absolute: fee.Round2(peak - trough)}
	if peak != 0 {
		dd.Ratio = fee.Round2((peak - trough) / peak)
	}
	return dd
}

// CountKey identifies one action category.
type CountKey struct {
	Side   domain.Side
	Action domain.Action
}

// Counts tallies fills per side and action. The opening leg of a reverse is
// counted under the side it opened.
func Counts(fills []domain.Fill) map[CountKey]int {
	out := make(map[CountKey]int)
	for _, f := range fills {
		out[CountKey{Side: f.Side, Action: f.Action}]++
	}
	return out
}

func sideName(s Side) string {
	if s == All {
		return "all"
	}
	return string(s)
}
