// Package settlement keeps the append-only table of fills, the single source
// of truth for every derived report and metric.
package settlement

import (
	"fmt"
	"math"

	"tickledger/internal/domain"
)

// Recorder appends fill records in invocation order. Records are never
// modified once appended.
type Recorder struct {
	fills []domain.Fill
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Append records one fill.
func (r *Recorder) Append(f domain.Fill) {
	r.fills = append(r.fills, f)
}

// Len returns the number of recorded fills.
func (r *Recorder) Len() int {
	return len(r.fills)
}

// Fills returns a copy of the table so callers cannot mutate history.
func (r *Recorder) Fills() []domain.Fill {
	out := make([]domain.Fill, len(r.fills))
	copy(out, r.fills)
	return out
}

// Since returns a copy of the fills appended at or after index i.
func (r *Recorder) Since(i int) []domain.Fill {
	if i >= len(r.fills) {
		return nil
	}
	out := make([]domain.Fill, len(r.fills)-i)
	copy(out, r.fills[i:])
	return out
}

// Replay rebuilds the cumulative realized PnL after each fill starting from
// an empty ledger.
func Replay(fills []domain.Fill) []float64 {
	cum := make([]float64, len(fills))
	realized := 0.0
	for i, f := range fills {
		realized += f.RealizedPnL
		cum[i] = realized
	}
	return cum
}

// Verify checks that the table is internally consistent: each row's
// CumRealized equals the replayed running sum, RealizedPnL equals GrossPnL
// less TotalFee, and positions never go negative.
func Verify(fills []domain.Fill) error {
	cum := Replay(fills)
	for i, f := range fills {
		if f.CumRealized != cum[i] {
			return fmt.Errorf("fill %d: cumulative realized %.2f, replay gives %.2f", i, f.CumRealized, cum[i])
		}
		if math.Abs(f.GrossPnL-f.TotalFee-f.RealizedPnL) > 1e-6 {
			return fmt.Errorf("fill %d: realized %.2f != gross %.2f - fee %.2f", i, f.RealizedPnL, f.GrossPnL, f.TotalFee)
		}
		if f.LongPos < 0 || f.ShortPos < 0 {
			return fmt.Errorf("fill %d: negative position long=%d short=%d", i, f.LongPos, f.ShortPos)
		}
	}
	return nil
}
