package domain

import (
	"fmt"
	"math"
	"time"
)

// TickColumns is the columnar form in which cleaned market data usually
// arrives. ZipTicks converts it to rows.
type TickColumns struct {
	Timestamps  []time.Time
	Bid         []float64
	Ask         []float64
	BidSize     []int64
	AskSize     []int64
	Mid         []float64
	LongSignal  []int
	ShortSignal []int
}

// ZipTicks validates that every column has the same length and returns the
// rows. Signal columns may be omitted (nil), in which case they read as zero.
func ZipTicks(c TickColumns) ([]Tick, error) {
	n := len(c.Timestamps)
	lengths := map[string]int{
		"bid":      len(c.Bid),
		"ask":      len(c.Ask),
		"bid_size": len(c.BidSize),
		"ask_size": len(c.AskSize),
		"mid":      len(c.Mid),
	}
	if c.LongSignal != nil {
		lengths["long_signal"] = len(c.LongSignal)
	}
	if c.ShortSignal != nil {
		lengths["short_signal"] = len(c.ShortSignal)
	}
	for name, l := range lengths {
		if l != n {
			return nil, fmt.Errorf("%w: %s has %d rows, timestamps has %d", ErrLengthMismatch, name, l, n)
		}
	}

	ticks := make([]Tick, n)
	for i := 0; i < n; i++ {
		ticks[i] = Tick{
			Timestamp: c.Timestamps[i],
			Bid:       c.Bid[i],
			Ask:       c.Ask[i],
			BidSize:   c.BidSize[i],
			AskSize:   c.AskSize[i],
			Mid:       c.Mid[i],
		}
		if c.LongSignal != nil {
			ticks[i].LongSignal = c.LongSignal[i]
		}
		if c.ShortSignal != nil {
			ticks[i].ShortSignal = c.ShortSignal[i]
		}
	}
	return ticks, nil
}

// Validate checks that the day's ticks are in non-decreasing timestamp order
// and that every quote price and both price limits are finite.
func (d *TradingDay) Validate() error {
	if !finite(d.UpperLimit) || !finite(d.LowerLimit) {
		return fmt.Errorf("%w: %s limits upper=%v lower=%v", ErrInvalidQuote, d.Date, d.UpperLimit, d.LowerLimit)
	}
	for i, t := range d.Ticks {
		if !finite(t.Bid) || !finite(t.Ask) || !finite(t.Mid) {
			return fmt.Errorf("%w: %s row %d at %s bid=%v ask=%v mid=%v", ErrInvalidQuote,
				d.Date, i, t.Timestamp.Format(time.RFC3339Nano), t.Bid, t.Ask, t.Mid)
		}
		if i > 0 && t.Timestamp.Before(d.Ticks[i-1].Timestamp) {
			return fmt.Errorf("%w: %s row %d at %s precedes %s", ErrUnorderedTicks,
				d.Date, i, t.Timestamp.Format(time.RFC3339Nano), d.Ticks[i-1].Timestamp.Format(time.RFC3339Nano))
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
