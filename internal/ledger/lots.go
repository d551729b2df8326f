package ledger

import (
	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"
)

// lotQueue holds one entry price per open lot in insertion order. Reductions
// consume from the front.
type lotQueue struct {
	q deque.Deque[float64]
}

func (l *lotQueue) len() int {
	return l.q.Len()
}

// push appends n lots entered at price.
func (l *lotQueue) push(price float64, n int) {
	for i := 0; i < n; i++ {
		l.q.PushBack(price)
	}
}

// pop removes the n oldest lots and returns the sum of their entry prices.
// The caller guarantees n <= len().
func (l *lotQueue) pop(n int) decimal.Decimal {
	sum := decimal.Zero
	for i := 0; i < n; i++ {
		sum = sum.Add(decimal.NewFromFloat(l.q.PopFront()))
	}
	return sum
}

// sum returns the total entry price of all open lots.
func (l *lotQueue) sum() decimal.Decimal {
	sum := decimal.Zero
	for i := 0; i < l.q.Len(); i++ {
		sum = sum.Add(decimal.NewFromFloat(l.q.At(i)))
	}
	return sum
}

// avg returns the mean entry price, or zero when empty.
func (l *lotQueue) avg() float64 {
	n := l.q.Len()
	if n == 0 {
		return 0
	}
	return l.sum().Div(decimal.NewFromInt(int64(n))).InexactFloat64()
}

// prices returns a copy of the entry prices, oldest first.
func (l *lotQueue) prices() []float64 {
	out := make([]float64, l.q.Len())
	for i := range out {
		out[i] = l.q.At(i)
	}
	return out
}
