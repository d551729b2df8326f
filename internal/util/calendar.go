package util

import "time"

// DefaultSessionBreak is the largest gap between consecutive ticks that still
// counts as continuous trading.
const DefaultSessionBreak = time.Minute

// SessionClock measures elapsed trading time within one day. Gaps between
// consecutive ticks longer than the session break (lunch, the night-to-day
// transition, weekends) contribute nothing, so a halt timer started before a
// break resumes where it left off.
type SessionClock struct {
	breakGap time.Duration
	last     time.Time
	elapsed  time.Duration
	started  bool
}

// NewSessionClock creates a SessionClock. A non-positive breakGap falls back
// to DefaultSessionBreak.
func NewSessionClock(breakGap time.Duration) *SessionClock {
	if breakGap <= 0 {
		breakGap = DefaultSessionBreak
	}
	return &SessionClock{breakGap: breakGap}
}

// Reset rewinds the clock for a new trading day.
func (c *SessionClock) Reset() {
	c.last = time.Time{}
	c.elapsed = 0
	c.started = false
}

// Advance moves the clock to ts and returns the trading seconds elapsed
// since the first tick of the day.
func (c *SessionClock) Advance(ts time.Time) float64 {
	if !c.started {
		c.started = true
		c.last = ts
		return 0
	}
	gap := ts.Sub(c.last)
	if gap > 0 && gap <= c.breakGap {
		c.elapsed += gap
	}
	c.last = ts
	return c.elapsed.Seconds()
}

// Seconds returns the trading seconds accumulated so far.
func (c *SessionClock) Seconds() float64 {
	return c.elapsed.Seconds()
}
