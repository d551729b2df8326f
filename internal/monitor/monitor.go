// Package monitor exposes Prometheus instrumentation for backtest runs:
//
//   - tickledger_fills_total{instrument,side,tier}    fills appended to the ledger
//   - tickledger_gate_decisions_total{instrument,decision} risk gate outcomes
//   - tickledger_ticks_total{instrument}              ticks evaluated
//   - tickledger_equity{instrument}                   equity at the last tick
//   - tickledger_realized_pnl{instrument}             cumulative realized PnL
//   - tickledger_terminated{instrument}               1 once the capital floor tripped
//   - tickledger_day_seconds                          wall time per replayed day
//
// A nil *Collector is valid and records nothing.
package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tickledger/internal/domain"
)

// Collector groups the run metrics. Instances are safe for concurrent use by
// engines replaying different instruments.
type Collector struct {
	fills      *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	ticks      *prometheus.CounterVec
	equity     *prometheus.GaugeVec
	realized   *prometheus.GaugeVec
	terminated *prometheus.GaugeVec
	daySeconds prometheus.Histogram
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		fills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickledger_fills_total",
				Help: "Fill records appended to the settlement table",
			},
			[]string{"instrument", "side", "tier"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickledger_gate_decisions_total",
				Help: "Risk gate outcomes per tick",
			},
			[]string{"instrument", "decision"},
		),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickledger_ticks_total",
				Help: "Ticks evaluated",
			},
			[]string{"instrument"},
		),
		equity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickledger_equity",
				Help: "Capital plus realized and unrealized PnL at the last tick",
			},
			[]string{"instrument"},
		),
		realized: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickledger_realized_pnl",
				Help: "Cumulative realized PnL net of fees",
			},
			[]string{"instrument"},
		),
		terminated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickledger_terminated",
				Help: "1 once the capital floor has permanently stopped trading",
			},
			[]string{"instrument"},
		),
		daySeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tickledger_day_seconds",
				Help:    "Wall time spent replaying one trading day",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
	}

	for _, col := range []prometheus.Collector{
		c.fills, c.decisions, c.ticks, c.equity, c.realized, c.terminated, c.daySeconds,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveFill counts one settlement row.
func (c *Collector) ObserveFill(f domain.Fill) {
	if c == nil {
		return
	}
	c.fills.WithLabelValues(f.Instrument, string(f.Side), string(f.Tier)).Inc()
	c.realized.WithLabelValues(f.Instrument).Set(f.CumRealized)
}

// ObserveDecision counts one risk gate outcome.
func (c *Collector) ObserveDecision(instrument, decision string) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(instrument, decision).Inc()
}

// ObserveDay records the result of replaying one day.
func (c *Collector) ObserveDay(instrument string, ticks int, equity float64, terminated bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.ticks.WithLabelValues(instrument).Add(float64(ticks))
	c.equity.WithLabelValues(instrument).Set(equity)
	if terminated {
		c.terminated.WithLabelValues(instrument).Set(1)
	}
	c.daySeconds.Observe(elapsed.Seconds())
}
