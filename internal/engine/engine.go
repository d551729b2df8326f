// Package engine replays one instrument's tick stream through the risk gate,
// the signal executor and the position ledger, one trading day at a time.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tickledger/internal/domain"
	"tickledger/internal/fee"
	"tickledger/internal/ledger"
	"tickledger/internal/monitor"
	"tickledger/internal/settlement"
	"tickledger/internal/util"
)

// ctxCheckEvery is how many ticks pass between context cancellation checks.
const ctxCheckEvery = 4096

// Config holds the per-run engine settings.
type Config struct {
	Risk         RiskConfig
	LotSize      int
	SessionBreak time.Duration
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		Risk:         DefaultRiskConfig(),
		LotSize:      1,
		SessionBreak: util.DefaultSessionBreak,
	}
}

// DayResult summarises one replayed trading day.
type DayResult struct {
	Date       string
	Skipped    bool // the run was already terminated
	Ticks      int  // ticks evaluated before the day ended
	Fills      []domain.Fill
	Decisions  map[GateDecision]int
	Executions map[domain.Action]int
	Stopped    bool // StopSession ended the day early
	Terminated bool
	Realized   float64
	Unrealized float64
	Equity     float64
}

// Engine owns the ledger, recorder and RunContext of one (instrument,
// account) run and persists them across days. It is not safe for concurrent
// use; run distinct instruments on distinct engines.
type Engine struct {
	rc      *domain.RunContext
	ledger  *ledger.Ledger
	rec     *settlement.Recorder
	gate    *RiskGate
	exec    *Executor
	clock   *util.SessionClock
	metrics *monitor.Collector
	log     *slog.Logger
}

// NewEngine creates an Engine for rc. A nil logger discards output and a nil
// collector records nothing.
func NewEngine(rc *domain.RunContext, cfg Config, metrics *monitor.Collector, log *slog.Logger) *Engine {
	if log == nil {
		log = util.Discard()
	}
	log = log.With("instrument", rc.Instrument.Code, "account", rc.AccountID)

	rec := settlement.NewRecorder()
	l := ledger.New(rc, fee.NewCalculator(rc), rec)
	return &Engine{
		rc:      rc,
		ledger:  l,
		rec:     rec,
		gate:    NewRiskGate(cfg.Risk, rc, l, log),
		exec:    NewExecutor(rc, l, cfg.LotSize),
		clock:   util.NewSessionClock(cfg.SessionBreak),
		metrics: metrics,
		log:     log,
	}
}

// Ledger returns the engine's position ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Recorder returns the settlement table shared by every day of the run.
func (e *Engine) Recorder() *settlement.Recorder { return e.rec }

// RunContext returns the run state.
func (e *Engine) RunContext() *domain.RunContext { return e.rc }

// RunDay replays one trading day. Once the run is terminated every later day
// is a no-op. A fatal error stops the day at the failing tick; fills recorded
// before it remain in the table.
func (e *Engine) RunDay(ctx context.Context, day *domain.TradingDay) (DayResult, error) {
	res := DayResult{
		Date:       day.Date,
		Decisions:  make(map[GateDecision]int),
		Executions: make(map[domain.Action]int),
	}
	if e.rc.Terminated {
		e.log.Info("run terminated, skipping day", "date", day.Date)
		res.Skipped = true
		res.Terminated = true
		e.snapshot(&res)
		return res, nil
	}
	if day.Instrument != "" && day.Instrument != e.rc.Instrument.Code {
		return res, &domain.ConfigError{Field: "instrument", Reason: fmt.Sprintf("day %s is for %s, run is for %s", day.Date, day.Instrument, e.rc.Instrument.Code)}
	}
	if err := day.Validate(); err != nil {
		return res, fmt.Errorf("day %s: %w", day.Date, err)
	}

	e.ledger.RollDay()
	e.rc.ResetDay()
	e.clock.Reset()

	start := time.Now()
	first := e.rec.Len()
	e.log.Debug("day start",
		"date", day.Date,
		"ticks", len(day.Ticks),
		"yesterday", e.ledger.Yesterday(),
		"lpos", e.ledger.LongPos(),
		"spos", e.ledger.ShortPos(),
		"avg_long", e.ledger.AvgPrice(domain.SideLong),
		"avg_short", e.ledger.AvgPrice(domain.SideShort),
	)

	err := e.replay(ctx, day, &res)

	res.Fills = e.rec.Since(first)
	for _, f := range res.Fills {
		e.metrics.ObserveFill(f)
	}
	e.snapshot(&res)
	e.metrics.ObserveDay(e.rc.Instrument.Code, res.Ticks, res.Equity, res.Terminated, time.Since(start))

	if err != nil {
		e.log.Error("day aborted", "date", day.Date, "tick", res.Ticks, "error", err)
		return res, err
	}
	e.log.Info("day complete",
		"date", day.Date,
		"ticks", res.Ticks,
		"fills", len(res.Fills),
		"realized", res.Realized,
		"fees", e.ledger.FeesPaid().Total,
		"equity", res.Equity,
		"session_s", e.clock.Seconds(),
		"stopped", res.Stopped,
		"terminated", res.Terminated,
	)
	return res, nil
}

func (e *Engine) replay(ctx context.Context, day *domain.TradingDay, res *DayResult) error {
	for i, t := range day.Ticks {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		res.Ticks = i + 1

		now := e.clock.Advance(t.Timestamp)
		e.ledger.Mark(t.Timestamp, t.Mid)

		decision, err := e.gate.Check(now, t, day.UpperLimit, day.LowerLimit)
		res.Decisions[decision]++
		e.metrics.ObserveDecision(e.rc.Instrument.Code, decision.String())
		if err != nil {
			return fmt.Errorf("tick %d at %s: %s: %w", i, t.Timestamp.Format(time.RFC3339Nano), decision, err)
		}

		switch decision {
		case Delegate:
			done, err := e.exec.Execute(t)
			for _, x := range done {
				res.Executions[x.Action]++
			}
			if err != nil {
				return fmt.Errorf("tick %d at %s: %w", i, t.Timestamp.Format(time.RFC3339Nano), err)
			}
		case StopSession:
			res.Stopped = true
			return nil
		case Terminate:
			res.Terminated = true
			return nil
		}
	}
	return nil
}

func (e *Engine) snapshot(res *DayResult) {
	res.Realized = e.ledger.Realized()
	res.Unrealized = e.ledger.Unrealized()
	res.Equity = e.ledger.Equity()
	res.Terminated = res.Terminated || e.rc.Terminated
}
