// Package backtest drives one engine per instrument across the configured
// date range, then persists the settlement table and the run summary.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tickledger/internal/config"
	"tickledger/internal/domain"
	"tickledger/internal/engine"
	"tickledger/internal/instrument"
	"tickledger/internal/metrics"
	"tickledger/internal/monitor"
	"tickledger/internal/settlement"
	"tickledger/internal/store"
	"tickledger/internal/util"
)

// Point is one sample of the equity timeline. DayEnd marks the close of a
// trading day rather than a fill.
type Point struct {
	Time   time.Time
	Date   string
	Equity float64
	DayEnd bool
}

// Result holds everything produced by one instrument's run.
type Result struct {
	RunID      string
	Instrument string
	Days       []engine.DayResult
	Ticks      int
	Fills      []domain.Fill
	Timeline   []Point
	Summary    metrics.Summary
	Terminated bool
}

// Runner replays stored tick data through the engine. A Runner may be shared
// by goroutines running different instruments: each Run builds its own
// engine and RunContext.
type Runner struct {
	cfg      *config.Config
	registry *instrument.Registry
	ticks    store.TickStore
	exports  []store.FillStore
	runs     store.RunStore
	metrics  *monitor.Collector
	log      *slog.Logger
}

// NewRunner creates a Runner reading ticks from ticks and resolving
// instruments through registry.
func NewRunner(cfg *config.Config, registry *instrument.Registry, ticks store.TickStore, log *slog.Logger) *Runner {
	if log == nil {
		log = util.Discard()
	}
	return &Runner{cfg: cfg, registry: registry, ticks: ticks, log: log}
}

// WithFillStores adds destinations for each run's settlement table.
func (r *Runner) WithFillStores(fs ...store.FillStore) *Runner {
	r.exports = append(r.exports, fs...)
	return r
}

// WithRunStore sets where run summaries are recorded.
func (r *Runner) WithRunStore(rs store.RunStore) *Runner {
	r.runs = rs
	return r
}

// WithMetrics attaches a prometheus collector to every engine.
func (r *Runner) WithMetrics(c *monitor.Collector) *Runner {
	r.metrics = c
	return r
}

// EngineConfig maps the risk and execution sections onto engine settings.
func EngineConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.Risk = engine.RiskConfig{
		FreezeRatio: cfg.Risk.FreezeRatio,
		StopTicks:   cfg.Risk.StopTicks,
		HaltTimeout: cfg.Risk.HaltTimeout,
	}
	if cfg.Execution.LotSize > 0 {
		ec.LotSize = cfg.Execution.LotSize
	}
	if cfg.Execution.SessionBreak > 0 {
		ec.SessionBreak = cfg.Execution.SessionBreak
	}
	return ec
}

// NewRunContext builds the starting state for one (instrument, account) run.
func NewRunContext(cfg *config.Config, inst domain.Instrument) *domain.RunContext {
	return &domain.RunContext{
		AccountID:      cfg.Account.ID,
		Instrument:     inst,
		Capital:        cfg.Account.Capital,
		SlippageTicks:  cfg.Execution.SlippageTicks,
		BrokerRate:     cfg.Account.BrokerRate,
		ExchangeRebate: cfg.Account.ExchangeRebate,
		BrokerRebate:   cfg.Account.BrokerRebate,
	}
}

// Dates returns the stored dates for code that fall inside the configured
// range. Empty bounds are open.
func (r *Runner) Dates(ctx context.Context, code string) ([]string, error) {
	all, err := r.ticks.ListDates(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("listing dates for %s: %w", code, err)
	}
	start, end := r.cfg.Backtest.StartDate, r.cfg.Backtest.EndDate
	var dates []string
	for _, d := range all {
		if start != "" && d < start {
			continue
		}
		if end != "" && d > end {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// Run replays every selected day of the contract code. On a fatal error the
// partial result is returned with the error and nothing is persisted.
func (r *Runner) Run(ctx context.Context, code string) (*Result, error) {
	inst, err := r.registry.Lookup(code)
	if err != nil {
		return nil, err
	}
	inst.Code = strings.ToUpper(code)

	rc := NewRunContext(r.cfg, inst)
	runID := uuid.NewString()
	eng := engine.NewEngine(rc, EngineConfig(r.cfg), r.metrics, r.log.With("run_id", runID))
	log := r.log.With("run_id", runID, "instrument", inst.Code)

	dates, err := r.Dates(ctx, code)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: runID, Instrument: inst.Code}
	if len(dates) == 0 {
		log.Warn("no tick data in range",
			"start", r.cfg.Backtest.StartDate, "end", r.cfg.Backtest.EndDate)
	}

	for _, date := range dates {
		day, err := r.ticks.ReadDay(ctx, code, date)
		if err != nil {
			return res, err
		}
		dr, err := eng.RunDay(ctx, day)
		res.Days = append(res.Days, dr)
		res.Ticks += dr.Ticks
		res.addPoints(rc.Capital, day, dr)
		if err != nil {
			return res, fmt.Errorf("%s %s: %w", inst.Code, date, err)
		}
	}

	res.Fills = eng.Recorder().Fills()
	if err := settlement.Verify(res.Fills); err != nil {
		return res, fmt.Errorf("%w: %v", domain.ErrLedgerInconsistent, err)
	}
	res.Summary = metrics.Summarize(res.Fills, rc.Capital, res.Ticks)
	res.Terminated = rc.Terminated

	if err := r.persist(ctx, res, dates); err != nil {
		return res, err
	}
	log.Info("run complete",
		"days", len(dates),
		"ticks", res.Ticks,
		"fills", len(res.Fills),
		"realized", res.Summary.RealizedPnL,
		"return_pct", res.Summary.ReturnPct,
		"terminated", res.Terminated,
	)
	return res, nil
}

// addPoints extends the timeline with the day's fills and its closing equity.
func (res *Result) addPoints(capital float64, day *domain.TradingDay, dr engine.DayResult) {
	if dr.Skipped {
		return
	}
	for _, f := range dr.Fills {
		res.Timeline = append(res.Timeline, Point{
			Time:   f.Timestamp,
			Date:   dr.Date,
			Equity: capital + f.CumRealized + f.Unrealized,
		})
	}
	if dr.Ticks == 0 {
		return
	}
	res.Timeline = append(res.Timeline, Point{
		Time:   day.Ticks[dr.Ticks-1].Timestamp,
		Date:   dr.Date,
		Equity: dr.Equity,
		DayEnd: true,
	})
}

func (r *Runner) persist(ctx context.Context, res *Result, dates []string) error {
	for _, fs := range r.exports {
		if err := fs.SaveFills(ctx, res.RunID, res.Fills); err != nil {
			return fmt.Errorf("saving fills for %s: %w", res.Instrument, err)
		}
	}
	if r.runs == nil {
		return nil
	}
	run := &store.Run{
		ID:           res.RunID,
		AccountID:    r.cfg.Account.ID,
		Instrument:   res.Instrument,
		Days:         len(dates),
		Ticks:        res.Ticks,
		Fills:        len(res.Fills),
		Capital:      res.Summary.InitialCapital,
		RealizedPnL:  res.Summary.RealizedPnL,
		FinalCapital: res.Summary.FinalCapital,
		Terminated:   res.Terminated,
		CreatedAt:    time.Now().UTC(),
	}
	if len(dates) > 0 {
		run.StartDate, run.EndDate = dates[0], dates[len(dates)-1]
	}
	if err := r.runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("saving run for %s: %w", res.Instrument, err)
	}
	return nil
}
