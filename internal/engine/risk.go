package engine

import (
	"log/slog"
	"time"

	"tickledger/internal/domain"
	"tickledger/internal/ledger"
	"tickledger/internal/util"
)

// GateDecision is the outcome of the per-tick risk check. Decisions are
// ordinary control flow, not errors.
type GateDecision int

const (
	// Delegate hands the tick to the signal executor.
	Delegate GateDecision = iota
	// Hold keeps trading halted while the halt timer runs.
	Hold
	// Halt closed all positions near a price limit and started the halt timer.
	Halt
	// Flatten closed all positions on an external flatten signal.
	Flatten
	// Terminate closed all positions below the capital floor and stopped
	// trading for good.
	Terminate
	// StopSession ends the day: the halt lasted longer than its timeout and
	// the quote is still pinned to the limit.
	StopSession
)

var decisionNames = [...]string{"delegate", "hold", "halt", "flatten", "terminate", "stop_session"}

func (d GateDecision) String() string {
	if d < 0 || int(d) >= len(decisionNames) {
		return "unknown"
	}
	return decisionNames[d]
}

// EndsSession reports whether no further ticks are evaluated today.
func (d GateDecision) EndsSession() bool {
	return d == Terminate || d == StopSession
}

// RiskConfig holds the gate thresholds.
//
//   - FreezeRatio: equity floor as a fraction of starting capital (e.g. 0.4).
//   - StopTicks: distance from the daily limit, in ticks, that counts as
//     "near the limit".
//   - HaltTimeout: trading time a halt lasts before the session is abandoned
//     if the quote is still near the limit.
type RiskConfig struct {
	FreezeRatio float64
	StopTicks   float64
	HaltTimeout time.Duration
}

// DefaultRiskConfig returns the standard thresholds.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		FreezeRatio: 0.4,
		StopTicks:   3,
		HaltTimeout: 15 * time.Minute,
	}
}

// RiskGate enforces price-limit halts, forced flattening and the capital
// floor. The first matching rule wins.
type RiskGate struct {
	cfg    RiskConfig
	rc     *domain.RunContext
	ledger *ledger.Ledger
	log    *slog.Logger
}

// NewRiskGate creates a RiskGate acting on l and the halt state in rc.
func NewRiskGate(cfg RiskConfig, rc *domain.RunContext, l *ledger.Ledger, log *slog.Logger) *RiskGate {
	if log == nil {
		log = util.Discard()
	}
	return &RiskGate{cfg: cfg, rc: rc, ledger: l, log: log}
}

// NearLimit reports whether the quote is within StopTicks of either daily
// price limit.
func (g *RiskGate) NearLimit(t domain.Tick, upper, lower float64) bool {
	band := g.cfg.StopTicks * g.rc.Instrument.TickSize
	return t.Ask > upper-band || t.Bid < lower+band
}

// Check evaluates one tick. now is the session clock reading in seconds. A
// forced close-all that fails returns the ledger error alongside the
// decision that triggered it.
func (g *RiskGate) Check(now float64, t domain.Tick, upper, lower float64) (GateDecision, error) {
	rc := g.rc
	near := g.NearLimit(t, upper, lower)
	timeout := g.cfg.HaltTimeout.Seconds()
	holding := !g.ledger.Flat()

	if rc.Halted {
		rc.HaltElapsed = now - rc.HaltStart
	}

	switch {
	case rc.Halted && rc.HaltElapsed > timeout && near:
		g.log.Warn("limit still reached after halt, stopping session",
			"ts", t.Timestamp,
			"halt_elapsed_s", rc.HaltElapsed,
		)
		return StopSession, nil

	case rc.Halted && rc.HaltElapsed <= timeout:
		return Hold, nil

	case holding && near:
		err := g.ledger.CloseAll(t.Bid, t.Ask)
		rc.Halted = true
		rc.HaltStart = now
		rc.HaltElapsed = 0
		g.log.Warn("near price limit, closing all and halting",
			"ts", t.Timestamp,
			"ask", t.Ask,
			"up_trigger", upper-g.cfg.StopTicks*rc.Instrument.TickSize,
			"bid", t.Bid,
			"down_trigger", lower+g.cfg.StopTicks*rc.Instrument.TickSize,
		)
		return Halt, err

	case holding && flattenSignal(t):
		err := g.ledger.CloseAll(t.Bid, t.Ask)
		g.log.Info("flatten signal, closing all",
			"ts", t.Timestamp,
		)
		return Flatten, err

	case holding && g.ledger.Equity() < rc.Capital*g.cfg.FreezeRatio:
		equity := g.ledger.Equity()
		err := g.ledger.CloseAll(t.Bid, t.Ask)
		rc.Terminated = true
		g.log.Error("equity below capital floor, terminating",
			"ts", t.Timestamp,
			"equity", equity,
			"floor", rc.Capital*g.cfg.FreezeRatio,
		)
		return Terminate, err

	default:
		rc.Halted = false
		rc.HaltStart = 0
		rc.HaltElapsed = 0
		return Delegate, nil
	}
}

func flattenSignal(t domain.Tick) bool {
	return domain.BookCode(domain.SideLong, t.LongSignal) == domain.SignalFlatten ||
		domain.BookCode(domain.SideShort, t.ShortSignal) == domain.SignalFlatten
}
