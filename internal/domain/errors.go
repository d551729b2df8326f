package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks unknown instruments or missing reference data.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidPositionState marks a ledger action invoked while its
	// side-position precondition fails.
	ErrInvalidPositionState = errors.New("invalid position state")
	// ErrLedgerInconsistent marks a lot queue that disagrees with its position.
	ErrLedgerInconsistent = errors.New("ledger inconsistent")
	// ErrLengthMismatch marks columnar tick input with differing lengths.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrUnorderedTicks marks a tick stream that goes back in time.
	ErrUnorderedTicks = errors.New("ticks not in timestamp order")
	// ErrInvalidQuote marks a tick whose bid, ask or mid is NaN or infinite.
	ErrInvalidQuote = errors.New("invalid quote")
	// ErrNoClosingFills marks a metric requested over no closing fills.
	ErrNoClosingFills = errors.New("no closing fills")
)

// ConfigError describes a missing or invalid configuration entry.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// PositionError describes which ledger precondition failed.
type PositionError struct {
	Op       string
	Side     Side
	Position int
	Qty      int
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("invalid position state: %s %s with position %d, qty %d", e.Op, e.Side, e.Position, e.Qty)
}

func (e *PositionError) Unwrap() error { return ErrInvalidPositionState }
