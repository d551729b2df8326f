// Package store defines storage interfaces for persisting and retrieving
// tick data, settlement fills and backtest run records.
package store

import (
	"context"
	"time"

	"tickledger/internal/domain"
)

// TickStore persists and retrieves one instrument's ticks a trading day at a
// time.
type TickStore interface {
	// WriteDay persists a trading day, replacing any existing data for the
	// same instrument and date.
	WriteDay(ctx context.Context, day *domain.TradingDay) error

	// ReadDay returns the ticks and price limits for instrument on date
	// (YYYY-MM-DD).
	ReadDay(ctx context.Context, instrument, date string) (*domain.TradingDay, error)

	// ListDates returns the dates with tick data for instrument, ascending.
	ListDates(ctx context.Context, instrument string) ([]string, error)
}

// FillStore persists and retrieves the settlement table of a run.
type FillStore interface {
	// SaveFills persists fills for runID in the given order.
	SaveFills(ctx context.Context, runID string, fills []domain.Fill) error

	// ListFills returns the fills of runID in the order they were recorded.
	ListFills(ctx context.Context, runID string) ([]domain.Fill, error)
}

// RunStore persists and retrieves backtest run summaries.
type RunStore interface {
	// SaveRun inserts or replaces a run record.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a single run by its ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs for instrument, newest first. An empty
	// instrument lists every run.
	ListRuns(ctx context.Context, instrument string) ([]Run, error)
}

// Run is the persisted summary of one (instrument, account) backtest.
type Run struct {
	ID           string
	AccountID    string
	Instrument   string
	StartDate    string
	EndDate      string
	Days         int
	Ticks        int
	Fills        int
	Capital      float64
	RealizedPnL  float64
	FinalCapital float64
	Terminated   bool
	CreatedAt    time.Time
}
