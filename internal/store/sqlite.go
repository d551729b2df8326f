package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tickledger/internal/domain"
	"tickledger/internal/util"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ FillStore = (*SQLiteStore)(nil)
var _ RunStore = (*SQLiteStore)(nil)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// busyRetries bounds how often a write is retried while another worker holds
// the database lock.
const busyRetries = 5

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		account_id    TEXT NOT NULL,
		instrument    TEXT NOT NULL,
		start_date    TEXT NOT NULL,
		end_date      TEXT NOT NULL,
		days          INTEGER NOT NULL,
		ticks         INTEGER NOT NULL,
		fills         INTEGER NOT NULL,
		capital       REAL NOT NULL,
		realized_pnl  REAL NOT NULL,
		final_capital REAL NOT NULL,
		terminated    INTEGER NOT NULL,
		created_at    INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_runs_instrument ON runs (instrument, created_at);`,
	`CREATE TABLE IF NOT EXISTS fills (
		run_id       TEXT NOT NULL,
		seq          INTEGER NOT NULL,
		account_id   TEXT NOT NULL,
		order_id     INTEGER NOT NULL,
		ts           INTEGER NOT NULL,
		instrument   TEXT NOT NULL,
		price        REAL NOT NULL,
		side         TEXT NOT NULL,
		action       TEXT NOT NULL,
		tier         TEXT NOT NULL,
		split        INTEGER NOT NULL,
		qty          INTEGER NOT NULL,
		value        REAL NOT NULL,
		exchange_fee REAL NOT NULL,
		total_fee    REAL NOT NULL,
		long_pos     INTEGER NOT NULL,
		short_pos    INTEGER NOT NULL,
		unrealized   REAL NOT NULL,
		gross_pnl    REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		cum_realized REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`,
}

// SQLiteStore implements FillStore and RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting %s: %w", pragma, err)
		}
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// ---------------------------------------------------------------------------
// FillStore implementation
// ---------------------------------------------------------------------------

// SaveFills replaces the fills stored for runID in a single transaction.
func (s *SQLiteStore) SaveFills(ctx context.Context, runID string, fills []domain.Fill) error {
	return util.Retry(ctx, busyRetries, 50*time.Millisecond, isBusy, func() error {
		return s.saveFills(ctx, runID, fills)
	})
}

func (s *SQLiteStore) saveFills(ctx context.Context, runID string, fills []domain.Fill) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM fills WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("clearing fills: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fills (
		run_id, seq, account_id, order_id, ts, instrument, price, side, action, tier, split, qty,
		value, exchange_fee, total_fee, long_pos, short_pos, unrealized, gross_pnl, realized_pnl, cum_realized
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range fills {
		_, err := stmt.ExecContext(ctx,
			runID, i, f.AccountID, f.OrderID, f.Timestamp.UnixNano(), f.Instrument, f.Price,
			string(f.Side), string(f.Action), string(f.Tier), f.Split, f.Qty,
			f.Value, f.ExchangeFee, f.TotalFee, f.LongPos, f.ShortPos,
			f.Unrealized, f.GrossPnL, f.RealizedPnL, f.CumRealized,
		)
		if err != nil {
			return fmt.Errorf("inserting fill %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListFills returns the fills of runID in recorded order.
func (s *SQLiteStore) ListFills(ctx context.Context, runID string) ([]domain.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		account_id, order_id, ts, instrument, price, side, action, tier, split, qty,
		value, exchange_fee, total_fee, long_pos, short_pos, unrealized, gross_pnl, realized_pnl, cum_realized
		FROM fills WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying fills: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var (
			f                  domain.Fill
			ts                 int64
			side, action, tier string
		)
		err := rows.Scan(
			&f.AccountID, &f.OrderID, &ts, &f.Instrument, &f.Price, &side, &action, &tier, &f.Split, &f.Qty,
			&f.Value, &f.ExchangeFee, &f.TotalFee, &f.LongPos, &f.ShortPos,
			&f.Unrealized, &f.GrossPnL, &f.RealizedPnL, &f.CumRealized,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning fill: %w", err)
		}
		f.Timestamp = time.Unix(0, ts).UTC()
		f.Side = domain.Side(side)
		f.Action = domain.Action(action)
		f.Tier = domain.FeeTier(tier)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts or replaces a run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	return util.Retry(ctx, busyRetries, 50*time.Millisecond, isBusy, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs (
			id, account_id, instrument, start_date, end_date, days, ticks, fills,
			capital, realized_pnl, final_capital, terminated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.AccountID, run.Instrument, run.StartDate, run.EndDate, run.Days, run.Ticks, run.Fills,
			run.Capital, run.RealizedPnL, run.FinalCapital, run.Terminated, run.CreatedAt.UnixNano(),
		)
		return err
	})
}

const runColumns = `id, account_id, instrument, start_date, end_date, days, ticks, fills,
	capital, realized_pnl, final_capital, terminated, created_at`

// GetRun retrieves a single run by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs for instrument (or all runs), newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, instrument string) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	var args []any
	if instrument != "" {
		query += " WHERE instrument = ?"
		args = append(args, instrument)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r       Run
		created int64
	)
	err := sc.Scan(
		&r.ID, &r.AccountID, &r.Instrument, &r.StartDate, &r.EndDate, &r.Days, &r.Ticks, &r.Fills,
		&r.Capital, &r.RealizedPnL, &r.FinalCapital, &r.Terminated, &created,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	return &r, nil
}
