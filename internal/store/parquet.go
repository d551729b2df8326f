package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tickledger/internal/domain"
)

// Compile-time interface checks.
var _ TickStore = (*ParquetStore)(nil)
var _ FillStore = (*ParquetStore)(nil)

// ParquetStore implements TickStore and FillStore using Parquet files on
// disk, laid out as:
//
//	<DataDir>/<INSTRUMENT>/ticks/<YYYY-MM-DD>.parquet
//	<DataDir>/<INSTRUMENT>/fills/<RUN_ID>.parquet
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// TickRecord is the Parquet schema for one best-quote row. The daily price
// limits are repeated on every row, as exchanges publish them.
type TickRecord struct {
	Timestamp   int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Bid         float64 `parquet:"bid"`
	BidSize     int64   `parquet:"bid_size"`
	Ask         float64 `parquet:"ask"`
	AskSize     int64   `parquet:"ask_size"`
	Mid         float64 `parquet:"mid"`
	LongSignal  int32   `parquet:"long_signal"`
	ShortSignal int32   `parquet:"short_signal"`
	UpperLimit  float64 `parquet:"upper_limit"`
	LowerLimit  float64 `parquet:"lower_limit"`
}

// FillRecord is the Parquet schema for one settlement row.
type FillRecord struct {
	Seq         int64   `parquet:"seq"`
	AccountID   string  `parquet:"account_id,dict"`
	OrderID     int64   `parquet:"order_id"`
	Timestamp   int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Instrument  string  `parquet:"instrument,dict"`
	Price       float64 `parquet:"price"`
	Side        string  `parquet:"side,dict"`
	Action      string  `parquet:"action,dict"`
	Tier        string  `parquet:"tier,dict"`
	Split       bool    `parquet:"split"`
	Qty         int64   `parquet:"qty"`
	Value       float64 `parquet:"value"`
	ExchangeFee float64 `parquet:"exchange_fee"`
	TotalFee    float64 `parquet:"total_fee"`
	LongPos     int64   `parquet:"long_pos"`
	ShortPos    int64   `parquet:"short_pos"`
	Unrealized  float64 `parquet:"unrealized"`
	GrossPnL    float64 `parquet:"gross_pnl"`
	RealizedPnL float64 `parquet:"realized_pnl"`
	CumRealized float64 `parquet:"cum_realized"`
}

// ---------------------------------------------------------------------------
// TickStore implementation
// ---------------------------------------------------------------------------

// WriteDay writes one trading day to its own file, overwriting any previous
// version.
func (s *ParquetStore) WriteDay(_ context.Context, day *domain.TradingDay) error {
	if day.Instrument == "" || day.Date == "" {
		return fmt.Errorf("writing ticks: instrument and date are required")
	}
	records := make([]TickRecord, len(day.Ticks))
	for i, t := range day.Ticks {
		records[i] = TickRecord{
			Timestamp:   t.Timestamp.UnixMilli(),
			Bid:         t.Bid,
			BidSize:     t.BidSize,
			Ask:         t.Ask,
			AskSize:     t.AskSize,
			Mid:         t.Mid,
			LongSignal:  int32(t.LongSignal),
			ShortSignal: int32(t.ShortSignal),
			UpperLimit:  day.UpperLimit,
			LowerLimit:  day.LowerLimit,
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})

	path := s.tickPath(day.Instrument, day.Date)
	if err := writeParquetFile(path, records); err != nil {
		return fmt.Errorf("writing ticks for %s/%s: %w", day.Instrument, day.Date, err)
	}
	return nil
}

// ReadDay reads one trading day. The price limits come from the first row.
func (s *ParquetStore) ReadDay(_ context.Context, instrument, date string) (*domain.TradingDay, error) {
	path := s.tickPath(instrument, date)
	records, err := readParquetFile[TickRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading ticks for %s/%s: %w", instrument, date, err)
	}

	n := len(records)
	cols := domain.TickColumns{
		Timestamps:  make([]time.Time, n),
		Bid:         make([]float64, n),
		Ask:         make([]float64, n),
		BidSize:     make([]int64, n),
		AskSize:     make([]int64, n),
		Mid:         make([]float64, n),
		LongSignal:  make([]int, n),
		ShortSignal: make([]int, n),
	}
	for i, r := range records {
		cols.Timestamps[i] = time.UnixMilli(r.Timestamp).UTC()
		cols.Bid[i] = r.Bid
		cols.Ask[i] = r.Ask
		cols.BidSize[i] = r.BidSize
		cols.AskSize[i] = r.AskSize
		cols.Mid[i] = r.Mid
		cols.LongSignal[i] = int(r.LongSignal)
		cols.ShortSignal[i] = int(r.ShortSignal)
	}
	ticks, err := domain.ZipTicks(cols)
	if err != nil {
		return nil, fmt.Errorf("reading ticks for %s/%s: %w", instrument, date, err)
	}

	day := &domain.TradingDay{
		Date:       date,
		Instrument: strings.ToUpper(instrument),
		Ticks:      ticks,
	}
	if n > 0 {
		day.UpperLimit = records[0].UpperLimit
		day.LowerLimit = records[0].LowerLimit
	}
	return day, nil
}

// ListDates lists the dates that have tick files for instrument.
func (s *ParquetStore) ListDates(_ context.Context, instrument string) ([]string, error) {
	dir := filepath.Join(s.DataDir, strings.ToUpper(instrument), "ticks")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		date := strings.TrimSuffix(name, ".parquet")
		if _, err := time.Parse("2006-01-02", date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// ---------------------------------------------------------------------------
// FillStore implementation
// ---------------------------------------------------------------------------

// SaveFills exports a run's settlement table. Fills are grouped by
// instrument, one file per (instrument, run).
func (s *ParquetStore) SaveFills(_ context.Context, runID string, fills []domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	groups := make(map[string][]FillRecord)
	for i, f := range fills {
		groups[f.Instrument] = append(groups[f.Instrument], toFillRecord(int64(i), f))
	}
	for instrument, records := range groups {
		path := s.fillPath(instrument, runID)
		if err := writeParquetFile(path, records); err != nil {
			return fmt.Errorf("writing fills for %s/%s: %w", instrument, runID, err)
		}
	}
	return nil
}

// ListFills reads back every fill exported for runID across instruments.
func (s *ParquetStore) ListFills(_ context.Context, runID string) ([]domain.Fill, error) {
	pattern := filepath.Join(s.DataDir, "*", "fills", runID+".parquet")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var fills []domain.Fill
	for _, path := range paths {
		records, err := readParquetFile[FillRecord](path)
		if err != nil {
			return nil, fmt.Errorf("reading fills %s: %w", path, err)
		}
		sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
		for _, r := range records {
			fills = append(fills, fromFillRecord(r))
		}
	}
	return fills, nil
}

func toFillRecord(seq int64, f domain.Fill) FillRecord {
	return FillRecord{
		Seq:         seq,
		AccountID:   f.AccountID,
		OrderID:     f.OrderID,
		Timestamp:   f.Timestamp.UnixMilli(),
		Instrument:  f.Instrument,
		Price:       f.Price,
		Side:        string(f.Side),
		Action:      string(f.Action),
		Tier:        string(f.Tier),
		Split:       f.Split,
		Qty:         int64(f.Qty),
		Value:       f.Value,
		ExchangeFee: f.ExchangeFee,
		TotalFee:    f.TotalFee,
		LongPos:     int64(f.LongPos),
		ShortPos:    int64(f.ShortPos),
		Unrealized:  f.Unrealized,
		GrossPnL:    f.GrossPnL,
		RealizedPnL: f.RealizedPnL,
		CumRealized: f.CumRealized,
	}
}

func fromFillRecord(r FillRecord) domain.Fill {
	return domain.Fill{
		AccountID:   r.AccountID,
		OrderID:     r.OrderID,
		Timestamp:   time.UnixMilli(r.Timestamp).UTC(),
		Instrument:  r.Instrument,
		Price:       r.Price,
		Side:        domain.Side(r.Side),
		Action:      domain.Action(r.Action),
		Tier:        domain.FeeTier(r.Tier),
		Split:       r.Split,
		Qty:         int(r.Qty),
		Value:       r.Value,
		ExchangeFee: r.ExchangeFee,
		TotalFee:    r.TotalFee,
		LongPos:     int(r.LongPos),
		ShortPos:    int(r.ShortPos),
		Unrealized:  r.Unrealized,
		GrossPnL:    r.GrossPnL,
		RealizedPnL: r.RealizedPnL,
		CumRealized: r.CumRealized,
	}
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

func (s *ParquetStore) tickPath(instrument, date string) string {
	return filepath.Join(s.DataDir, strings.ToUpper(instrument), "ticks", date+".parquet")
}

func (s *ParquetStore) fillPath(instrument, runID string) string {
	return filepath.Join(s.DataDir, strings.ToUpper(instrument), "fills", runID+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
