package gather

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"tickledger/internal/domain"
	"tickledger/internal/store"
	"tickledger/internal/util"
)

// Column names of the cleaned tick exports.
const (
	colTime       = "datetime"
	colTradingDay = "TradingDay"
	colBid        = "BidPrice1"
	colBidSize    = "BidVolume1"
	colAsk        = "AskPrice1"
	colAskSize    = "AskVolume1"
	colMid        = "MidPrice"
	colLong       = "sigl"
	colShort      = "sigs"
	colUpper      = "UpperLimitPrice"
	colLower      = "LowerLimitPrice"
)

var requiredColumns = []string{colBid, colBidSize, colAsk, colAskSize, colMid, colUpper, colLower}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"20060102 15:04:05.999999999",
}

// ErrMissingColumn is returned when the CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// CSVTickGatherer imports one instrument's tick CSV into a TickStore, one
// trading day per file.
type CSVTickGatherer struct {
	path       string
	instrument string
	store      store.TickStore
	log        *slog.Logger
}

// NewCSVTickGatherer creates a gatherer reading path for instrument.
func NewCSVTickGatherer(path, instrument string, ts store.TickStore, log *slog.Logger) *CSVTickGatherer {
	if log == nil {
		log = util.Discard()
	}
	return &CSVTickGatherer{path: path, instrument: strings.ToUpper(instrument), store: ts, log: log}
}

// Name implements Gatherer.
func (g *CSVTickGatherer) Name() string { return "csv-ticks" }

// Run parses the file and writes every trading day it contains.
func (g *CSVTickGatherer) Run(ctx context.Context) error {
	f, err := os.Open(g.path)
	if err != nil {
		return err
	}
	defer f.Close()

	days, err := ParseTicks(f, g.instrument)
	if err != nil {
		return fmt.Errorf("%s: %w", g.path, err)
	}
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.store.WriteDay(ctx, day); err != nil {
			return err
		}
		g.log.Info("imported day",
			"instrument", day.Instrument,
			"date", day.Date,
			"ticks", len(day.Ticks),
			"upper", day.UpperLimit,
			"lower", day.LowerLimit,
		)
	}
	return nil
}

// ParseTicks reads a headered tick CSV. The timestamp is taken from the
// "datetime" column, or the first column when its header is empty. Rows are
// grouped by the TradingDay column when present, otherwise by calendar date.
// The signal columns are optional and read as zero when absent. Days are
// returned in date order with their ticks sorted by time.
func ParseTicks(r io.Reader, instrument string) ([]*domain.TradingDay, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	if _, ok := idx[colTime]; !ok {
		if len(header) > 0 && strings.TrimSpace(header[0]) == "" {
			idx[colTime] = 0
		} else {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colTime)
		}
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	days := make(map[string]*domain.TradingDay)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, err
		}
		p := rowParser{rec: rec, idx: idx}

		ts := p.timestamp(colTime)
		date := ts.Format("2006-01-02")
		if _, ok := idx[colTradingDay]; ok {
			date = p.date(colTradingDay)
		}
		tick := domain.Tick{
			Timestamp:   ts,
			Bid:         p.float(colBid),
			BidSize:     p.integer(colBidSize),
			Ask:         p.float(colAsk),
			AskSize:     p.integer(colAskSize),
			Mid:         p.float(colMid),
			LongSignal:  int(p.optInt(colLong)),
			ShortSignal: int(p.optInt(colShort)),
		}
		upper, lower := p.float(colUpper), p.float(colLower)
		if p.err != nil {
			return nil, fmt.Errorf("line %d: %w", line, p.err)
		}

		day, ok := days[date]
		if !ok {
			day = &domain.TradingDay{Date: date, Instrument: instrument, UpperLimit: upper, LowerLimit: lower}
			days[date] = day
		}
		day.Ticks = append(day.Ticks, tick)
	}

	out := make([]*domain.TradingDay, 0, len(days))
	for _, day := range days {
		sort.SliceStable(day.Ticks, func(i, j int) bool {
			return day.Ticks[i].Timestamp.Before(day.Ticks[j].Timestamp)
		})
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// rowParser accumulates the first conversion error of a row.
type rowParser struct {
	rec []string
	idx map[string]int
	err error
}

func (p *rowParser) field(col string) string {
	i, ok := p.idx[col]
	if !ok || i >= len(p.rec) {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *rowParser) fail(col, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s %q: %w", col, v, err)
	}
}

func (p *rowParser) float(col string) float64 {
	v := p.field(col)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, v, err)
	} else if math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(col, v, errors.New("not a finite number"))
	}
	return f
}

// integer accepts "3" and "3.0", as volume columns are often written as floats.
func (p *rowParser) integer(col string) int64 {
	v := p.field(col)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, v, err)
	} else if math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(col, v, errors.New("not a finite number"))
	}
	return int64(f)
}

func (p *rowParser) optInt(col string) int64 {
	if _, ok := p.idx[col]; !ok || p.field(col) == "" {
		return 0
	}
	return p.integer(col)
}

func (p *rowParser) timestamp(col string) time.Time {
	v := p.field(col)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts
		}
	}
	p.fail(col, v, errors.New("unrecognised timestamp"))
	return time.Time{}
}

func (p *rowParser) date(col string) string {
	v := p.field(col)
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if d, err := time.Parse(layout, v); err == nil {
			return d.Format("2006-01-02")
		}
	}
	p.fail(col, v, errors.New("unrecognised date"))
	return ""
}
