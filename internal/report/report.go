package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"tickledger/internal/domain"
	"tickledger/internal/metrics"
	"tickledger/internal/store"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// Row is one line of the multi-instrument backtest table.
type Row struct {
	Instrument string
	RunID      string
	Days       int
	Terminated bool
	Summary    metrics.Summary
}

// WriteResults prints one line per instrument run.
func WriteResults(w io.Writer, rows []Row) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "INSTRUMENT\tRUN\tDAYS\tTICKS\tFILLS\tREALIZED\tRETURN\tDRAWDOWN\tWIN\tPNL RATIO\tTERMINATED")
	for _, r := range rows {
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%v\n",
			r.Instrument, r.RunID, r.Days, FormatInt(s.Ticks), FormatInt(s.Fills),
			FormatMoney(s.RealizedPnL), FormatPct(s.ReturnPct), FormatMoney(s.Drawdown),
			FormatRatio(s.All.WinRate), FormatRatio(s.All.PnLRatio), r.Terminated)
	}
	return tw.Flush()
}

// WriteRuns prints the stored run records.
func WriteRuns(w io.Writer, runs []store.Run) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "RUN\tINSTRUMENT\tACCOUNT\tFROM\tTO\tDAYS\tFILLS\tREALIZED\tFINAL\tTERMINATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%v\n",
			r.ID, r.Instrument, r.AccountID, r.StartDate, r.EndDate, r.Days, FormatInt(r.Fills),
			FormatMoney(r.RealizedPnL), FormatMoney(r.FinalCapital), r.Terminated)
	}
	return tw.Flush()
}

// WriteFills prints the settlement table.
func WriteFills(w io.Writer, fills []domain.Fill) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ORDER\tTIME\tSIDE\tACTION\tQTY\tPRICE\tFEE\tPNL\tCUM\tLONG\tSHORT")
	for _, f := range fills {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%d\n",
			f.OrderID, f.Timestamp.Format("2006-01-02 15:04:05.000"), f.Side, f.Tag(), f.Qty, f.Price,
			f.TotalFee, f.RealizedPnL, f.CumRealized, f.LongPos, f.ShortPos)
	}
	return tw.Flush()
}

// WriteSummary prints the account report of one run.
func WriteSummary(w io.Writer, run *store.Run, s metrics.Summary) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "run\t%s\n", run.ID)
	fmt.Fprintf(tw, "instrument\t%s\n", run.Instrument)
	fmt.Fprintf(tw, "period\t%s .. %s (%d days)\n", run.StartDate, run.EndDate, run.Days)
	fmt.Fprintf(tw, "ticks modelled\t%s\n", FormatInt(s.Ticks))
	fmt.Fprintf(tw, "fills\t%s\n", FormatInt(s.Fills))
	fmt.Fprintf(tw, "initial capital\t%s\n", FormatMoney(s.InitialCapital))
	fmt.Fprintf(tw, "final capital\t%s\n", FormatMoney(s.FinalCapital))
	fmt.Fprintf(tw, "realized pnl\t%s\n", FormatMoney(s.RealizedPnL))
	fmt.Fprintf(tw, "return\t%s\n", FormatPct(s.ReturnPct))
	fmt.Fprintf(tw, "max drawdown\t%s (%s)\n", FormatMoney(s.Drawdown), FormatPct(s.DrawdownRatio*100))
	fmt.Fprintf(tw, "terminated\t%v\n", run.Terminated)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "SIDE\tWIN RATE\tPNL RATIO\tEXPECTANCY")
	for _, row := range []struct {
		name string
		st   metrics.SideStats
	}{{"all", s.All}, {"long", s.Long}, {"short", s.Short}} {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.name,
			FormatRatio(row.st.WinRate), FormatRatio(row.st.PnLRatio), FormatRatio(row.st.Expectancy))
	}
	fmt.Fprintln(tw)

	keys := make([]metrics.CountKey, 0, len(s.Counts))
	for key := range s.Counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Side != keys[j].Side {
			return keys[i].Side < keys[j].Side
		}
		return keys[i].Action < keys[j].Action
	})
	fmt.Fprintln(tw, "SIDE\tACTION\tFILLS")
	for _, key := range keys {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", key.Side, key.Action, s.Counts[key])
	}
	return tw.Flush()
}
