// Package report renders run summaries and settlement tables as aligned text
// for the command-line tools.
package report

import (
	"fmt"
	"math"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats an amount with two decimals and comma-separated
// thousands.
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return FormatRatio(v)
	}
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	cents := int(math.Round(v * 100))
	return fmt.Sprintf("%s%s.%02d", sign, FormatInt(cents/100), cents%100)
}

// FormatPct formats a percentage already scaled to 100, e.g. 12.5 as
// "+12.5%".
func FormatPct(p float64) string {
	if math.IsNaN(p) {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", p)
}

// FormatRatio formats a metric that may be undefined (NaN) or unbounded.
func FormatRatio(r float64) string {
	switch {
	case math.IsNaN(r):
		return "-"
	case math.IsInf(r, 1):
		return "inf"
	case math.IsInf(r, -1):
		return "-inf"
	default:
		return fmt.Sprintf("%.2f", r)
	}
}
