// Package cli holds formatting and plain-terminal rendering shared by the
// planhaus commands.
package cli

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatMoney formats an amount as dollars with thousands separators.
// Whole amounts drop the cents: 12500 -> "$12,500", 80.5 -> "$80.50".
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return FormatDecimal(decimal.NewFromFloat(v))
}

// FormatDecimal is FormatMoney for exact amounts.
func FormatDecimal(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	d = d.Round(2)
	whole := d.Truncate(0)
	out := humanize.Comma(whole.IntPart())
	if cents := d.Sub(whole); !cents.IsZero() {
		out += fmt.Sprintf(".%02d", cents.Shift(2).IntPart())
	}
	return sign + "$" + out
}

// FormatMoneyShort abbreviates large amounts: 12500 -> "$12.5k".
func FormatMoneyShort(v float64) string {
	abs := math.Abs(v)
	sign := ""
	if v < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1e6:
		return fmt.Sprintf("%s$%.1fM", sign, abs/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%s$%.1fk", sign, abs/1e3)
	default:
		return fmt.Sprintf("%s$%.0f", sign, abs)
	}
}

// FormatNumber adds comma separators to an integer.
func FormatNumber(n int64) string {
	return humanize.Comma(n)
}

// FormatPercent formats a 0-1 ratio as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatPct formats a value already scaled to 0-100.
func FormatPct(p float64) string {
	if p == math.Trunc(p) {
		return fmt.Sprintf("%.0f%%", p)
	}
	return fmt.Sprintf("%.1f%%", p)
}

// FormatDays formats a day countdown.
func FormatDays(days int) string {
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "1 day"
	default:
		return FormatNumber(int64(days)) + " days"
	}
}

// FormatDate formats an optional date, "-" when unset.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 2006")
}

// FormatRelative formats t relative to now ("3 minutes ago").
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatDayOfWeek returns a 3-letter day abbreviation.
func FormatDayOfWeek(weekday int) string {
	days := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	if weekday >= 0 && weekday < 7 {
		return days[weekday]
	}
	return "???"
}

// Truncate shortens s to n runes with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
