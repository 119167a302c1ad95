package metrics

import (
	"fmt"
	"time"

	"zenith/internal/core"
)

// Period names a reporting window relative to an evaluation instant.
type Period string

const (
	CurrentMonth   Period = "currentMonth"
	LastMonth      Period = "lastMonth"
	CurrentQuarter Period = "currentQuarter"
	LastQuarter    Period = "lastQuarter"
	CurrentYear    Period = "currentYear"
	LastYear       Period = "lastYear"
)

// Periods lists every reporting window in menu order.
var Periods = []Period{CurrentMonth, LastMonth, CurrentQuarter, LastQuarter, CurrentYear, LastYear}

func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return CurrentMonth, nil
	}
	for _, p := range Periods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown period %q", s)
}

func (p Period) Label() string {
	switch p {
	case CurrentMonth:
		return "This month"
	case LastMonth:
		return "Last month"
	case CurrentQuarter:
		return "This quarter"
	case LastQuarter:
		return "Last quarter"
	case CurrentYear:
		return "This year"
	case LastYear:
		return "Last year"
	}
	return string(p)
}

// Range returns the half-open interval [start, end) of calendar dates the
// period covers. Bounds are UTC midnights, matching stored dates.
func (p Period) Range(now time.Time) (time.Time, time.Time) {
	y, m := now.Year(), now.Month()
	monthStart := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	quarterStart := time.Date(y, time.Month((int(m)-1)/3*3+1), 1, 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)

	switch p {
	case LastMonth:
		return monthStart.AddDate(0, -1, 0), monthStart
	case CurrentQuarter:
		return quarterStart, quarterStart.AddDate(0, 3, 0)
	case LastQuarter:
		return quarterStart.AddDate(0, -3, 0), quarterStart
	case CurrentYear:
		return yearStart, yearStart.AddDate(1, 0, 0)
	case LastYear:
		return yearStart.AddDate(-1, 0, 0), yearStart
	default:
		return monthStart, monthStart.AddDate(0, 1, 0)
	}
}

// FilterRange keeps transactions dated within [start, end).
func FilterRange(txs []core.Transaction, start, end time.Time) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.Date.Before(start) && t.Date.Before(end) {
			out = append(out, t)
		}
	}
	return out
}
