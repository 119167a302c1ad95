package metrics

import (
	"sort"
	"time"

	"zenith/internal/core"
)

// byDateDesc returns a copy of txs stably sorted most-recent-first.
func byDateDesc(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out
}

func reverse(ms []core.Money) {
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
}

// RecentAmounts returns the amounts of the count most recent transactions
// of type t (all types when t is nil), oldest first.
func RecentAmounts(txs []core.Transaction, t *core.TransactionType, count int) []core.Money {
	out := make([]core.Money, 0, max(count, 0))
	if count <= 0 {
		return out
	}
	for _, tx := range byDateDesc(txs) {
		if t != nil && tx.Type != *t {
			continue
		}
		out = append(out, tx.Amount)
		if len(out) == count {
			break
		}
	}
	reverse(out)
	return out
}

// MonthAmounts is RecentAmounts restricted to the calendar month of now.
func MonthAmounts(txs []core.Transaction, t core.TransactionType, now time.Time, count int) []core.Money {
	filtered := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if sameMonth(tx.Date, now) {
			filtered = append(filtered, tx)
		}
	}
	return RecentAmounts(filtered, &t, count)
}

// DailyNetSeries sums signed amounts per calendar day, ascending, keeping
// only days with activity and at most the last DailyWindow of them.
func DailyNetSeries(txs []core.Transaction) []core.Money {
	perDay := make(map[string]int64)
	for _, tx := range txs {
		perDay[tx.Date.String()] += tx.Signed().Cents
	}
	days := make([]string, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	// YYYY-MM-DD keys sort chronologically
	sort.Strings(days)
	if len(days) > DailyWindow {
		days = days[len(days)-DailyWindow:]
	}
	out := make([]core.Money, len(days))
	for i, d := range days {
		out[i] = core.Money{Cents: perDay[d]}
	}
	return out
}

// SavingsSparkline scales a daily net series by the savings rate, clamping
// negative points to zero.
func SavingsSparkline(daily []core.Money, rate float64) []core.Money {
	out := make([]core.Money, len(daily))
	for i, m := range daily {
		v := float64(m.Cents) * rate / 100
		if v < 0 {
			v = 0
		}
		out[i] = core.Money{Cents: int64(v + 0.5)}
	}
	return out
}
