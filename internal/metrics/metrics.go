// Package metrics derives dashboard and report figures from a transaction
// snapshot. Every function is pure: time-windowed figures take the
// evaluation instant as an argument and nothing reads the wall clock.
package metrics

import (
	"sort"
	"time"

	"zenith/internal/core"
)

const (
	// MonthlyWindow is how many calendar months the overview keeps.
	MonthlyWindow = 12
	// DailyWindow is how many active days the daily net series keeps.
	DailyWindow = 10
	// SparklinePoints is the default sparkline length.
	SparklinePoints = 10
)

// Summary holds the headline dashboard figures.
type Summary struct {
	TotalIncome       core.Money
	TotalExpenses     core.Money
	Balance           core.Money
	IncomeThisMonth   core.Money
	ExpensesThisMonth core.Money
	// SavingsRate is a percentage; 0 when there is no income.
	SavingsRate float64
}

// PeriodTotals reduces a monthly series.
type PeriodTotals struct {
	Income   core.Money
	Expenses core.Money
	Net      core.Money
}

func sameMonth(d core.Date, now time.Time) bool {
	return d.Year() == now.Year() && d.Month() == int(now.Month())
}

// ComputeSummary totals all transactions and those falling in the calendar
// month of now.
func ComputeSummary(txs []core.Transaction, now time.Time) Summary {
	var s Summary
	for _, t := range txs {
		thisMonth := sameMonth(t.Date, now)
		switch t.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			if thisMonth {
				s.IncomeThisMonth = s.IncomeThisMonth.Add(t.Amount)
			}
		case core.Expense:
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
			if thisMonth {
				s.ExpensesThisMonth = s.ExpensesThisMonth.Add(t.Amount)
			}
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	s.SavingsRate = SavingsRate(s.TotalIncome, s.TotalExpenses)
	return s
}

// SavingsRate is (income-expenses)/income as a percentage, or 0 without income.
func SavingsRate(income, expenses core.Money) float64 {
	if income.Cents <= 0 {
		return 0
	}
	return float64(income.Cents-expenses.Cents) / float64(income.Cents) * 100
}

// CategoryBreakdown totals transactions of type t per category, joined on
// category id. Categories with a zero total are omitted and the result is
// sorted by amount descending, keeping registration order on ties.
func CategoryBreakdown(txs []core.Transaction, cats []core.Category, t core.TransactionType) []core.CategoryAmount {
	totals := make(map[string]int64)
	for _, tx := range txs {
		if tx.Type == t {
			totals[tx.CategoryID] += tx.Amount.Cents
		}
	}
	out := make([]core.CategoryAmount, 0, len(cats))
	for _, c := range cats {
		if c.Type != t {
			continue
		}
		if cents := totals[c.ID]; cents != 0 {
			out = append(out, core.CategoryAmount{CategoryID: c.ID, Name: c.Name, Amount: core.Money{Cents: cents}})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.Cents > out[j].Amount.Cents
	})
	return out
}

// ExpenseByCategory is CategoryBreakdown restricted to expenses.
func ExpenseByCategory(txs []core.Transaction, cats []core.Category) []core.CategoryAmount {
	return CategoryBreakdown(txs, cats, core.Expense)
}

type monthKey struct {
	year  int
	month int
}

// MonthlyOverview buckets transactions by calendar month and returns the
// last MonthlyWindow months in chronological order.
func MonthlyOverview(txs []core.Transaction) []core.MonthTotals {
	buckets := make(map[monthKey]*core.MonthTotals)
	for _, t := range txs {
		k := monthKey{t.Date.Year(), t.Date.Month()}
		b, ok := buckets[k]
		if !ok {
			b = &core.MonthTotals{
				Year:  k.year,
				Month: k.month,
				Label: time.Date(k.year, time.Month(k.month), 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006"),
			}
			buckets[k] = b
		}
		switch t.Type {
		case core.Income:
			b.Income = b.Income.Add(t.Amount)
		case core.Expense:
			b.Expenses = b.Expenses.Add(t.Amount)
		}
	}
	out := make([]core.MonthTotals, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	if len(out) > MonthlyWindow {
		out = out[len(out)-MonthlyWindow:]
	}
	return out
}

// SumPeriod reduces a monthly series to its totals.
func SumPeriod(series []core.MonthTotals) PeriodTotals {
	var p PeriodTotals
	for _, m := range series {
		p.Income = p.Income.Add(m.Income)
		p.Expenses = p.Expenses.Add(m.Expenses)
	}
	p.Net = p.Income.Sub(p.Expenses)
	return p
}
