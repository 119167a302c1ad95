package metrics

import (
	"time"

	"zenith/internal/core"
)

// Sparklines are the small trend series shown beside dashboard figures.
type Sparklines struct {
	Income            []core.Money
	Expenses          []core.Money
	IncomeThisMonth   []core.Money
	ExpensesThisMonth []core.Money
	SavingsRate       []core.Money
	Balance           []core.Money
}

// DashboardView bundles everything the dashboard renders.
type DashboardView struct {
	Now               time.Time
	Summary           Summary
	ExpenseByCategory []core.CategoryAmount
	Monthly           []core.MonthTotals
	Totals            PeriodTotals
	Sparklines        Sparklines
	Count             int
}

// Dashboard computes the dashboard for a snapshot at instant now.
func Dashboard(txs []core.Transaction, cats []core.Category, now time.Time) DashboardView {
	income, expense := core.Income, core.Expense
	summary := ComputeSummary(txs, now)
	monthly := MonthlyOverview(txs)
	daily := DailyNetSeries(txs)
	return DashboardView{
		Now:               now,
		Summary:           summary,
		ExpenseByCategory: ExpenseByCategory(txs, cats),
		Monthly:           monthly,
		Totals:            SumPeriod(monthly),
		Sparklines: Sparklines{
			Income:            RecentAmounts(txs, &income, SparklinePoints),
			Expenses:          RecentAmounts(txs, &expense, SparklinePoints),
			IncomeThisMonth:   MonthAmounts(txs, core.Income, now, SparklinePoints),
			ExpensesThisMonth: MonthAmounts(txs, core.Expense, now, SparklinePoints),
			SavingsRate:       SavingsSparkline(daily, summary.SavingsRate),
			Balance:           daily,
		},
		Count: len(txs),
	}
}

// ReportView is the breakdown of one reporting period.
type ReportView struct {
	Period       Period
	Start        time.Time
	End          time.Time
	Transactions []core.Transaction
	Totals       PeriodTotals
	SavingsRate  float64
	Income       []core.CategoryAmount
	Expenses     []core.CategoryAmount
	Monthly      []core.MonthTotals
}

// Report computes the breakdown of period p as seen at instant now.
// Transactions are listed most-recent-first.
func Report(txs []core.Transaction, cats []core.Category, p Period, now time.Time) ReportView {
	start, end := p.Range(now)
	in := byDateDesc(FilterRange(txs, start, end))
	monthly := MonthlyOverview(in)
	totals := SumPeriod(monthly)
	return ReportView{
		Period:       p,
		Start:        start,
		End:          end,
		Transactions: in,
		Totals:       totals,
		SavingsRate:  SavingsRate(totals.Income, totals.Expenses),
		Income:       CategoryBreakdown(in, cats, core.Income),
		Expenses:     CategoryBreakdown(in, cats, core.Expense),
		Monthly:      monthly,
	}
}
