package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenith/internal/core"
)

func tx(id string, y, m, d int, cents int64, t core.TransactionType, cat string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        core.NewDate(y, m, d),
		Description: id,
		Amount:      core.Money{Cents: cents},
		Type:        t,
		CategoryID:  cat,
	}
}

var cats = core.DefaultCategories()

func scenario() []core.Transaction {
	return []core.Transaction{
		tx("a", 2024, 1, 5, 10000, core.Income, "cat_income_salary"),
		tx("b", 2024, 1, 10, 3000, core.Expense, "cat_expense_groceries"),
		tx("c", 2024, 2, 1, 5000, core.Income, "cat_income_freelance"),
		tx("d", 2024, 2, 3, 1000, core.Expense, "cat_expense_transport"),
	}
}

func TestComputeSummaryEmpty(t *testing.T) {
	s := ComputeSummary(nil, time.Now())
	assert.Equal(t, Summary{}, s)
}

func TestComputeSummaryScenario(t *testing.T) {
	now := time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)
	s := ComputeSummary(scenario(), now)

	assert.Equal(t, int64(15000), s.TotalIncome.Cents)
	assert.Equal(t, int64(4000), s.TotalExpenses.Cents)
	assert.Equal(t, int64(11000), s.Balance.Cents)
	assert.Equal(t, int64(5000), s.IncomeThisMonth.Cents)
	assert.Equal(t, int64(1000), s.ExpensesThisMonth.Cents)
	assert.InDelta(t, 73.33, s.SavingsRate, 0.01)
	assert.Equal(t, s.TotalIncome.Cents-s.TotalExpenses.Cents, s.Balance.Cents)
}

func TestComputeSummaryTwoMonthExample(t *testing.T) {
	txs := []core.Transaction{
		tx("jan-in", 2024, 1, 5, 10000, core.Income, "cat_income_salary"),
		tx("jan-out", 2024, 1, 20, 4000, core.Expense, "cat_expense_groceries"),
		tx("feb-in", 2024, 2, 2, 5000, core.Income, "cat_income_freelance"),
	}
	s := ComputeSummary(txs, time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, int64(15000), s.TotalIncome.Cents)
	assert.Equal(t, int64(4000), s.TotalExpenses.Cents)
	assert.Equal(t, int64(11000), s.Balance.Cents)
	assert.InDelta(t, 73.3, s.SavingsRate, 0.05)

	series := MonthlyOverview(txs)
	require.Len(t, series, 2)
	assert.Equal(t, int64(6000), series[0].Net().Cents)
	assert.Equal(t, int64(5000), series[1].Net().Cents)
}

func TestSavingsRateWithoutIncome(t *testing.T) {
	txs := []core.Transaction{tx("x", 2024, 1, 1, 500, core.Expense, "cat_expense_other")}
	s := ComputeSummary(txs, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Zero(t, s.SavingsRate)
	assert.Equal(t, int64(-500), s.Balance.Cents)
}

func TestExpenseByCategory(t *testing.T) {
	txs := append(scenario(),
		tx("e", 2024, 2, 4, 3000, core.Expense, "cat_expense_dining_out"),
		tx("f", 2024, 2, 5, 200, core.Expense, "Legacy Orphan"),
	)
	got := ExpenseByCategory(txs, cats)

	require.Len(t, got, 3)
	// ties keep registration order: groceries is registered before dining out
	assert.Equal(t, "cat_expense_groceries", got[0].CategoryID)
	assert.Equal(t, "cat_expense_dining_out", got[1].CategoryID)
	assert.Equal(t, "cat_expense_transport", got[2].CategoryID)
	for i, c := range got {
		assert.Positive(t, c.Amount.Cents)
		if i > 0 {
			assert.LessOrEqual(t, c.Amount.Cents, got[i-1].Amount.Cents)
		}
	}
	for _, c := range got {
		assert.NotEqual(t, "cat_expense_healthcare", c.CategoryID, "zero-total category must be absent")
	}
}

func TestCategoryBreakdownIncome(t *testing.T) {
	got := CategoryBreakdown(scenario(), cats, core.Income)
	require.Len(t, got, 2)
	assert.Equal(t, "Salário", got[0].Name)
	assert.Equal(t, int64(10000), got[0].Amount.Cents)
}

func TestMonthlyOverview(t *testing.T) {
	got := MonthlyOverview(scenario())
	require.Len(t, got, 2)
	assert.Equal(t, "Jan 2024", got[0].Label)
	assert.Equal(t, int64(10000), got[0].Income.Cents)
	assert.Equal(t, int64(3000), got[0].Expenses.Cents)
	assert.Equal(t, "Feb 2024", got[1].Label)
	assert.Equal(t, int64(4000), got[1].Net().Cents)
}

func TestMonthlyOverviewKeepsLastTwelveChronologically(t *testing.T) {
	var txs []core.Transaction
	// 15 months spanning a year boundary, inserted newest first
	for i := 14; i >= 0; i-- {
		d := time.Date(2023, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC)
		txs = append(txs, tx("m", d.Year(), int(d.Month()), 1, 100, core.Income, "cat_income_other"))
	}
	got := MonthlyOverview(txs)
	require.Len(t, got, MonthlyWindow)
	assert.Equal(t, "Apr 2023", got[0].Label)
	assert.Equal(t, "Mar 2024", got[len(got)-1].Label)
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		assert.True(t, prev.Year < cur.Year || (prev.Year == cur.Year && prev.Month < cur.Month))
	}
}

func TestSumPeriod(t *testing.T) {
	p := SumPeriod(MonthlyOverview(scenario()))
	assert.Equal(t, int64(15000), p.Income.Cents)
	assert.Equal(t, int64(4000), p.Expenses.Cents)
	assert.Equal(t, p.Income.Cents-p.Expenses.Cents, p.Net.Cents)

	txs := append(scenario(),
		tx("e", 2023, 12, 30, 2500, core.Expense, "cat_expense_rent_mortgage"),
		tx("f", 2024, 3, 1, 700, core.Income, "cat_income_other"))
	series := MonthlyOverview(txs)
	var net int64
	for _, m := range series {
		net += m.Net().Cents
	}
	assert.Equal(t, net, SumPeriod(series).Net.Cents, "net equals the sum of monthly nets")

	empty := SumPeriod(nil)
	assert.Equal(t, PeriodTotals{}, empty)
}

func TestRecentAmounts(t *testing.T) {
	income := core.Income
	got := RecentAmounts(scenario(), &income, 10)
	require.Len(t, got, 2)
	assert.Equal(t, int64(10000), got[0].Cents, "oldest first")
	assert.Equal(t, int64(5000), got[1].Cents)

	all := RecentAmounts(scenario(), nil, 3)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{3000, 5000, 1000}, []int64{all[0].Cents, all[1].Cents, all[2].Cents})

	assert.Empty(t, RecentAmounts(scenario(), nil, 0))
	assert.NotNil(t, RecentAmounts(nil, nil, 5))
}

func TestMonthAmounts(t *testing.T) {
	now := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	got := MonthAmounts(scenario(), core.Expense, now, 10)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1000), got[0].Cents)
}

func TestDailyNetSeries(t *testing.T) {
	txs := append(scenario(), tx("same-day", 2024, 1, 5, 2500, core.Expense, "cat_expense_other"))
	got := DailyNetSeries(txs)
	require.Len(t, got, 4)
	assert.Equal(t, int64(7500), got[0].Cents)
	assert.Equal(t, int64(-3000), got[1].Cents)

	var many []core.Transaction
	for d := 1; d <= 15; d++ {
		many = append(many, tx("d", 2024, 3, d, int64(d), core.Income, "cat_income_other"))
	}
	last := DailyNetSeries(many)
	require.Len(t, last, DailyWindow)
	assert.Equal(t, int64(6), last[0].Cents)
	assert.Equal(t, int64(15), last[DailyWindow-1].Cents)
}

func TestSavingsSparkline(t *testing.T) {
	got := SavingsSparkline([]core.Money{{Cents: 1000}, {Cents: -500}}, 50)
	assert.Equal(t, []core.Money{{Cents: 500}, {Cents: 0}}, got)
}

func TestDashboardEmpty(t *testing.T) {
	v := Dashboard(nil, cats, time.Now())
	assert.Equal(t, Summary{}, v.Summary)
	assert.NotNil(t, v.ExpenseByCategory)
	assert.Empty(t, v.ExpenseByCategory)
	assert.Empty(t, v.Monthly)
	assert.Empty(t, v.Sparklines.Balance)
	assert.Zero(t, v.Count)
}
