package core

// CategoryAmount is an amount aggregated under one category.
type CategoryAmount struct {
	CategoryID string
	Name       string
	Amount     Money
}

// MonthTotals is the income and expense total of one calendar month.
// Label is display text only; ordering uses Year and Month.
type MonthTotals struct {
	Year     int
	Month    int // 1-12
	Label    string
	Income   Money
	Expenses Money
}

// Net is income minus expenses for the month.
func (m MonthTotals) Net() Money {
	return m.Income.Sub(m.Expenses)
}
