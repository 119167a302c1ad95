package transactions

import (
	"strconv"
	"time"

	"zenith/internal/core"
)

type seedRow struct {
	daysAgo     int
	description string
	cents       int64
	typ         core.TransactionType
	categoryID  string
}

var seedRows = []seedRow{
	{15, "Salário Mensal - Mês Anterior", 520000, core.Income, "cat_income_salary"},
	{10, "Compras de Supermercado", 8530, core.Expense, "cat_expense_groceries"},
	{8, "Conta de Luz", 6500, core.Expense, "cat_expense_utilities"},
	{5, "Pagamento Projeto Freelance", 75000, core.Income, "cat_income_freelance"},
	{3, "Jantar no Italiano", 6275, core.Expense, "cat_expense_dining_out"},
	{2, "Aluguel Mensal", 135000, core.Expense, "cat_expense_rent_mortgage"},
	{1, "Ingressos Cinema", 3000, core.Expense, "cat_expense_entertainment"},
}

// Initial returns the sample collection shown on first run, dated relative
// to now.
func Initial(now time.Time) []core.Transaction {
	out := make([]core.Transaction, 0, len(seedRows))
	for i, r := range seedRows {
		out = append(out, core.Transaction{
			ID:          "t" + strconv.Itoa(i+1),
			Date:        core.DateOf(now.AddDate(0, 0, -r.daysAgo)),
			Description: r.description,
			Amount:      core.Money{Cents: r.cents},
			Type:        r.typ,
			CategoryID:  r.categoryID,
		})
	}
	return out
}
