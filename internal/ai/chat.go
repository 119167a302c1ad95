package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zenith/internal/metrics"
)

// MaxHistory bounds how many previous turns are sent with a question.
const MaxHistory = 20

var ErrEmptyQuestion = errors.New("question is empty")

// Assistant answers free-form questions about the user's finances.
type Assistant struct {
	gen Generator
}

func NewAssistant(gen Generator) *Assistant {
	return &Assistant{gen: gen}
}

func financialContext(v metrics.DashboardView) string {
	var b strings.Builder
	b.WriteString("You are a concise personal-finance assistant. Use the user's figures below when relevant and never invent transactions.\n\n")
	fmt.Fprintf(&b, "Date: %s\n", v.Now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Transactions recorded: %d\n", v.Count)
	fmt.Fprintf(&b, "Total income: %s\n", v.Summary.TotalIncome.Format())
	fmt.Fprintf(&b, "Total expenses: %s\n", v.Summary.TotalExpenses.Format())
	fmt.Fprintf(&b, "Balance: %s\n", v.Summary.Balance.Format())
	fmt.Fprintf(&b, "Income this month: %s\n", v.Summary.IncomeThisMonth.Format())
	fmt.Fprintf(&b, "Expenses this month: %s\n", v.Summary.ExpensesThisMonth.Format())
	fmt.Fprintf(&b, "Savings rate: %.1f%%\n", v.Summary.SavingsRate)
	if len(v.ExpenseByCategory) > 0 {
		b.WriteString("Top expense categories:\n")
		for i, c := range v.ExpenseByCategory {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Amount.Format())
		}
	}
	return b.String()
}

// Ask sends question together with the most recent history and a summary
// of the dashboard figures.
func (a *Assistant) Ask(ctx context.Context, history []Turn, question string, view metrics.DashboardView) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if a == nil || a.gen == nil {
		return "", ErrUnavailable
	}
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	turns := make([]Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, Turn{Role: RoleUser, Text: question})

	answer, err := a.gen.Generate(ctx, Request{
		System:      financialContext(view),
		Turns:       turns,
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
