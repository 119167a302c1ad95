package core

import (
	"strings"
)

var defaultCategories = []Category{
	{ID: "cat_income_salary", Name: "Salário", Type: Income},
	{ID: "cat_income_freelance", Name: "Freelance", Type: Income},
	{ID: "cat_income_investments", Name: "Investimentos", Type: Income},
	{ID: "cat_income_gifts", Name: "Presentes", Type: Income},
	{ID: "cat_income_other", Name: "Outras Receitas", Type: Income},
	{ID: "cat_expense_groceries", Name: "Supermercado", Type: Expense},
	{ID: "cat_expense_rent_mortgage", Name: "Aluguel/Hipoteca", Type: Expense},
	{ID: "cat_expense_utilities", Name: "Contas (Luz, Água, Gás)", Type: Expense},
	{ID: "cat_expense_transport", Name: "Transporte", Type: Expense},
	{ID: "cat_expense_dining_out", Name: "Restaurantes/Lanches", Type: Expense},
	{ID: "cat_expense_entertainment", Name: "Entretenimento", Type: Expense},
	{ID: "cat_expense_healthcare", Name: "Saúde", Type: Expense},
	{ID: "cat_expense_education", Name: "Educação", Type: Expense},
	{ID: "cat_expense_shopping", Name: "Compras", Type: Expense},
	{ID: "cat_expense_other", Name: "Outras Despesas", Type: Expense},
}

// DefaultCategories returns a copy of the built-in category list.
func DefaultCategories() []Category {
	out := make([]Category, len(defaultCategories))
	copy(out, defaultCategories)
	return out
}

// Registry is a read-only index over a fixed category list.
type Registry struct {
	all    []Category
	byID   map[string]Category
	byName map[string]Category
}

func NewRegistry(cats []Category) *Registry {
	r := &Registry{
		all:    make([]Category, len(cats)),
		byID:   make(map[string]Category, len(cats)),
		byName: make(map[string]Category, len(cats)),
	}
	copy(r.all, cats)
	for _, c := range cats {
		r.byID[c.ID] = c
		r.byName[normalizeName(c.Name)] = c
	}
	return r
}

// DefaultRegistry indexes DefaultCategories.
func DefaultRegistry() *Registry {
	return NewRegistry(defaultCategories)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// All returns every category in registration order.
func (r *Registry) All() []Category {
	out := make([]Category, len(r.all))
	copy(out, r.all)
	return out
}

// ByType returns the categories of one type in registration order.
func (r *Registry) ByType(t TransactionType) []Category {
	out := make([]Category, 0, len(r.all))
	for _, c := range r.all {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) ByID(id string) (Category, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// ByName matches case-insensitively, ignoring surrounding whitespace.
func (r *Registry) ByName(name string) (Category, bool) {
	c, ok := r.byName[normalizeName(name)]
	return c, ok
}

// Lookup resolves either an id or a display name.
func (r *Registry) Lookup(ref string) (Category, bool) {
	if c, ok := r.ByID(strings.TrimSpace(ref)); ok {
		return c, true
	}
	return r.ByName(ref)
}

// Resolve returns the display name for a category id. Orphaned references
// are shown verbatim.
func (r *Registry) Resolve(id string) string {
	if c, ok := r.byID[id]; ok {
		return c.Name
	}
	return id
}

// Check reports whether id names a category usable for transactions of type t.
func (r *Registry) Check(id string, t TransactionType) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingCategory
	}
	c, ok := r.byID[id]
	if !ok {
		return ErrMissingCategory
	}
	if c.Type != t {
		return ErrCategoryType
	}
	return nil
}
