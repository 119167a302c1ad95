// Package files reads and writes transaction lists as JSON, CSV or YAML
// for bulk import and export.
package files

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"zenith/internal/core"
	"zenith/internal/transactions"
)

type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	YAML Format = "yaml"
)

// ParseFormat accepts a format name or a file name with a known extension.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if ext := filepath.Ext(s); ext != "" {
		s = strings.TrimPrefix(ext, ".")
	}
	switch s {
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unsupported file format %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case YAML:
		return "application/yaml; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

// Row is the interchange shape of one transaction. Category holds a
// display name on export and a name or id on import. ID and Imported are
// written on export and ignored on import.
type Row struct {
	ID          string
	Date        string
	Description string
	Amount      decimal.Decimal
	Type        string
	Category    string
	Imported    bool
}

var header = []string{"date", "description", "amount", "type", "category"}

// Draft converts a row into store input.
func (r Row) Draft() (transactions.Draft, error) {
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return transactions.Draft{}, err
	}
	typ, err := core.ParseTransactionType(r.Type)
	if err != nil {
		return transactions.Draft{}, err
	}
	amount, err := core.MoneyFromDecimal(r.Amount)
	if err != nil {
		return transactions.Draft{}, err
	}
	return transactions.Draft{
		Date:        date,
		Description: r.Description,
		Amount:      amount,
		Type:        typ,
		Category:    r.Category,
	}, nil
}

// RowFrom converts a stored transaction for export.
func RowFrom(t core.Transaction, reg *core.Registry) Row {
	return Row{
		ID:          t.ID,
		Date:        t.Date.String(),
		Description: t.Description,
		Amount:      t.Amount.Decimal(),
		Type:        string(t.Type),
		Category:    reg.Resolve(t.CategoryID),
		Imported:    t.Imported,
	}
}
