package google

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"zenith/internal/core"

	"github.com/shopspring/decimal"
)

// Column positions of a mirrored row.
const (
	colID = iota
	colDate
	colDescription
	colAmount
	colType
	colCategory
	colImported
)

// sheetDateLayouts are the renderings a spreadsheet may hand back for a date
// written as YYYY-MM-DD.
var sheetDateLayouts = []string{core.DateLayout, "1/2/2006", "2/1/2006", "02.01.2006"}

func rowValues(tx core.Transaction, reg *core.Registry) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		tx.Description,
		tx.Amount.String(),
		string(tx.Type),
		reg.Resolve(tx.CategoryID),
		tx.Imported,
	}
}

// indexRows maps transaction ids to their 1-based sheet row number. The
// header row and cleared rows are skipped; the first occurrence of an id wins.
func indexRows(values [][]any) map[string]int {
	out := make(map[string]int, len(values))
	for i, row := range values {
		cols := toStrings(row)
		id := safeGet(cols, colID)
		if id == "" || (i == 0 && indexOf(cols, "ID") == colID) {
			continue
		}
		if _, dup := out[id]; !dup {
			out[id] = i + 1
		}
	}
	return out
}

// parseRow turns a mirrored row back into a transaction. Category names are
// mapped to ids through the registry; unknown names are kept verbatim.
func parseRow(row []any, reg *core.Registry) (core.Transaction, error) {
	cols := toStrings(row)
	id := safeGet(cols, colID)
	if id == "" {
		return core.Transaction{}, errors.New("empty id")
	}
	date, err := parseSheetDate(safeGet(cols, colDate))
	if err != nil {
		return core.Transaction{}, err
	}
	cents, ok := parseEurosToCents(safeGet(cols, colAmount))
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, safeGet(cols, colAmount))
	}
	typ, err := core.ParseTransactionType(safeGet(cols, colType))
	if err != nil {
		return core.Transaction{}, err
	}
	category := safeGet(cols, colCategory)
	if c, ok := reg.Lookup(category); ok {
		category = c.ID
	}
	imported, _ := strconv.ParseBool(safeGet(cols, colImported))
	return core.Transaction{
		ID:          id,
		Date:        date,
		Description: safeGet(cols, colDescription),
		Amount:      core.Money{Cents: cents},
		Type:        typ,
		CategoryID:  category,
		Imported:    imported,
	}, nil
}

// sameRow reports whether an existing sheet row already holds want.
func sameRow(have []any, want []any) bool {
	a := toStrings(have)
	b := toStrings(want)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if i == colAmount {
			x, okx := parseEurosToCents(a[i])
			y, oky := parseEurosToCents(b[i])
			if !okx || !oky || x != y {
				return false
			}
			continue
		}
		if i == colDate {
			x, errx := parseSheetDate(a[i])
			y, erry := parseSheetDate(b[i])
			if errx != nil || erry != nil || !x.Equal(y.Time) {
				return false
			}
			continue
		}
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func parseSheetDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.ParseDate(s)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseEurosToCents reads a displayed amount such as "85.3", "$1,350.00" or
// "85,30". A lone comma is taken as the decimal separator.
func parseEurosToCents(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, core.CurrencySymbol)
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	m, err := core.MoneyFromDecimal(d)
	if err != nil {
		return 0, false
	}
	return m.Cents, true
}
