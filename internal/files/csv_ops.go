package files

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type csvCodec struct{}

// decode expects a header row naming at least the columns in header, in
// any order.
func (csvCodec) decode(data []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []Row{}, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range header {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	out := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		get := func(name string) string {
			if j := col[name]; j < len(rec) {
				return strings.TrimSpace(rec[j])
			}
			return ""
		}
		if strings.Join(rec, "") == "" {
			continue
		}
		amt, err := decimal.NewFromString(strings.ReplaceAll(get("amount"), ",", "."))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid amount %q", i+2, get("amount"))
		}
		out = append(out, Row{
			Date:        get("date"),
			Description: get("description"),
			Amount:      amt,
			Type:        get("type"),
			Category:    get("category"),
		})
	}
	return out, nil
}

func (csvCodec) encode(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append(append([]string{"id"}, header...), "imported")); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			r.ID,
			r.Date,
			r.Description,
			r.Amount.StringFixed(2),
			r.Type,
			r.Category,
			fmt.Sprint(r.Imported),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
