package files

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type jsonRow struct {
	ID          string          `json:"id,omitempty"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Imported    bool            `json:"imported,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) decode(data []byte) ([]Row, error) {
	var in []jsonRow
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	out := make([]Row, len(in))
	for i, r := range in {
		out[i] = Row{
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
			Type:        r.Type,
			Category:    r.Category,
		}
	}
	return out, nil
}

func (jsonCodec) encode(rows []Row) ([]byte, error) {
	out := make([]jsonRow, len(rows))
	for i, r := range rows {
		out[i] = jsonRow{
			ID:          r.ID,
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
			Type:        r.Type,
			Category:    r.Category,
			Imported:    r.Imported,
		}
	}
	return json.MarshalIndent(out, "", "  ")
}
