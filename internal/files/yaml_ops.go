package files

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type yamlRow struct {
	ID          string `yaml:"id,omitempty"`
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
	Amount      string `yaml:"amount"`
	Type        string `yaml:"type"`
	Category    string `yaml:"category"`
	Imported    bool   `yaml:"imported,omitempty"`
}

type yamlCodec struct{}

func (yamlCodec) decode(data []byte) ([]Row, error) {
	var in []yamlRow
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	out := make([]Row, len(in))
	for i, r := range in {
		amt, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid amount %q", i+1, r.Amount)
		}
		out[i] = Row{
			Date:        r.Date,
			Description: r.Description,
			Amount:      amt,
			Type:        r.Type,
			Category:    r.Category,
		}
	}
	return out, nil
}

func (yamlCodec) encode(rows []Row) ([]byte, error) {
	out := make([]yamlRow, len(rows))
	for i, r := range rows {
		out[i] = yamlRow{
			ID:          r.ID,
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount.StringFixed(2),
			Type:        r.Type,
			Category:    r.Category,
			Imported:    r.Imported,
		}
	}
	return yaml.Marshal(out)
}
