package files

import (
	"fmt"
	"io"

	"zenith/internal/core"
	"zenith/internal/transactions"
)

// codec is the format-specific step of Import and Export.
type codec interface {
	decode(data []byte) ([]Row, error)
	encode(rows []Row) ([]byte, error)
}

func codecFor(f Format) (codec, error) {
	switch f {
	case JSON:
		return jsonCodec{}, nil
	case CSV:
		return csvCodec{}, nil
	case YAML:
		return yamlCodec{}, nil
	}
	return nil, fmt.Errorf("unsupported file format %q", f)
}

// MaxImportBytes caps the size of an import payload.
const MaxImportBytes = 5 << 20

// Import reads r in format f and converts every row to a draft. A row that
// cannot be converted fails the whole import with a *transactions.RowError.
func Import(r io.Reader, f Format) ([]transactions.Draft, error) {
	c, err := codecFor(f)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	if len(data) > MaxImportBytes {
		return nil, fmt.Errorf("import exceeds %d bytes", MaxImportBytes)
	}
	rows, err := c.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	drafts := make([]transactions.Draft, 0, len(rows))
	for i, row := range rows {
		d, err := row.Draft()
		if err != nil {
			return nil, &transactions.RowError{Row: i, Err: err}
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// Export writes txs to w in format f, resolving category ids to names.
func Export(w io.Writer, f Format, txs []core.Transaction, reg *core.Registry) error {
	c, err := codecFor(f)
	if err != nil {
		return err
	}
	rows := make([]Row, len(txs))
	for i, t := range txs {
		rows[i] = RowFrom(t, reg)
	}
	data, err := c.encode(rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f, err)
	}
	_, err = w.Write(data)
	return err
}
