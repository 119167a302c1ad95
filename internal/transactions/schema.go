package transactions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"zenith/internal/core"
)

// SchemaVersion is the version written by Encode.
//
//	0: bare JSON array, category stored by display name, no imported flag
//	1: versioned envelope, imported flag always present
//	2: category stored by id
const SchemaVersion = 2

var (
	ErrUnsupportedSchema = errors.New("unsupported schema version")
	ErrCorruptDocument   = errors.New("corrupt transaction document")
)

type document struct {
	SchemaVersion int                `json:"schemaVersion"`
	Transactions  []core.Transaction `json:"transactions"`
}

type envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	Transactions  json.RawMessage `json:"transactions"`
}

// legacyRecord reads every shape a transaction has had on disk.
type legacyRecord struct {
	ID          string               `json:"id"`
	Date        core.Date            `json:"date"`
	Description string               `json:"description"`
	Amount      core.Money           `json:"amount"`
	Type        string               `json:"type"`
	Category    string               `json:"category"`
	CategoryID  string               `json:"categoryId"`
	Imported    bool                 `json:"imported"`
}

// Encode serializes a snapshot at the current schema version.
func Encode(txs []core.Transaction) ([]byte, error) {
	if txs == nil {
		txs = []core.Transaction{}
	}
	return json.Marshal(document{SchemaVersion: SchemaVersion, Transactions: txs})
}

// Decode parses a stored document of any known version and upgrades it to
// the current model. It reports the version it found so callers can
// rewrite outdated documents.
func Decode(data []byte, reg *core.Registry) ([]core.Transaction, int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []core.Transaction{}, SchemaVersion, nil
	}

	version := 0
	raw := json.RawMessage(data)
	if data[0] == '{' {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		}
		version = env.SchemaVersion
		raw = env.Transactions
		if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			raw = json.RawMessage("[]")
		}
	}
	if version < 0 || version > SchemaVersion {
		return nil, version, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}

	var records []legacyRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, version, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	out := make([]core.Transaction, 0, len(records))
	for i, r := range records {
		tx, err := upgrade(r, version, reg)
		if err != nil {
			return nil, version, fmt.Errorf("%w: record %d: %w", ErrCorruptDocument, i, err)
		}
		out = append(out, tx)
	}
	return out, version, nil
}

// upgrade brings one record to the current model. Records whose amount or
// type break the model's invariants are refused rather than loaded.
func upgrade(r legacyRecord, version int, reg *core.Registry) (core.Transaction, error) {
	typ, err := core.ParseTransactionType(r.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := r.Amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          r.ID,
		Date:        r.Date,
		Description: r.Description,
		Amount:      r.Amount,
		Type:        typ,
		CategoryID:  r.CategoryID,
		Imported:    r.Imported,
	}
	if tx.ID == "" {
		tx.ID = newID(r.Imported)
	}
	if version < 2 || tx.CategoryID == "" {
		tx.CategoryID = migrateCategory(r, reg)
	}
	return tx, nil
}

// migrateCategory maps a legacy category name to its id. Names the
// registry does not know are kept verbatim.
func migrateCategory(r legacyRecord, reg *core.Registry) string {
	ref := r.Category
	if ref == "" {
		ref = r.CategoryID
	}
	if c, ok := reg.Lookup(ref); ok {
		return c.ID
	}
	return ref
}
