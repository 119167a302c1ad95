package sheets

import (
	"context"

	"zenith/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror keeps a one-way copy of the transaction list in an external
	// spreadsheet. Rows are keyed by transaction id.
	Mirror interface {
		// Upsert rewrites rows whose id is already present and appends the rest.
		Upsert(ctx context.Context, txs []core.Transaction) error
		// Remove clears the rows of the given ids. Unknown ids are ignored.
		Remove(ctx context.Context, ids []string) error
	}

	// MirrorReader lists what is currently mirrored.
	MirrorReader interface {
		List(ctx context.Context) ([]core.Transaction, error)
	}
)
