package transactions

import (
	"context"
	"time"

	"zenith/internal/core"
)

type EventKind string

const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventImported EventKind = "imported"
)

// Event describes one committed change to the collection. For deletions
// Transactions holds the removed records.
type Event struct {
	Kind         EventKind
	Transactions []core.Transaction
	At           time.Time
}

// IDs returns the ids of the affected transactions.
func (e Event) IDs() []string {
	ids := make([]string, len(e.Transactions))
	for i, t := range e.Transactions {
		ids[i] = t.ID
	}
	return ids
}

// Notifier receives committed changes in commit order. It is called with
// the store locked and must not call back into the store. Failures never
// roll a change back.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
