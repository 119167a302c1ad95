package worker

import (
	"context"
	"fmt"
	"log/slog"

	"zenith/internal/amqp"
	"zenith/internal/core"
	"zenith/internal/sheets"
	"zenith/internal/transactions"
)

// Source lists the transactions currently held by the store.
type Source interface {
	List() []core.Transaction
}

// MirrorWorker applies transaction change events to a spreadsheet mirror.
type MirrorWorker struct {
	mirror    sheets.Mirror
	reader    sheets.MirrorReader
	source    Source
	batchSize int
}

// NewMirrorWorker wires a mirror. reader and source are optional and only
// needed by StartupSync.
func NewMirrorWorker(mirror sheets.Mirror, reader sheets.MirrorReader, source Source, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &MirrorWorker{
		mirror:    mirror,
		reader:    reader,
		source:    source,
		batchSize: batchSize,
	}
}

// HandleEvent processes a single change event from AMQP. It has the
// amqp.Handler signature; a returned error requeues the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"kind", msg.Kind,
		"count", len(msg.TransactionIDs),
		"timestamp", msg.Timestamp)

	switch msg.Kind {
	case transactions.EventCreated, transactions.EventUpdated, transactions.EventImported:
		if err := w.upsert(ctx, msg.Transactions); err != nil {
			return fmt.Errorf("mirror %s event: %w", msg.Kind, err)
		}
	case transactions.EventDeleted:
		ids := msg.TransactionIDs
		if len(ids) == 0 {
			ids = msg.Event().IDs()
		}
		if err := w.mirror.Remove(ctx, ids); err != nil {
			return fmt.Errorf("mirror delete event: %w", err)
		}
	default:
		slog.WarnContext(ctx, "Ignoring unknown event kind", "kind", msg.Kind)
		return nil
	}

	slog.InfoContext(ctx, "Successfully mirrored transaction event",
		"kind", msg.Kind,
		"ids", msg.TransactionIDs)
	return nil
}

func (w *MirrorWorker) upsert(ctx context.Context, txs []core.Transaction) error {
	for start := 0; start < len(txs); start += w.batchSize {
		end := start + w.batchSize
		if end > len(txs) {
			end = len(txs)
		}
		if err := w.mirror.Upsert(ctx, txs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// StartupSync pushes the full transaction list to the mirror and clears
// rows whose transaction no longer exists. This recovers from missed AMQP
// messages or worker downtime. The store stays the source of truth.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	if w.source == nil {
		slog.InfoContext(ctx, "No transaction source configured, skipping startup sync")
		return nil
	}
	current := w.source.List()
	if err := w.upsert(ctx, current); err != nil {
		return fmt.Errorf("startup upsert: %w", err)
	}

	removed := 0
	if w.reader != nil {
		mirrored, err := w.reader.List(ctx)
		if err != nil {
			return fmt.Errorf("read mirror for startup sync: %w", err)
		}
		live := make(map[string]bool, len(current))
		for _, t := range current {
			live[t.ID] = true
		}
		var stale []string
		for _, t := range mirrored {
			if !live[t.ID] {
				stale = append(stale, t.ID)
			}
		}
		if len(stale) > 0 {
			if err := w.mirror.Remove(ctx, stale); err != nil {
				return fmt.Errorf("remove stale rows: %w", err)
			}
		}
		removed = len(stale)
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(current),
		"removed", removed)
	return nil
}
