// Package transactions owns the transaction collection: loading it from a
// storage slot, validating and applying mutations, and persisting every
// change as a whole-document rewrite.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zenith/internal/core"
	"zenith/internal/storage"
)

var ErrNotFound = errors.New("transaction not found")

// PersistError reports that a change was applied in memory but could not
// be written to the slot. The in-memory collection stays authoritative.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist after %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// RowError pins a validation failure to an import row (0-based).
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row+1, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Draft is user input for a new or edited transaction. Category may be an
// id or a display name.
type Draft struct {
	Date        core.Date
	Description string
	Amount      core.Money
	Type        core.TransactionType
	Category    string
}

// Resolve validates the draft against reg and returns the transaction it
// describes, without an id.
func (d Draft) Resolve(reg *core.Registry) (core.Transaction, error) {
	tx := core.Transaction{
		Date:        d.Date,
		Description: strings.TrimSpace(d.Description),
		Amount:      d.Amount,
		Type:        d.Type,
	}
	if c, ok := reg.Lookup(d.Category); ok {
		tx.CategoryID = c.ID
	} else {
		tx.CategoryID = strings.TrimSpace(d.Category)
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := reg.Check(tx.CategoryID, tx.Type); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func newID(imported bool) string {
	if imported {
		return "txn_imported_" + uuid.NewString()
	}
	return "txn_" + uuid.NewString()
}

type Option func(*Store)

func WithKey(key string) Option { return func(s *Store) { s.key = key } }

func WithNotifier(n Notifier) Option { return func(s *Store) { s.notifier = n } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithRegistry(r *core.Registry) Option { return func(s *Store) { s.registry = r } }

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithSeed controls whether an empty slot starts with the sample data.
func WithSeed(seed bool) Option { return func(s *Store) { s.seed = seed } }

// Store holds the ordered collection, most recently added first. The
// slice is never mutated in place: every change installs a new one, so
// snapshots handed out by List stay consistent.
type Store struct {
	mu       sync.RWMutex
	txs      []core.Transaction
	slot     storage.Slot
	key      string
	registry *core.Registry
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
	seed     bool
}

func NewStore(slot storage.Slot, opts ...Option) *Store {
	s := &Store{
		slot:     slot,
		key:      storage.DefaultKey,
		registry: core.DefaultRegistry(),
		now:      time.Now,
		logger:   slog.Default(),
		seed:     true,
		txs:      []core.Transaction{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Registry() *core.Registry { return s.registry }

// Initial is the collection used when the slot holds nothing yet.
func (s *Store) Initial() []core.Transaction {
	if !s.seed {
		return []core.Transaction{}
	}
	return Initial(s.now())
}

// Load replaces the collection with the slot's content. An empty slot
// yields Initial. Documents from older schema versions are upgraded and
// written back.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.slot.Read(ctx, s.key)
	if errors.Is(err, storage.ErrSlotEmpty) {
		s.mu.Lock()
		s.txs = s.Initial()
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "Storage slot empty, starting from initial data", "count", len(s.txs))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	txs, version, err := Decode(data, s.registry)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = txs
	s.logger.InfoContext(ctx, "Transactions loaded", "count", len(txs), "schema_version", version)
	if version < SchemaVersion {
		if err := s.Save(ctx, txs); err != nil {
			s.logger.WarnContext(ctx, "Failed to rewrite upgraded document", "error", err)
		}
	}
	return nil
}

// Save writes snapshot to the slot at the current schema version.
func (s *Store) Save(ctx context.Context, snapshot []core.Transaction) error {
	data, err := Encode(snapshot)
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}
	return s.slot.Write(ctx, s.key, data)
}

// List returns a copy of the collection in stored order.
func (s *Store) List() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

func (s *Store) Get(id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.txs[i], nil
	}
	return core.Transaction{}, ErrNotFound
}

func (s *Store) indexOf(id string) int {
	for i, t := range s.txs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// commit installs next and writes it through. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op string, next []core.Transaction) error {
	s.txs = next
	if err := s.Save(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist transactions", "operation", op, "error", err)
		return &PersistError{Op: op, Err: err}
	}
	return nil
}

// notify publishes while s.mu is still held, so events leave in commit order.
func (s *Store) notify(ctx context.Context, kind EventKind, txs []core.Transaction) {
	if s.notifier == nil {
		return
	}
	ev := Event{Kind: kind, Transactions: txs, At: s.now()}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish transaction event", "kind", kind, "error", err)
	}
}

// Create validates d and prepends it under a fresh id.
func (s *Store) Create(ctx context.Context, d Draft) (core.Transaction, error) {
	tx, err := d.Resolve(s.registry)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = newID(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]core.Transaction, 0, len(s.txs)+1)
	next = append(next, tx)
	next = append(next, s.txs...)
	err = s.commit(ctx, "create", next)
	s.notify(ctx, EventCreated, []core.Transaction{tx})
	return tx, err
}

// Update replaces the fields of transaction id with d. The id and the
// imported flag are preserved.
func (s *Store) Update(ctx context.Context, id string, d Draft) (core.Transaction, error) {
	tx, err := d.Resolve(s.registry)
	if err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, ErrNotFound
	}
	tx.ID = id
	tx.Imported = s.txs[i].Imported
	next := make([]core.Transaction, len(s.txs))
	copy(next, s.txs)
	next[i] = tx
	err = s.commit(ctx, "update", next)
	s.notify(ctx, EventUpdated, []core.Transaction{tx})
	return tx, err
}

// Delete removes transaction id. Deleting an unknown id is a no-op and
// reports false.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	removed := s.txs[i]
	next := make([]core.Transaction, 0, len(s.txs)-1)
	next = append(next, s.txs[:i]...)
	next = append(next, s.txs[i+1:]...)
	err := s.commit(ctx, "delete", next)
	s.notify(ctx, EventDeleted, []core.Transaction{removed})
	return true, err
}

// Import validates every draft, then prepends them in input order under
// fresh ids with the imported flag set. Any invalid row rejects the batch.
func (s *Store) Import(ctx context.Context, drafts []Draft) ([]core.Transaction, error) {
	added := make([]core.Transaction, 0, len(drafts))
	for i, d := range drafts {
		tx, err := d.Resolve(s.registry)
		if err != nil {
			return nil, &RowError{Row: i, Err: err}
		}
		tx.ID = newID(true)
		tx.Imported = true
		added = append(added, tx)
	}
	if len(added) == 0 {
		return added, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]core.Transaction, 0, len(s.txs)+len(added))
	next = append(next, added...)
	next = append(next, s.txs...)
	err := s.commit(ctx, "import", next)
	s.notify(ctx, EventImported, added)
	return added, err
}
