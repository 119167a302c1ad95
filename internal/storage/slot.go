// Package storage defines the key-value slot that holds the serialized
// transaction document, and its SQLite implementation. Other backends
// live in sub-packages.
package storage

import (
	"context"
	"errors"
)

// DefaultKey is the slot key the transaction document is stored under.
const DefaultKey = "transactions"

// ErrSlotEmpty is returned by Read when nothing was ever written under the key.
var ErrSlotEmpty = errors.New("storage slot is empty")

// Slot stores one opaque document per key. Write replaces the whole value.
type Slot interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Close() error
}

// Pinger is implemented by slots that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}
