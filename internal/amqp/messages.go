package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"zenith/internal/core"
	"zenith/internal/transactions"
)

// TransactionEventMessage is the wire form of a committed store change.
// It carries the full records so consumers never read the storage slot.
type TransactionEventMessage struct {
	Kind           transactions.EventKind `json:"kind"`
	TransactionIDs []string               `json:"transaction_ids"`
	Transactions   []core.Transaction     `json:"transactions"`
	Timestamp      time.Time              `json:"timestamp"`
}

func NewTransactionEventMessage(ev transactions.Event) *TransactionEventMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &TransactionEventMessage{
		Kind:           ev.Kind,
		TransactionIDs: ev.IDs(),
		Transactions:   ev.Transactions,
		Timestamp:      ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventMessageFromJSON parses and sanity-checks a message body.
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case transactions.EventCreated, transactions.EventUpdated, transactions.EventDeleted, transactions.EventImported:
	default:
		return nil, fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	return &msg, nil
}

// Event converts the message back to a store event.
func (m *TransactionEventMessage) Event() transactions.Event {
	return transactions.Event{Kind: m.Kind, Transactions: m.Transactions, At: m.Timestamp}
}
