package amqp

import (
	"encoding/json"
	"time"
)

const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
)

// TransactionEvent is the lightweight message published after every
// transaction write. It carries only identifiers; consumers fetch the full
// record from the database so the queue never holds stale payloads.
type TransactionEvent struct {
	Event         string    `json:"event"`
	TransactionID string    `json:"transaction_id"`
	EntityID      string    `json:"entity_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionCreated(transactionID, entityID string) *TransactionEvent {
	return &TransactionEvent{
		Event:         EventTransactionCreated,
		TransactionID: transactionID,
		EntityID:      entityID,
		Timestamp:     time.Now(),
	}
}

func NewTransactionUpdated(transactionID, entityID string) *TransactionEvent {
	return &TransactionEvent{
		Event:         EventTransactionUpdated,
		TransactionID: transactionID,
		EntityID:      entityID,
		Timestamp:     time.Now(),
	}
}

func NewTransactionDeleted(transactionID, entityID string) *TransactionEvent {
	return &TransactionEvent{
		Event:         EventTransactionDeleted,
		TransactionID: transactionID,
		EntityID:      entityID,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON parses an event from JSON bytes.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
