package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names a ledger change.
type EventKind string

const (
	TransactionCreated EventKind = "transaction.created"
	TransactionUpdated EventKind = "transaction.updated"
	TransactionDeleted EventKind = "transaction.deleted"
	RecurringPaid      EventKind = "recurring.paid"
	AccountChanged     EventKind = "account.changed"
	ReconcileRequested EventKind = "reconcile.requested"
)

func (k EventKind) Valid() bool {
	switch k {
	case TransactionCreated, TransactionUpdated, TransactionDeleted, RecurringPaid, AccountChanged, ReconcileRequested:
		return true
	}
	return false
}

// LedgerEvent is a lightweight notification that ledger state changed.
// Consumers re-read the store; the event carries identifiers only.
type LedgerEvent struct {
	Kind      EventKind `json:"kind"`
	EntityID  string    `json:"entity_id,omitempty"`
	Account   string    `json:"account,omitempty"`
	MonthYear string    `json:"month_year,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind EventKind, entityID, account string) *LedgerEvent {
	return &LedgerEvent{
		Kind:      kind,
		EntityID:  entityID,
		Account:   account,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown kinds.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return &ev, nil
}
