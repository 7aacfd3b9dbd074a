package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated   EventType = "created"
	EventTypeUpdated   EventType = "updated"
	EventTypeDeleted   EventType = "deleted"
	EventTypeGenerated EventType = "generated"
	EventTypePaid      EventType = "paid"
	EventTypeTransfer  EventType = "transfer"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeFee     EntityType = "fee"
	EntityTypeExpense EntityType = "expense"
	EntityTypeFund    EntityType = "fund"
	EntityTypeClosing EntityType = "closing"
)

// Event represents a WebSocket event message sent to clients
// Format: { seq, type, entity, payload, timestamp }
type Event struct {
	Seq       uint64      `json:"seq"`       // Per-tenant sequence, set by the Hub
	Type      string      `json:"type"`      // Combined type e.g. "fee.paid"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "fee"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FeesGenerated creates a fee.generated event
func FeesGenerated(payload interface{}) Event {
	return NewEvent(EventTypeGenerated, EntityTypeFee, payload)
}

// FeePaid creates a fee.paid event
func FeePaid(payload interface{}) Event {
	return NewEvent(EventTypePaid, EntityTypeFee, payload)
}

// ExpenseCreated creates an expense.created event
func ExpenseCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeExpense, payload)
}

// ExpenseUpdated creates an expense.updated event
func ExpenseUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeExpense, payload)
}

// ExpenseDeleted creates an expense.deleted event
func ExpenseDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeExpense, payload)
}

// FundTransferred creates a fund.transfer event
func FundTransferred(payload interface{}) Event {
	return NewEvent(EventTypeTransfer, EntityTypeFund, payload)
}

// ClosingGenerated creates a closing.generated event
func ClosingGenerated(payload interface{}) Event {
	return NewEvent(EventTypeGenerated, EntityTypeClosing, payload)
}
