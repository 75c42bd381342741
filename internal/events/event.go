package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to the entity
type EventType string

const (
	EventTypeCreated   EventType = "created"
	EventTypeProcessed EventType = "processed"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeTransaction  EntityType = "transaction"
	EntityTypeNotification EntityType = "notification"
	EntityTypeRecurringRun EntityType = "recurring_run"
)

// Event is the message fanned out to downstream consumers
// Format: { type, entity, userId, payload, timestamp }
type Event struct {
	Type      string     `json:"type"`   // Combined type e.g. "notification.created"
	Entity    EntityType `json:"entity"` // Entity type e.g. "notification"
	UserID    int64      `json:"userId,omitempty"`
	Payload   any        `json:"payload"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, userID int64, payload any) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		UserID:    userID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionCreated creates a transaction.created event
func TransactionCreated(userID int64, payload any) Event {
	return NewEvent(EventTypeCreated, EntityTypeTransaction, userID, payload)
}

// NotificationCreated creates a notification.created event
func NotificationCreated(userID int64, payload any) Event {
	return NewEvent(EventTypeCreated, EntityTypeNotification, userID, payload)
}

// RecurringRunProcessed creates a recurring_run.processed event
func RecurringRunProcessed(payload any) Event {
	return NewEvent(EventTypeProcessed, EntityTypeRecurringRun, 0, payload)
}
