package market

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Journal appends events durably, one JSON line per event. Implemented by
// the eventlog writer; components treat a nil Journal as disabled.
type Journal interface {
	WriteEvent(event *Event) error
}

// EventType tags entries in the event journal and replay scripts.
type EventType string

const (
	EventTypeOrder    EventType = "ORDER"    // A new order was observed
	EventTypeMessage  EventType = "MESSAGE"  // A buyer chat message arrived
	EventTypeDelivery EventType = "DELIVERY" // A delivery attempt completed
)

// Event is one journal entry. Exactly one of Order, Message, or Summary is
// populated, matching Type.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Order     *Order            `json:"order,omitempty"`
	Message   *Message          `json:"message,omitempty"`
	Summary   map[string]string `json:"summary,omitempty"`
}

// NewOrderEvent wraps an observed order for the journal.
func NewOrderEvent(order Order) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeOrder,
		Timestamp: time.Now().UTC(),
		Order:     &order,
	}
}

// NewMessageEvent wraps an incoming chat message for the journal.
func NewMessageEvent(msg Message) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeMessage,
		Timestamp: time.Now().UTC(),
		Message:   &msg,
	}
}

// NewDeliveryEvent records the outcome of a delivery attempt.
func NewDeliveryEvent(summary map[string]string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeDelivery,
		Timestamp: time.Now().UTC(),
		Summary:   summary,
	}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes a single journal line.
func EventFromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &event, nil
}
