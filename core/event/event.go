package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a notification with metadata and payload.
type Event struct {
	ID        string    `json:"id"`         // Unique identifier for the event
	Name      string    `json:"name"`       // Event type name (e.g., "OracleRequest")
	Payload   any       `json:"payload"`    // Event data (struct, or raw JSON after transport)
	CreatedAt time.Time `json:"created_at"` // When the event was created
}

// NewEvent creates a new Event with auto-generated ID and timestamp.
// The event name is derived from the payload type using reflection.
//
// Example:
//
//	evt := event.NewEvent(broker.RequestFulfilled{ID: id})
//	// evt.Name will be "RequestFulfilled"
func NewEvent(payload any) Event {
	return Event{
		ID:        uuid.New().String(),
		Name:      Name(payload),
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
