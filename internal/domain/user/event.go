package user

import "time"

// EventType names a change to a user record.
type EventType string

const (
	EventUserCreated EventType = "user.created"
	EventUserUpdated EventType = "user.updated"
	EventUserDeleted EventType = "user.deleted"
)

// Event is emitted after a successful mutation. For deletions User holds
// the record as it was before removal.
type Event struct {
	Type       EventType `json:"event_type"`
	User       User      `json:"user"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(t EventType, u User) Event {
	return Event{Type: t, User: u, OccurredAt: time.Now().UTC()}
}
