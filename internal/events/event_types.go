package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/user-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user.registered"
	EventUserUpdated    EventType = "user.updated"
	EventUserDeleted    EventType = "user.deleted"
	EventUserVerified   EventType = "user.verified"
)

// UserPayload is the body of every user event.
type UserPayload struct {
	UserID    string      `json:"userId"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Timestamp time.Time   `json:"timestamp"`

	// VerificationToken is set only on user.registered, for the mailer that
	// delivers the verification link.
	VerificationToken string `json:"verificationToken,omitempty"`
}

// Event represents a domain event handed to the broker.
type Event struct {
	ID      string      `json:"id"`
	Type    EventType   `json:"type"`
	Payload UserPayload `json:"payload"`
}

// NewUserEvent builds an event describing user at time at.
func NewUserEvent(eventType EventType, user *domain.User, at time.Time) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Payload: UserPayload{
			UserID:    user.ID,
			Email:     user.Email,
			Role:      user.Role,
			Timestamp: at.UTC(),
		},
	}
}
