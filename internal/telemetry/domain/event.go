package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a client activity.
type EventType string

const (
	EventRegistrationSubmitted EventType = "registration_submitted"
	EventOTPVerified           EventType = "otp_verified"
	EventEnrollmentCreated     EventType = "enrollment_created"
	EventSignedOut             EventType = "signed_out"
)

// Source is stamped on every event emitted by this client.
const Source = "fxclient"

// ActivityEvent is a successful user action. Failures and personal data (email, documents, OTPs) are never emitted.
type ActivityEvent struct {
	ID        string    `json:"id"`
	EventType EventType `json:"eventType"`
	UserID    string    `json:"userId,omitempty"`
	BatchID   string    `json:"batchId,omitempty"`
	Variant   string    `json:"variant,omitempty"`
	Role      string    `json:"role,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewActivityEvent returns an event of type t with a fresh ID and the current time.
func NewActivityEvent(t EventType) *ActivityEvent {
	return &ActivityEvent{
		ID:        uuid.NewString(),
		EventType: t,
		Source:    Source,
		CreatedAt: time.Now().UTC(),
	}
}
