// Package domain holds enrollment intents and the outcome handed to after-settle hooks.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is where an enrollment intent stands.
type Status string

const (
	StatusPending  Status = "pending"
	StatusEnrolled Status = "enrolled"
	StatusFailed   Status = "failed"
)

// Intent is one activation of the enroll action for a user and batch. It is resolved by a
// single round trip and never retried.
type Intent struct {
	ID        uuid.UUID
	UserID    string
	BatchID   string
	BatchName string
	Status    Status
	CreatedAt time.Time
	SettledAt time.Time
}

// NewIntent returns a pending intent.
func NewIntent(userID, batchID, batchName string) *Intent {
	return &Intent{
		ID:        uuid.New(),
		UserID:    userID,
		BatchID:   batchID,
		BatchName: batchName,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Settle records the final status.
func (i *Intent) Settle(s Status) {
	i.Status = s
	i.SettledAt = time.Now().UTC()
}

// Outcome is what an after-settle hook sees. Err is nil on success.
type Outcome struct {
	Intent  Intent
	Message string
	Err     error
}

// Succeeded reports whether the batch was enrolled.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Intent.Status == StatusEnrolled
}

// AfterSettleHook runs once an enrollment request has settled, whatever its result.
// Hooks are fire-and-forget: they run on their own goroutine and cannot change the outcome.
type AfterSettleHook func(ctx context.Context, outcome Outcome)
