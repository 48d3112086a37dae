// Package producer publishes activity events to a message broker for the log-shipping worker.
package producer

import (
	"context"

	"fxstreampro/client/internal/telemetry/domain"
)

// Producer emits activity events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; use telemetry.EmitAsync from request paths.
	Emit(ctx context.Context, event *domain.ActivityEvent) error
	// Close flushes and releases resources. Safe to call if already closed.
	Close() error
}
