package telemetry

import (
	"context"
	"errors"

	"fxstreampro/client/internal/telemetry/domain"
)

// EventEmitter emits activity events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.ActivityEvent) error
}

type multiEmitter []EventEmitter

// Multi fans an event out to every non-nil emitter. Returns nil when none are given.
func Multi(emitters ...EventEmitter) EventEmitter {
	var m multiEmitter
	for _, e := range emitters {
		if e != nil {
			m = append(m, e)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

// Emit sends event to every emitter and joins their errors.
func (m multiEmitter) Emit(ctx context.Context, event *domain.ActivityEvent) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
