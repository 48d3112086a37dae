package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fxstreampro/client/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.ActivityEvent
	emitErr error
	delay   time.Duration
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.ActivityEvent) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.ActivityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ActivityEvent(nil), m.events...)
}

func drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestEmitAsync_NilEmitterAndEvent(t *testing.T) {
	EmitAsync(nil, context.Background(), domain.NewActivityEvent(domain.EventOTPVerified))

	emitter := &mockEventEmitter{}
	EmitAsync(emitter, context.Background(), nil)
	drain(t)
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	event := domain.NewActivityEvent(domain.EventEnrollmentCreated)
	event.BatchID = "b1"

	EmitAsync(emitter, context.Background(), event)
	drain(t)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].BatchID != "b1" {
		t.Errorf("BatchID = %q, want b1", events[0].BatchID)
	}
}

func TestEmitAsync_CallerCancellationDoesNotAbortEmit(t *testing.T) {
	emitter := &mockEventEmitter{delay: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	EmitAsync(emitter, ctx, domain.NewActivityEvent(domain.EventOTPVerified))
	cancel()
	drain(t)

	if n := len(emitter.getEvents()); n != 1 {
		t.Errorf("expected emit to complete after caller cancel, got %d events", n)
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("broker down")}
	EmitAsync(emitter, context.Background(), domain.NewActivityEvent(domain.EventOTPVerified))
	drain(t)
	if n := len(emitter.getEvents()); n != 1 {
		t.Errorf("expected 1 attempted event, got %d", n)
	}
}

func TestDrain_Timeout(t *testing.T) {
	emitter := &mockEventEmitter{delay: 200 * time.Millisecond}
	EmitAsync(emitter, context.Background(), domain.NewActivityEvent(domain.EventOTPVerified))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain err = %v, want DeadlineExceeded", err)
	}
	drain(t)
}

func TestMulti(t *testing.T) {
	if Multi() != nil || Multi(nil, nil) != nil {
		t.Error("Multi of no emitters should be nil")
	}
	a := &mockEventEmitter{}
	if Multi(nil, a) != EventEmitter(a) {
		t.Error("Multi of one emitter should return it unchanged")
	}

	b := &mockEventEmitter{emitErr: errors.New("b failed")}
	m := Multi(a, b)
	err := m.Emit(context.Background(), domain.NewActivityEvent(domain.EventSignedOut))
	if err == nil || err.Error() != "b failed" {
		t.Errorf("Emit err = %v, want b failed", err)
	}
	if len(a.getEvents()) != 1 || len(b.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
}

func TestNewActivityEvent(t *testing.T) {
	e := domain.NewActivityEvent(domain.EventRegistrationSubmitted)
	if e.ID == "" || e.Source != domain.Source || e.CreatedAt.IsZero() {
		t.Errorf("NewActivityEvent = %+v, want ID, source and time set", e)
	}
}
