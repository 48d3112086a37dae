package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"fxstreampro/client/internal/telemetry"
	"fxstreampro/client/internal/telemetry/domain"
)

const loggerName = "fxstreampro.activity"

// recordEmitter is the part of otellog.Logger the emitter uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends activity events as OTel log records via provider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(loggerName)}
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger directly.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	if logger == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.ActivityEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the activity event to an OTel log record. The JSON event is the body; identifying
// fields are also attributes so collectors can index them.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.ActivityEvent) error {
	if event == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	rec := otellog.Record{}
	rec.SetBody(otellog.BytesValue(body))
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName(string(event.EventType))
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)

	for _, kv := range []struct{ key, value string }{
		{"event_id", event.ID},
		{"event_type", string(event.EventType)},
		{"user_id", event.UserID},
		{"batch_id", event.BatchID},
		{"variant", event.Variant},
		{"role", event.Role},
		{"source", event.Source},
	} {
		if kv.value != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.value))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
