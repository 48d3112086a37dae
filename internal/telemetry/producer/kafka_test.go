package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxstreampro/client/internal/telemetry/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewKafkaProducer_Unconfigured(t *testing.T) {
	assert.Nil(t, NewKafkaProducer(nil, "topic"))
	assert.Nil(t, NewKafkaProducer([]string{"localhost:9092"}, ""))

	p := NewKafkaProducer([]string{"localhost:9092"}, "fxstreampro-activity")
	require.NotNil(t, p)
	assert.Equal(t, "fxstreampro-activity", p.topic)
	assert.NoError(t, p.Close())
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "t"}

	event := domain.NewActivityEvent(domain.EventEnrollmentCreated)
	event.UserID = "u1"
	event.BatchID = "b1"
	require.NoError(t, p.Emit(context.Background(), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "u1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "enrollment_created", string(msg.Headers[0].Value))

	var got domain.ActivityEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "b1", got.BatchID)
	assert.Equal(t, event.ID, got.ID)
}

func TestKafkaProducer_EmitWithoutUserHasNoKey(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "t"}
	require.NoError(t, p.Emit(context.Background(), domain.NewActivityEvent(domain.EventRegistrationSubmitted)))
	assert.Nil(t, w.msgs[0].Key)
}

func TestKafkaProducer_EmitError(t *testing.T) {
	p := &KafkaProducer{writer: &fakeWriter{err: errors.New("leader not available")}, topic: "t"}
	assert.Error(t, p.Emit(context.Background(), domain.NewActivityEvent(domain.EventSignedOut)))
}

func TestKafkaProducer_NilSafe(t *testing.T) {
	var p *KafkaProducer
	assert.NoError(t, p.Emit(context.Background(), domain.NewActivityEvent(domain.EventSignedOut)))
	assert.NoError(t, p.Close())

	w := &fakeWriter{}
	p = &KafkaProducer{writer: w}
	assert.NoError(t, p.Emit(context.Background(), nil))
	assert.Empty(t, w.msgs)
	assert.NoError(t, p.Close())
	assert.True(t, w.closed)
}
