package consumer

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	messages    []kafka.Message
	next        int
	commitCalls int
	committed   []kafka.Message
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.next >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.next]
	r.next++
	return msg, nil
}

func (r *stubReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.commitCalls++
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	last  Message
	err   error
}

func (h *stubHandler) Handle(ctx context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func exerciseMessage(eventID string) kafka.Message {
	return kafka.Message{
		Topic:     "exercise_events",
		Partition: 0,
		Offset:    10,
		Time:      time.Now().UTC(),
		Value:     []byte(`{"exercise_id":"e1","user_id":"u1","duration":30,"date":"2023-01-15"}`),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte("exercise.appended")},
			{Key: "aggregate_id", Value: []byte("e1")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{exerciseMessage("42")}}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, int64(42), handler.last.EventID)
	require.Equal(t, "exercise.appended", handler.last.EventType)
	require.Equal(t, "e1", handler.last.AggregateID)
	require.JSONEq(t, `{"exercise_id":"e1","user_id":"u1","duration":30,"date":"2023-01-15"}`, string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{exerciseMessage("7")}}
	handler := &stubHandler{err: errors.New("projection unavailable")}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Zero(t, reader.commitCalls, "failed message must not be committed")
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	malformed := kafka.Message{
		Topic: "exercise_events",
		Value: []byte(`{}`),
		// No event_type or event_id headers.
	}
	reader := &stubReader{messages: []kafka.Message{malformed}}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls, "malformed message must not reach the handler")
	require.Equal(t, 1, reader.commitCalls, "malformed message is committed to avoid poison-pill loops")
}

func TestProcessorRejectsBadEventID(t *testing.T) {
	msg := exerciseMessage("not-a-number")
	reader := &stubReader{messages: []kafka.Message{msg}}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
}
