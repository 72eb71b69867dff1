package mq

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaHeaderCarrierSetOverwrites(t *testing.T) {
	c := KafkaHeaderCarrier{}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("baggage", "k=v")

	if len(c) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(c))
	}
	if got := c.Get("traceparent"); got != "b" {
		t.Fatalf("traceparent = %q, want b", got)
	}
	if got := c.Get("missing"); got != "" {
		t.Fatalf("missing header should be empty, got %q", got)
	}
}

func TestProduceMessageInjectsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	w := &recordingWriter{}
	if err := ProduceMessage(ctx, w, []byte("order-1"), []byte(`{}`)); err != nil {
		t.Fatalf("ProduceMessage: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "order-1" {
		t.Fatalf("key = %q", msg.Key)
	}
	if HeaderValue(msg.Headers, "traceparent") == "" {
		t.Fatalf("traceparent header not injected: %+v", msg.Headers)
	}

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), msg))
	if extracted.TraceID() != traceID {
		t.Fatalf("extracted trace id = %s, want %s", extracted.TraceID(), traceID)
	}
}

func TestProduceMessageWrapsWriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	if err := ProduceMessage(context.Background(), w, []byte("k"), []byte("v")); err == nil {
		t.Fatal("expected error")
	}
}

func TestFailureHandlerWritesDeadLetterHeaders(t *testing.T) {
	w := &recordingWriter{}
	h := NewFailureHandler(w)

	original := kafka.Message{
		Topic:     "order-events",
		Partition: 3,
		Offset:    42,
		Key:       []byte("order-9"),
		Value:     []byte("not json"),
		Headers:   []kafka.Header{{Key: "traceparent", Value: []byte("tp")}},
	}
	if err := h.Handle(context.Background(), original, errors.New("decode failed"), 1); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(w.msgs))
	}
	dlt := w.msgs[0]
	want := map[string]string{
		HeaderOriginalTopic:     "order-events",
		HeaderOriginalPartition: "3",
		HeaderOriginalOffset:    "42",
		HeaderExceptionMessage:  "decode failed",
		HeaderAttempts:          "1",
		"traceparent":           "tp",
	}
	for k, v := range want {
		if got := HeaderValue(dlt.Headers, k); got != v {
			t.Fatalf("header %s = %q, want %q", k, got, v)
		}
	}
	if HeaderValue(dlt.Headers, HeaderExceptionFqcn) == "" {
		t.Fatal("exception type header missing")
	}
	if string(dlt.Value) != "not json" || string(dlt.Key) != "order-9" {
		t.Fatalf("payload not preserved: key=%q value=%q", dlt.Key, dlt.Value)
	}
}

func TestFailureHandlerReturnsWriterError(t *testing.T) {
	h := NewFailureHandler(&recordingWriter{err: errors.New("dlt down")})
	if err := h.Handle(context.Background(), kafka.Message{Topic: "t"}, errors.New("x"), 5); err == nil {
		t.Fatal("expected error when dead letter write fails")
	}
}
