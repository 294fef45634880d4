package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func newTestProducer(w *fakeWriter) *Producer {
	return &Producer{
		writer: w,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func header(msg kafka.Message, key string) string {
	return NewHeaderCarrier(&msg.Headers).Get(key)
}

// --- Event ---

func TestNewEvent_Fields(t *testing.T) {
	data := map[string]string{"order_id": "ORD-1"}
	event, err := NewEvent("order.confirmed", "ORD-1", "order", "storefront", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "order.confirmed", event.EventType)
	assert.Equal(t, "ORD-1", event.AggregateID)
	assert.Equal(t, "order", event.AggregateType)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)
	assert.JSONEq(t, `{"order_id":"ORD-1"}`, string(event.Data))
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("cart.updated", "default", "cart", "storefront", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal cart.updated payload")
}

func TestEvent_JSONRoundTrip(t *testing.T) {
	original, err := NewEvent("cart.cleared", "default", "cart", "storefront", map[string]int{"item_count": 0})
	require.NoError(t, err)
	original.WithCorrelationID("corr-1")

	b, err := json.Marshal(original)
	require.NoError(t, err)
	var restored Event
	require.NoError(t, json.Unmarshal(b, &restored))

	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, "corr-1", restored.CorrelationID)

	var payload map[string]int
	require.NoError(t, restored.UnmarshalData(&payload))
	assert.Equal(t, 0, payload["item_count"])
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "storefront.order.confirmed", Topic("order", "confirmed"))
	assert.Equal(t, "storefront.cart.updated", Topic("cart", "updated"))
}

// --- Producer ---

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)
	topic := Topic("order", "confirmed")

	event, err := NewEvent("order.confirmed", "ORD-1", "order", "storefront", nil)
	require.NoError(t, err)
	event.WithCorrelationID("corr-9")

	before := testutil.ToFloat64(eventsPublishedTotal.WithLabelValues(topic, outcomeOK))
	require.NoError(t, p.Publish(context.Background(), topic, event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, []byte("ORD-1"), msg.Key)
	assert.Equal(t, "order.confirmed", header(msg, "event_type"))
	assert.Equal(t, "storefront", header(msg, "source"))
	assert.Equal(t, "corr-9", header(msg, "correlation_id"))
	assert.Equal(t, before+1, testutil.ToFloat64(eventsPublishedTotal.WithLabelValues(topic, outcomeOK)))
}

func TestProducer_Publish_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	event, err := NewEvent("cart.updated", "default", "cart", "storefront", nil)
	require.NoError(t, err)
	require.NoError(t, newTestProducer(w).Publish(ctx, Topic("cart", "updated"), event))

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header(w.msgs[0], "traceparent"))
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	topic := Topic("cart", "cleared")

	event, err := NewEvent("cart.cleared", "default", "cart", "storefront", nil)
	require.NoError(t, err)

	before := testutil.ToFloat64(eventsPublishedTotal.WithLabelValues(topic, outcomeError))
	err = newTestProducer(w).Publish(context.Background(), topic, event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to storefront.cart.cleared")
	assert.Equal(t, before+1, testutil.ToFloat64(eventsPublishedTotal.WithLabelValues(topic, outcomeError)))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newTestProducer(w).Close())
	assert.True(t, w.closed)
}

func TestNewProducer_DoesNotConnect(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"b1:9092"})
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.False(t, cfg.Async)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "any", &Event{}))
	assert.NoError(t, p.Close())
}

// --- HeaderCarrier ---

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "existing", Value: []byte("v1")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "v1", c.Get("existing"))
	assert.Empty(t, c.Get("missing"))

	c.Set("existing", "v2")
	c.Set("new", "v3")
	assert.Equal(t, "v2", c.Get("existing"))
	assert.Equal(t, "v3", c.Get("new"))
	assert.ElementsMatch(t, []string{"existing", "new"}, c.Keys())
	assert.Len(t, headers, 2)
}
