package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"gotest.tools/v3/assert"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafkaGo.Message
	err      error
	calls    int
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func TestKafkaPublisher_FlushWritesKeyedMessages(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaPublisher(w, nil)

	Bind(p, "visitor-1").Emit(context.Background(), TypeCartItemAdded, map[string]any{"product_id": 1})
	p.flush(context.Background())

	assert.Equal(t, len(w.messages), 1)
	msg := w.messages[0]
	assert.Equal(t, string(msg.Key), "visitor-1")
	assert.Equal(t, string(msg.Headers[0].Value), TypeCartItemAdded)

	var e Event
	require.NoError(t, json.Unmarshal(msg.Value, &e))
	assert.Equal(t, e.Type, TypeCartItemAdded)
	assert.Equal(t, e.VisitorID, "visitor-1")
}

func TestKafkaPublisher_RequeuesOnFailure(t *testing.T) {
	w := &mockWriter{err: errors.New("broker unavailable")}
	p := NewKafkaPublisher(w, nil)

	p.Publish(context.Background(), Event{Type: TypeOrderPlaced, VisitorID: "v"})
	p.flush(context.Background())
	assert.Equal(t, len(p.pending), 1)

	w.err = nil
	p.flush(context.Background())
	assert.Equal(t, len(p.pending), 0)
	assert.Equal(t, len(w.messages), 1)
	assert.Equal(t, w.calls, 2)
}

func TestKafkaPublisher_DropsOldestWhenFull(t *testing.T) {
	p := NewKafkaPublisher(&mockWriter{}, nil)
	p.capacity = 2

	for _, typ := range []string{"a", "b", "c"} {
		p.Publish(context.Background(), Event{Type: typ})
	}
	assert.Equal(t, len(p.pending), 2)
	assert.Equal(t, p.pending[0].Type, "b")
}

func TestKafkaPublisher_EmptyFlushSkipsWriter(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaPublisher(w, nil)
	p.flush(context.Background())
	assert.Equal(t, w.calls, 0)
}

func TestKafkaPublisher_RunFlushesOnShutdown(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaPublisher(w, nil)
	p.flushTick = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	p.Publish(ctx, Event{Type: TypeSessionLogout, VisitorID: "v"})
	cancel()
	<-done

	assert.Equal(t, len(w.messages), 1)
}

func TestKafkaPublisher_PublishesToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Kafka container test in short mode")
	}
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	defer func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}()

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	writer := NewKafkaWriter("storefront-events", brokers...)
	p := NewKafkaPublisher(writer, nil)
	defer p.Close()

	Bind(p, "visitor-42").Emit(ctx, TypeOrderPlaced, map[string]any{"total": "520"})
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	go p.Run(runCtx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  brokers,
		Topic:    "storefront-events",
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(runCtx)
	require.NoError(t, err)
	assert.Equal(t, string(msg.Key), "visitor-42")

	var e Event
	require.NoError(t, json.Unmarshal(msg.Value, &e))
	assert.Equal(t, e.Type, TypeOrderPlaced)
	assert.Equal(t, e.Data["total"], "520")
}
