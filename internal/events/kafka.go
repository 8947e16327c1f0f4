package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher buffers events in memory and flushes them to Kafka on a
// ticker. When the buffer is full the oldest events are dropped.
type KafkaPublisher struct {
	writer    MessageWriter
	logger    *zap.Logger
	flushTick time.Duration
	timeout   time.Duration
	capacity  int

	mu      sync.Mutex
	pending []Event
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

func NewKafkaPublisher(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer:    writer,
		logger:    logger,
		flushTick: time.Second,
		timeout:   5 * time.Second,
		capacity:  1000,
	}
}

func (p *KafkaPublisher) Publish(_ context.Context, e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, e)
	if over := len(p.pending) - p.capacity; over > 0 {
		p.logger.Warn("event buffer full, dropping oldest events", zap.Int("dropped", over))
		p.pending = p.pending[over:]
	}
}

// Run flushes buffered events until ctx is done, then makes a final flush.
func (p *KafkaPublisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.flushTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.flush(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), p.timeout)
			p.flush(final)
			cancel()
			return
		}
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) flush(ctx context.Context) {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	msgs := make([]kafka.Message, 0, len(batch))
	for _, e := range batch {
		payload, err := json.Marshal(e)
		if err != nil {
			p.logger.Warn("failed to marshal event", zap.String("type", e.Type), zap.Error(err))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.VisitorID),
			Value: payload,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(e.Type)},
			},
		})
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msgs...); err != nil {
		p.logger.Warn("failed to publish events, requeueing", zap.Int("count", len(batch)), zap.Error(err))
		p.requeue(batch)
	}
}

func (p *KafkaPublisher) requeue(batch []Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(batch, p.pending...)
	if over := len(p.pending) - p.capacity; over > 0 {
		p.pending = p.pending[over:]
	}
}
