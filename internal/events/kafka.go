package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Kafka publishes envelopes from a single background writer goroutine.
// Publish drops the event (and logs it) when the inbox is full or the
// publisher has been closed.
type Kafka struct {
	w        *kafka.Writer
	prefix   string
	producer string
	log      logrus.FieldLogger

	mu      sync.RWMutex
	closed  bool
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewKafka(brokers []string, topicPrefix, producer string, buf int, log logrus.FieldLogger) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		prefix:   topicPrefix,
		producer: producer,
		inbox:    make(chan kafka.Message, buf),
		closeCh:  make(chan struct{}),
		log:      log,
	}
}

func (k *Kafka) Topic(eventType string) string {
	return k.prefix + "." + topics[eventType]
}

func (k *Kafka) Start() {
	go func() {
		defer close(k.closeCh)
		for m := range k.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := k.w.WriteMessages(ctx, m); err != nil {
				k.log.WithError(err).WithField("topic", m.Topic).Warn("publish event failed")
			}
			cancel()
		}
		if err := k.w.Close(); err != nil {
			k.log.WithError(err).Warn("close kafka writer")
		}
	}()
}

func (k *Kafka) Publish(ctx context.Context, eventType, key string, payload any) {
	env, err := NewEnvelope(k.producer, eventType, key, payload)
	if err != nil {
		k.log.WithError(err).WithField("event_type", eventType).Error("encode event")
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		k.log.WithError(err).WithField("event_type", eventType).Error("encode envelope")
		return
	}

	m := kafka.Message{
		Topic: k.Topic(eventType),
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		k.log.WithField("event_type", eventType).Warn("publisher closed, dropping event")
		return
	}
	select {
	case k.inbox <- m:
	default:
		k.log.WithField("event_type", eventType).Warn("event inbox full, dropping event")
	}
}

// Close flushes queued events and waits for the writer to stop. Later calls
// to Publish drop their event; later calls to Close return at once.
func (k *Kafka) Close() {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.closed = true
	close(k.inbox)
	k.mu.Unlock()
	<-k.closeCh
}
