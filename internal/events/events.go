package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/sellanything/internal/models"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventMessageSent    = "MessageSent"
	EventMessageEdited  = "MessageEdited"
	EventMessageDeleted = "MessageDeleted"
)

var topics = map[string]string{
	EventOrderCreated:   "order.created",
	EventMessageSent:    "message.sent",
	EventMessageEdited:  "message.edited",
	EventMessageDeleted: "message.deleted",
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID string             `json:"order_id"`
	BuyerID string             `json:"buyer_id"`
	Items   []models.OrderItem `json:"items"`
	Total   decimal.Decimal    `json:"total"`
}

type MessagePayload struct {
	MessageID string `json:"message_id"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	ProductID string `json:"product_id,omitempty"`
}

// Publisher emits domain events. Publishing never blocks the caller on the
// broker and never fails the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any)
}

func NewEnvelope(producer, eventType, key string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: key,
		Payload:       data,
	}, nil
}

type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) {}

// Recorder keeps published envelopes in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(ctx context.Context, eventType, key string, payload any) {
	env, err := NewEnvelope("recorder", eventType, key, payload)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, env)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.events...)
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}
