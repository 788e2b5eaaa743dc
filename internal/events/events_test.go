package events

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope("api", EventMessageSent, "m1", MessagePayload{MessageID: "m1", FromID: "a", ToID: "b"})
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EventMessageSent, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "m1", env.CorrelationID)

	var p MessagePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "b", p.ToID)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Publish(context.Background(), EventOrderCreated, "o1", OrderCreatedPayload{OrderID: "o1"})
	r.Publish(context.Background(), EventMessageDeleted, "m1", MessagePayload{MessageID: "m1"})

	assert.Equal(t, []string{EventOrderCreated, EventMessageDeleted}, r.Types())
	assert.Len(t, r.Events(), 2)
}

func TestKafkaTopicNames(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	k := NewKafka([]string{"localhost:9092"}, "sellanything", "test", 1, log)

	assert.Equal(t, "sellanything.order.created", k.Topic(EventOrderCreated))
	assert.Equal(t, "sellanything.message.deleted", k.Topic(EventMessageDeleted))
}

func TestKafkaPublishDropsWhenInboxFull(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	k := NewKafka([]string{"localhost:9092"}, "sellanything", "test", 1, log)

	// Not started: the first message fills the inbox, the second is dropped.
	k.Publish(context.Background(), EventMessageSent, "m1", MessagePayload{MessageID: "m1"})
	k.Publish(context.Background(), EventMessageSent, "m2", MessagePayload{MessageID: "m2"})

	assert.Len(t, k.inbox, 1)
	m := <-k.inbox
	assert.Equal(t, "m1", string(m.Key))
	assert.Equal(t, "sellanything.message.sent", m.Topic)
}

func TestKafkaPublishAfterCloseDrops(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	k := NewKafka([]string{"localhost:9092"}, "sellanything", "test", 4, log)
	k.Start()
	k.Close()

	assert.NotPanics(t, func() {
		k.Publish(context.Background(), EventOrderCreated, "o1", OrderCreatedPayload{OrderID: "o1"})
	})
	assert.NotPanics(t, k.Close, "a second close returns")
}
