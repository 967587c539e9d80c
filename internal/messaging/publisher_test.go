package messaging_test

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/messaging"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubPublisher struct {
	topic      string
	messages   []*message.Message
	publishErr error
	closeErr   error
}

func (s *stubPublisher) Publish(topic string, msgs ...*message.Message) error {
	if s.publishErr != nil {
		return s.publishErr
	}

	s.topic = topic
	s.messages = append(s.messages, msgs...)

	return nil
}

func (s *stubPublisher) Close() error {
	return s.closeErr
}

func TestNewPublishFunc(t *testing.T) {
	t.Run("publishes json with topic metadata", func(t *testing.T) {
		pub := &stubPublisher{}

		err := messaging.NewPublishFunc[testEvent](pub, testTopic)(&testEvent{ID: "123"})

		require.NoError(t, err)
		assert.Equal(t, testTopic, pub.topic)
		require.Len(t, pub.messages, 1)
		assert.JSONEq(t, `{"id":"123","name":""}`, string(pub.messages[0].Payload))
		assert.Equal(t, testTopic, pub.messages[0].Metadata.Get(messaging.TopicMetadataKey))
		assert.NotEmpty(t, pub.messages[0].Metadata.Get(messaging.PublishedAtMetadataKey))
	})

	t.Run("wraps publish errors", func(t *testing.T) {
		brokerErr := errors.New("broker down")
		pub := &stubPublisher{publishErr: brokerErr}

		err := messaging.NewPublishFunc[testEvent](pub, testTopic)(&testEvent{ID: "123"})

		assert.ErrorIs(t, err, brokerErr)
		assert.ErrorContains(t, err, testTopic)
	})
}

func TestPublisherGroup(t *testing.T) {
	pub := &stubPublisher{closeErr: errors.New("close error")}
	group := messaging.NewPublisherGroup(pub)

	assert.Same(t, pub, group.Publisher())
	assert.EqualError(t, group.Shutdown(), "close publisher: close error")
	assert.EqualError(t, group.Shutdown(), "close publisher: close error", "second shutdown reports the same result")
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := messaging.NewZapLogger(zap.New(core))

	adapter.With(watermill.LogFields{"topic": testTopic}).Error("publish failed", errors.New("boom"), nil)
	adapter.Trace("tick", watermill.LogFields{"n": 1})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "publish failed", entries[0].Message)
	assert.Equal(t, testTopic, entries[0].ContextMap()["topic"])
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	assert.Equal(t, zap.DebugLevel, entries[1].Level)
}
