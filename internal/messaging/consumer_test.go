package messaging_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xzrsniper/affiliate-tracking-sub000/internal/messaging"
	"go.uber.org/zap"
)

type testEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const testTopic = "test.topic"

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	return nil, errors.New("subscribe error")
}

func (failingSubscriber) Close() error { return nil }

func TestConsumer(t *testing.T) {
	t.Run("delivers published events to the handler", func(t *testing.T) {
		pubsub := messaging.NewInMemoryPubSub(zap.NewNop())
		t.Cleanup(func() { _ = pubsub.Close() })

		received := make(chan *testEvent, 1)
		consumer := messaging.NewConsumer(pubsub, testTopic, func(_ context.Context, event *testEvent) error {
			received <- event

			return nil
		}, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))
		t.Cleanup(func() { _ = consumer.Shutdown() })

		publish := messaging.NewPublishFunc[testEvent](pubsub, testTopic)
		require.NoError(t, publish(&testEvent{ID: "123", Name: "click"}))

		select {
		case event := <-received:
			assert.Equal(t, "123", event.ID)
			assert.Equal(t, "click", event.Name)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}

		assert.Equal(t, testTopic, consumer.Topic())
	})

	t.Run("handler errors are redelivered", func(t *testing.T) {
		pubsub := messaging.NewInMemoryPubSub(zap.NewNop())
		t.Cleanup(func() { _ = pubsub.Close() })

		var attempts atomic.Int32

		done := make(chan struct{})
		consumer := messaging.NewConsumer(pubsub, testTopic, func(_ context.Context, _ *testEvent) error {
			if attempts.Add(1) == 1 {
				return errors.New("transient")
			}

			close(done)

			return nil
		}, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))
		t.Cleanup(func() { _ = consumer.Shutdown() })

		require.NoError(t, messaging.NewPublishFunc[testEvent](pubsub, testTopic)(&testEvent{ID: "1"}))

		select {
		case <-done:
			assert.Equal(t, int32(2), attempts.Load())
		case <-time.After(2 * time.Second):
			t.Fatal("event was not redelivered")
		}
	})

	t.Run("undecodable payloads are acked and skipped", func(t *testing.T) {
		pubsub := messaging.NewInMemoryPubSub(zap.NewNop())
		t.Cleanup(func() { _ = pubsub.Close() })

		received := make(chan *testEvent, 1)
		consumer := messaging.NewConsumer(pubsub, testTopic, func(_ context.Context, event *testEvent) error {
			received <- event

			return nil
		}, zap.NewNop())

		require.NoError(t, consumer.Start(context.Background()))
		t.Cleanup(func() { _ = consumer.Shutdown() })

		require.NoError(t, pubsub.Publish(testTopic, message.NewMessage(watermill.NewUUID(), []byte("not json"))))
		require.NoError(t, messaging.NewPublishFunc[testEvent](pubsub, testTopic)(&testEvent{ID: "after"}))

		select {
		case event := <-received:
			assert.Equal(t, "after", event.ID)
		case <-time.After(time.Second):
			t.Fatal("consumer stalled on the bad payload")
		}
	})

	t.Run("handlers get a deadline", func(t *testing.T) {
		pubsub := messaging.NewInMemoryPubSub(zap.NewNop())
		t.Cleanup(func() { _ = pubsub.Close() })

		deadlines := make(chan bool, 1)
		consumer := messaging.NewConsumer(pubsub, testTopic, func(ctx context.Context, _ *testEvent) error {
			_, ok := ctx.Deadline()
			deadlines <- ok

			return nil
		}, zap.NewNop(), messaging.WithHandlerTimeout(time.Second))

		require.NoError(t, consumer.Start(context.Background()))
		t.Cleanup(func() { _ = consumer.Shutdown() })

		require.NoError(t, messaging.NewPublishFunc[testEvent](pubsub, testTopic)(&testEvent{ID: "1"}))

		select {
		case ok := <-deadlines:
			assert.True(t, ok)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	})

	t.Run("shutdown before start returns immediately", func(t *testing.T) {
		consumer := messaging.NewConsumer(failingSubscriber{}, testTopic,
			func(_ context.Context, _ *testEvent) error { return nil }, zap.NewNop())

		assert.NoError(t, consumer.Shutdown())
	})

	t.Run("start fails when subscribe fails", func(t *testing.T) {
		consumer := messaging.NewConsumer(failingSubscriber{}, testTopic,
			func(_ context.Context, _ *testEvent) error { return nil }, zap.NewNop())

		assert.Error(t, consumer.Start(context.Background()))
	})
}
