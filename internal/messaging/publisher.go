package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Metadata keys set on every published event.
const (
	TopicMetadataKey       = "topic"
	PublishedAtMetadataKey = "published_at"
)

// Publish sends one typed event. Attribution services depend on this
// function type rather than on a broker.
type Publish[T any] func(event *T) error

// NewPublishFunc binds a publisher to a topic. Events are JSON encoded.
func NewPublishFunc[T any](publisher message.Publisher, topic string) Publish[T] {
	return newPublishFunc[T](publisher, topic, time.Now)
}

func newPublishFunc[T any](publisher message.Publisher, topic string, now func() time.Time) Publish[T] {
	return func(event *T) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", topic, err)
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(TopicMetadataKey, topic)
		msg.Metadata.Set(PublishedAtMetadataKey, now().UTC().Format(time.RFC3339Nano))

		if err = publisher.Publish(topic, msg); err != nil {
			return fmt.Errorf("publish %s event: %w", topic, err)
		}

		return nil
	}
}

// PublisherGroup owns the publisher shared by every typed publish function
// and closes it once.
type PublisherGroup struct {
	publisher message.Publisher
	once      sync.Once
	closeErr  error
}

func NewPublisherGroup(publisher message.Publisher) *PublisherGroup {
	return &PublisherGroup{publisher: publisher}
}

func (g *PublisherGroup) Publisher() message.Publisher {
	return g.publisher
}

func (g *PublisherGroup) Shutdown() error {
	g.once.Do(func() {
		if err := g.publisher.Close(); err != nil {
			g.closeErr = fmt.Errorf("close publisher: %w", err)
		}
	})

	return g.closeErr
}
