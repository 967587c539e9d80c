package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Runnable is a background component with a start/stop lifecycle.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

type topicRunnable interface {
	Runnable
	Topic() string
}

// ConsumerGroup runs the audit consumers that share one subscriber.
// The subscriber is closed once, after every consumer has stopped.
type ConsumerGroup struct {
	mu         sync.Mutex
	consumers  []Runnable
	running    []Runnable
	subscriber message.Subscriber
	logger     *zap.Logger
	closed     bool
}

func NewConsumerGroup(subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		subscriber: subscriber,
		logger:     logger,
	}
}

func (g *ConsumerGroup) Add(consumer Runnable) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.consumers = append(g.consumers, consumer)
}

// Topics lists the topics of consumers that expose one, in registration order.
func (g *ConsumerGroup) Topics() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var topics []string

	for _, c := range g.consumers {
		if tc, ok := c.(topicRunnable); ok {
			topics = append(topics, tc.Topic())
		}
	}

	return topics
}

// Start launches every consumer. If one fails, the ones already running
// are stopped again and the group stays idle.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return errors.New("consumer group already shut down")
	}

	if len(g.running) > 0 {
		return errors.New("consumer group already started")
	}

	for i, consumer := range g.consumers {
		if err := consumer.Start(ctx); err != nil {
			for j := len(g.running) - 1; j >= 0; j-- {
				_ = g.running[j].Shutdown()
			}

			g.running = nil

			return fmt.Errorf("start consumer %s: %w", consumerName(consumer, i), err)
		}

		g.running = append(g.running, consumer)
	}

	g.logger.Info("consumer group started",
		zap.Int("count", len(g.running)),
		zap.Strings("topics", g.topicsLocked()),
	)

	return nil
}

// Shutdown stops the running consumers in reverse order and closes the
// subscriber. Calling it more than once is a no-op.
func (g *ConsumerGroup) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}

	g.closed = true
	g.logger.Info("shutting down consumer group", zap.Int("running", len(g.running)))

	var errs []error

	for i := len(g.running) - 1; i >= 0; i-- {
		if err := g.running[i].Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("stop consumer %s: %w", consumerName(g.running[i], i), err))
		}
	}

	g.running = nil

	if err := g.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close subscriber: %w", err))
	}

	return errors.Join(errs...)
}

func (g *ConsumerGroup) topicsLocked() []string {
	topics := make([]string, 0, len(g.running))

	for _, c := range g.running {
		if tc, ok := c.(topicRunnable); ok {
			topics = append(topics, tc.Topic())
		}
	}

	return topics
}

func consumerName(c Runnable, index int) string {
	if tc, ok := c.(topicRunnable); ok {
		return tc.Topic()
	}

	return fmt.Sprintf("#%d", index)
}
