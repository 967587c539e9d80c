package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// DefaultHandlerTimeout bounds a single handler invocation.
const DefaultHandlerTimeout = 10 * time.Second

// Handler processes a single event. A returned error nacks the message for redelivery.
type Handler[T any] func(ctx context.Context, event *T) error

// ConsumerOption tunes a Consumer.
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	handlerTimeout time.Duration
}

// WithHandlerTimeout sets the deadline given to each handler call. Zero disables it.
func WithHandlerTimeout(d time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		o.handlerTimeout = d
	}
}

// Consumer decodes JSON events from one topic and hands them to a typed handler.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	opts       consumerOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
	opts ...ConsumerOption,
) *Consumer[T] {
	o := consumerOptions{handlerTimeout: DefaultHandlerTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger.With(zap.String("topic", topic)),
		opts:       o,
	}
}

func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start subscribes and processes messages in the background until ctx ends
// or Shutdown is called.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		cancel()

		return err
	}

	done := make(chan struct{})

	c.mu.Lock()
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	go c.consumeLoop(ctx, msgs, done)

	return nil
}

func (c *Consumer[T]) consumeLoop(ctx context.Context, msgs <-chan *message.Message, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer[T]) handleMessage(ctx context.Context, msg *message.Message) {
	log := c.logger.With(zap.String("messageId", msg.UUID))

	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		// poison message: acking drops it
		log.Error("dropping undecodable event", zap.Error(err))
		msg.Ack()

		return
	}

	if c.opts.handlerTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.opts.handlerTimeout)
		defer cancel()
	}

	if err := c.handler(ctx, &event); err != nil {
		log.Error("failed to handle event", zap.Error(err))
		msg.Nack()

		return
	}

	msg.Ack()
	log.Debug("processed event")
}

// Shutdown stops the consumer and waits for the in-flight message. It
// returns at once if the consumer never started.
func (c *Consumer[T]) Shutdown() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done

	return nil
}
