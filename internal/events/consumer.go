package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Consumer subscribes to the decision topic, logs every decision, and keeps
// running allow/deny tallies per key.
type Consumer struct {
	subscriber message.Subscriber
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}

	mu      sync.Mutex
	allowed map[string]int64
	denied  map[string]int64
}

// NewConsumer creates a new decision event consumer.
func NewConsumer(subscriber message.Subscriber, logger *zap.Logger) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		logger:     logger,
		done:       make(chan struct{}),
		allowed:    make(map[string]int64),
		denied:     make(map[string]int64),
	}
}

// Start begins consuming decision events.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, TopicDecision)
	if err != nil {
		return err
	}

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleDecision(msg)
		}
	}
}

func (c *Consumer) handleDecision(msg *message.Message) {
	var event DecisionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Error("failed to unmarshal decision event", zap.Error(err))
		msg.Nack()

		return
	}

	c.record(&event)

	c.logger.Info("admission decision",
		zap.String("key", event.Key),
		zap.String("algorithm", event.Algorithm),
		zap.Bool("allowed", event.Allowed),
		zap.Int64("remaining", event.Remaining),
	)

	msg.Ack()
}

func (c *Consumer) record(event *DecisionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if event.Allowed {
		c.allowed[event.Key]++
	} else {
		c.denied[event.Key]++
	}
}

// Tally returns the allow and deny counts observed for key so far.
func (c *Consumer) Tally(key string) (allowed, denied int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.allowed[key], c.denied[key]
}

// Shutdown stops the consumer and waits for the consume loop to exit.
func (c *Consumer) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}

	<-c.done

	return nil
}
