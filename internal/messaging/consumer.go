package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes a single delivery body. Returning nil acknowledges the
// delivery; returning an error triggers an inline retry, and once the retry
// budget is exhausted the delivery is rejected to the dead-letter queue.
type Handler func(ctx context.Context, body []byte) error

// ConsumerConfig tunes the consumer's retry behavior.
type ConsumerConfig struct {
	// MaxAttempts is the total number of handler attempts per delivery
	// before it is dead-lettered.
	MaxAttempts int
	// RetryBackoff is the base delay between handler attempts; it grows
	// linearly with the attempt number.
	RetryBackoff time.Duration
	// SetupBackoff is the fixed delay between reconnection attempts when
	// the broker is unreachable or the topology is not yet declarable.
	SetupBackoff time.Duration
}

// DefaultConsumerConfig mirrors the processing budget the services ship with.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		MaxAttempts:  5,
		RetryBackoff: 500 * time.Millisecond,
		SetupBackoff: 5 * time.Second,
	}
}

// Consumer reads settlement events from one durable queue with manual
// acknowledgements and a prefetch of one, so a delivery is only removed from
// the queue once its side effects are committed.
type Consumer struct {
	url     string
	binding QueueBinding
	cfg     ConsumerConfig
	handler Handler
	logger  *zap.Logger
}

// NewConsumer builds a consumer for the given queue binding.
func NewConsumer(url string, binding QueueBinding, cfg ConsumerConfig, handler Handler, logger *zap.Logger) *Consumer {
	return &Consumer{
		url:     url,
		binding: binding,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(zap.String("queue", binding.Queue)),
	}
}

// Run consumes deliveries until ctx is cancelled. Broker connection or
// topology failures are never fatal: the consumer logs them and retries
// after a fixed backoff, so it tolerates starting before the broker does.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consumeOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("consumer session ended, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", c.cfg.SetupBackoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.SetupBackoff):
		}
	}
}

// consumeOnce runs a single broker session: connect, declare, consume until
// the channel closes or ctx is cancelled.
func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	if err := DeclareTopology(channel, c.binding); err != nil {
		return err
	}

	// One unacked delivery at a time keeps per-account processing ordered.
	if err := channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := channel.Consume(
		c.binding.Queue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (we ack manually)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer started, waiting for messages")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context cancelled, stopping consumer")
			return nil

		case msg, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.process(ctx, msg)
		}
	}
}

// process runs the handler against one delivery with the configured retry
// budget, then acknowledges or dead-letters it.
func (c *Consumer) process(ctx context.Context, msg amqp.Delivery) {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err = c.handler(ctx, msg.Body); err == nil {
			if ackErr := msg.Ack(false); ackErr != nil {
				c.logger.Error("failed to ack delivery", zap.Error(ackErr))
			}
			consumedTotal.WithLabelValues(c.binding.Queue, "ok").Inc()
			return
		}
		if ctx.Err() != nil {
			// Shutting down mid-delivery: leave it unacked so the broker
			// redelivers it to the next consumer.
			return
		}

		c.logger.Warn("handler failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Error(err))

		if attempt < c.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
			}
		}
	}

	c.logger.Error("handler exhausted retries, dead-lettering delivery",
		zap.String("routing_key", msg.RoutingKey),
		zap.Error(err))
	if nackErr := msg.Nack(false, false); nackErr != nil {
		c.logger.Error("failed to nack delivery", zap.Error(nackErr))
	}
	consumedTotal.WithLabelValues(c.binding.Queue, "dead_lettered").Inc()
}
