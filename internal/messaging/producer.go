package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/pedrobono/BankMore/internal/domain"
)

// Producer publishes settlement events to the topic exchange with publisher
// confirms. Publish only returns nil once the broker has confirmed the
// delivery, so callers can treat a nil error as durably accepted.
//
// Broker connectivity is transient, never fatal: a dropped connection is
// re-dialed on the next Publish, and transport-level failures (dial, confirm
// wait, connection loss) are reported as domain.ErrTransientUpstream so
// callers retry instead of giving up. Only an explicit broker rejection is a
// non-transient error.
type Producer struct {
	url    string
	logger *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewProducer connects to RabbitMQ, puts the channel in confirm mode, and
// declares the full settlement topology so events published before any
// consumer attaches still land in the durable queues. The initial dial fails
// fast on misconfiguration; later connection drops heal on the next Publish.
func NewProducer(url string, logger *zap.Logger) (*Producer, error) {
	p := &Producer{url: url, logger: logger}

	if _, err := p.session(); err != nil {
		return nil, err
	}

	logger.Info("RabbitMQ producer initialized", zap.String("exchange", Exchange))
	return p, nil
}

// session returns the current confirm-mode channel, establishing a fresh
// connection when none exists or the previous one died.
func (p *Producer) session() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	p.closeLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	bindings := []QueueBinding{
		{Queue: QueueTransferCompleted, BindingKey: BindingKeyTransferCompleted},
		{Queue: QueueFeeAssessed, BindingKey: BindingKeyFeeAssessed},
	}
	if err := DeclareTopology(channel, bindings...); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	p.conn = conn
	p.channel = channel
	return channel, nil
}

// Publish sends body to the settlement exchange keyed by account id as a
// persistent delivery and waits for the broker's confirmation.
func (p *Producer) Publish(ctx context.Context, topic string, accountID uuid.UUID, body []byte) error {
	routingKey := RoutingKey(topic, accountID)

	channel, err := p.session()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransientUpstream, err)
	}

	confirmation, err := channel.PublishWithDeferredConfirmWithContext(
		ctx,
		Exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: failed to publish to %s: %v", domain.ErrTransientUpstream, routingKey, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed waiting for publish confirmation on %s: %v", domain.ErrTransientUpstream, routingKey, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected publish to %s", routingKey)
	}

	publishedTotal.WithLabelValues(topic).Inc()
	return nil
}

// Close closes the channel and connection.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Producer) closeLocked() error {
	if p.channel != nil {
		if !p.channel.IsClosed() {
			if err := p.channel.Close(); err != nil {
				p.logger.Warn("error closing channel", zap.Error(err))
			}
		}
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
