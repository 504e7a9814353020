package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueBinding describes one durable queue bound to the settlement exchange.
type QueueBinding struct {
	Queue      string
	BindingKey string
}

// DeclareTopology declares the settlement exchange, the dead-letter exchange
// and queue, and the given durable queues with their bindings. Both producers
// and consumers declare the full topology so that no published event is lost
// before the first consumer attaches; declarations are idempotent on the
// broker side.
func DeclareTopology(ch *amqp.Channel, bindings ...QueueBinding) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", Exchange, err)
	}

	if err := ch.ExchangeDeclare(DeadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}
	if err := ch.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %w", err)
	}

	for _, b := range bindings {
		_, err := ch.QueueDeclare(b.Queue, true, false, false, false, deadLetterArgs())
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.Queue, err)
		}
		if err := ch.QueueBind(b.Queue, b.BindingKey, Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", b.Queue, err)
		}
	}

	return nil
}

// deadLetterArgs routes rejected deliveries to the dead-letter exchange.
func deadLetterArgs() amqp.Table {
	return amqp.Table{"x-dead-letter-exchange": DeadLetterExchange}
}
