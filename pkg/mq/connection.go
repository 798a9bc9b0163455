package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName    = "events"
	DLQExchangeName = "events.dlq"
)

func NewConnection(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the durable topic exchange all events go through.
func DeclareExchange(ch *amqp091.Channel) error {
	return declareTopic(ch, ExchangeName)
}

// DeclareDLQExchange declares the exchange that receives messages a handler
// rejected permanently.
func DeclareDLQExchange(ch *amqp091.Channel) error {
	return declareTopic(ch, DLQExchangeName)
}

func declareTopic(ch *amqp091.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}
