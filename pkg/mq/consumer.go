package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"progresshub/pkg/metrics"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	dlq        *Publisher
	logger     *zap.Logger
}

// NewConsumer declares a durable queue bound to routingKey on the events exchange.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// SetDeadLetter makes permanent handler failures go to the dlq exchange.
func (c *Consumer) SetDeadLetter(p *Publisher) {
	c.dlq = p
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop closes the channel, which ends StartConsuming's delivery loop.
func (c *Consumer) Stop() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until the channel is closed or ctx is done. Every
// delivery is acked or nacked exactly once.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", c.routingKey),
				zap.Any("panic", r),
			)
			if err := msg.Nack(false, true); err != nil {
				c.logger.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	err := c.handler(ctx, msg.Body)
	switch {
	case err == nil:
		if err := msg.Ack(false); err != nil {
			c.logger.Error("Failed to ack message", zap.Error(err))
		}
		metrics.IncrementEventPublish(c.routingKey, "consumed")
	case IsPermanent(err):
		c.logger.Warn("Handler rejected message permanently",
			zap.String("routing_key", c.routingKey),
			zap.Error(err),
		)
		if c.dlq != nil {
			if dlqErr := c.dlq.PublishToDLQ(ctx, c.routingKey, msg.Body, err.Error()); dlqErr != nil {
				c.logger.Error("Failed to forward message to DLQ", zap.Error(dlqErr))
			}
		}
		if err := msg.Ack(false); err != nil {
			c.logger.Error("Failed to ack rejected message", zap.Error(err))
		}
		metrics.IncrementEventPublish(c.routingKey, "dead_lettered")
	default:
		c.logger.Error("Handler error, requeueing",
			zap.String("routing_key", c.routingKey),
			zap.Error(err),
		)
		if err := msg.Nack(false, true); err != nil {
			c.logger.Error("Failed to nack message", zap.Error(err))
		}
		metrics.IncrementEventPublish(c.routingKey, "requeued")
	}
	c.logger.Debug("Message handled",
		zap.String("routing_key", c.routingKey),
		zap.Duration("took", time.Since(start)),
	)
}
