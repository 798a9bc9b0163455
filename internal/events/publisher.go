// Package events publishes progress-change notifications to the message broker.
package events

import (
	"context"
	"errors"
	"time"

	contractmq "progresshub/contracts/mq"
	"progresshub/pkg/circuitbreaker"
	"progresshub/pkg/logger"
	"progresshub/pkg/metrics"
	"progresshub/pkg/trace"

	"go.uber.org/zap"
)

// Publisher is the engine's view of the event bus. Implementations never
// return broker failures; a recompute that already persisted stays successful.
type Publisher interface {
	PublishProgress(ctx context.Context, payload contractmq.ProgressUpdatedPayload)
}

// NopPublisher drops every event. Used when mq.enabled is false.
type NopPublisher struct{}

func (NopPublisher) PublishProgress(context.Context, contractmq.ProgressUpdatedPayload) {}

// Sender is satisfied by *mq.Publisher.
type Sender interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type MQPublisher struct {
	sender  Sender
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

func NewMQPublisher(sender Sender, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *MQPublisher {
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	return &MQPublisher{
		sender:  sender,
		breaker: breaker,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

func RoutingKeyFor(entity string) string {
	if entity == contractmq.EntityProject {
		return contractmq.RoutingKeyProjectProgressUpdated
	}
	return contractmq.RoutingKeyTaskProgressUpdated
}

func (p *MQPublisher) PublishProgress(ctx context.Context, payload contractmq.ProgressUpdatedPayload) {
	routingKey := RoutingKeyFor(payload.Entity)
	if payload.TraceID == "" {
		payload.TraceID = trace.FromContext(ctx)
	}
	if payload.At.IsZero() {
		payload.At = time.Now().UTC()
	}
	log := logger.WithTrace(ctx, p.logger)

	// the request context may be cancelled right after the response is written
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err := p.breaker.Execute(func() error {
		return p.sender.Publish(pubCtx, routingKey, payload)
	})
	if err != nil {
		status := "failed"
		if errors.Is(err, circuitbreaker.ErrOpen) {
			status = "circuit_open"
		}
		metrics.IncrementEventPublish(routingKey, status)
		log.Warn("Failed to publish progress event",
			zap.String("routing_key", routingKey),
			zap.String("entity", payload.Entity),
			zap.String("id", payload.ID),
			zap.Error(err),
		)
		return
	}
	metrics.IncrementEventPublish(routingKey, "published")
	log.Debug("Progress event published",
		zap.String("routing_key", routingKey),
		zap.String("id", payload.ID),
		zap.Int("progress", payload.Progress),
	)
}
