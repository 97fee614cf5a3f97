package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/pkg/amqp"
	"github.com/prohmpiriya/concert-booking/pkg/kafka"
)

// EventPublisher publishes lifecycle events after they commit
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.LifecycleEvent) error

	// Close closes the event publisher
	Close() error
}

// EventPublisherConfig contains configuration for the broker-backed publishers
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string

	AMQPURL  string
	Exchange string
}

func (c *EventPublisherConfig) serviceName() string {
	if c.ServiceName == "" {
		return "concert-booking"
	}
	return c.ServiceName
}

func eventHeaders(event *domain.LifecycleEvent, source string) map[string]string {
	return map[string]string{
		"event_type":   string(event.EventType),
		"event_id":     event.EventID,
		"source":       source,
		"content_type": "application/json",
	}
}

// KafkaEventPublisher implements EventPublisher using Kafka. Events are keyed
// by concert id so a consumer sees each concert's events in order.
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "concert-booking-events"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "concert-booking-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		Linger:        5 * time.Millisecond,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: cfg.serviceName(),
	}, nil
}

// Publish produces the event and waits for the broker ack
func (p *KafkaEventPublisher) Publish(ctx context.Context, event *domain.LifecycleEvent) error {
	if err := p.producer.ProduceJSON(ctx, p.topic, event.Key(), event, eventHeaders(event, p.serviceName)); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}
	return nil
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// AMQPEventPublisher implements EventPublisher on a RabbitMQ topic exchange.
// The event type is the routing key.
type AMQPEventPublisher struct {
	publisher   *amqp.Publisher
	serviceName string
}

// NewAMQPEventPublisher creates a new RabbitMQ event publisher
func NewAMQPEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*AMQPEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "concert.events"
	}

	publisher, err := amqp.NewPublisher(ctx, &amqp.PublisherConfig{
		URL:           cfg.AMQPURL,
		Exchange:      exchange,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp publisher: %w", err)
	}

	return &AMQPEventPublisher{
		publisher:   publisher,
		serviceName: cfg.serviceName(),
	}, nil
}

// Publish sends the event as a persistent message
func (p *AMQPEventPublisher) Publish(ctx context.Context, event *domain.LifecycleEvent) error {
	if err := p.publisher.PublishJSON(ctx, string(event.EventType), event, eventHeaders(event, p.serviceName)); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}
	return nil
}

// Close closes the event publisher
func (p *AMQPEventPublisher) Close() error {
	if p.publisher != nil {
		return p.publisher.Close()
	}
	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// Publish is a no-op
func (p *NoOpEventPublisher) Publish(ctx context.Context, event *domain.LifecycleEvent) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}

var (
	_ EventPublisher = (*KafkaEventPublisher)(nil)
	_ EventPublisher = (*AMQPEventPublisher)(nil)
	_ EventPublisher = (*NoOpEventPublisher)(nil)
)
