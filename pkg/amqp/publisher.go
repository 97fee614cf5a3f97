package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/concert-booking/pkg/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNoURL is returned when the publisher is configured without a broker URL
var ErrNoURL = errors.New("amqp: no broker url configured")

// PublisherConfig holds RabbitMQ publisher configuration
type PublisherConfig struct {
	URL string
	// Exchange is declared as a durable topic exchange
	Exchange      string
	MaxRetries    int
	RetryInterval time.Duration
}

// Publisher publishes persistent JSON messages to a topic exchange. A broken
// channel is reopened on the next publish.
type Publisher struct {
	config PublisherConfig
	conn   *amqp.Connection
	ch     *amqp.Channel
	mu     sync.Mutex
}

// NewPublisher dials the broker and declares the exchange
func NewPublisher(ctx context.Context, cfg *PublisherConfig) (*Publisher, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, ErrNoURL
	}

	p := &Publisher{config: *cfg}
	err := retry.Do(ctx, &retry.Config{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.RetryInterval,
		MaxInterval:     cfg.RetryInterval,
		Multiplier:      1,
	}, func(ctx context.Context) error {
		return p.connect()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp broker: %w", err)
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.config.URL)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}

	if p.config.Exchange != "" {
		if err := ch.ExchangeDeclare(
			p.config.Exchange, // name
			"topic",           // kind
			true,              // durable
			false,             // autoDelete
			false,             // internal
			false,             // noWait
			nil,               // args
		); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("exchange declare: %w", err)
		}
	}

	p.conn = conn
	p.ch = ch
	return nil
}

// PublishJSON marshals value and publishes it with routingKey
func (p *Publisher) PublishJSON(ctx context.Context, routingKey string, value interface{}, headers map[string]string) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
		Headers:      toTable(headers),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connect(); err != nil {
			return fmt.Errorf("failed to reconnect to amqp broker: %w", err)
		}
	}

	if err := p.ch.PublishWithContext(ctx,
		p.config.Exchange, // exchange
		routingKey,        // routing key
		false,             // mandatory
		false,             // immediate
		msg,
	); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close closes the channel and connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			err = cerr
		}
		p.conn = nil
	}
	return err
}

func toTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	t := make(amqp.Table, len(headers))
	for k, v := range headers {
		t[k] = v
	}
	return t
}
