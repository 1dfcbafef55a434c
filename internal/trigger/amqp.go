package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/vanshika/paybridge/internal/config"
	"github.com/vanshika/paybridge/internal/domain"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPTrigger publishes ClaimEvents to a durable topic exchange.
type AMQPTrigger struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	mu         sync.Mutex // amqp091 channels do not support concurrent publishes
	pub        publisher
	exchange   string
	routingKey string
	timeout    time.Duration
	nowFn      func() time.Time
	idFn       func() string
}

// NewAMQPTrigger dials the broker and declares the exchange.
func NewAMQPTrigger(cfg config.BrokerConfig) (*AMQPTrigger, error) {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	conn, err := amqp091.DialConfig(cfg.URL, amqp091.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			return dialer.DialContext(context.Background(), network, addr)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open broker channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	t := newAMQPTrigger(channel, cfg)
	t.conn = conn
	t.channel = channel
	return t, nil
}

func newAMQPTrigger(pub publisher, cfg config.BrokerConfig) *AMQPTrigger {
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AMQPTrigger{
		pub:        pub,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		timeout:    timeout,
		nowFn:      time.Now,
		idFn:       uuid.NewString,
	}
}

// ClaimUnlocked publishes a persistent ClaimEvent for tx.
func (t *AMQPTrigger) ClaimUnlocked(ctx context.Context, tx domain.Transaction) error {
	event := NewClaimEvent(tx, t.idFn(), t.nowFn())
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal claim event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	err = t.pub.PublishWithContext(ctx, t.exchange, t.routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.UnlockedAt,
		Type:         event.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish claim event for %s: %w", tx.ID, err)
	}
	return nil
}

// Close closes the channel and connection.
func (t *AMQPTrigger) Close() error {
	var errs []error
	if t.channel != nil {
		if err := t.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close broker channel: %w", err))
		}
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close broker connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
