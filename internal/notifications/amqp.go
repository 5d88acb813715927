package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"quill/internal/middleware"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// NotificationExchange is the topic exchange notification pushes go to.
	NotificationExchange = "quill.notifications"
	routingKeyPrefix     = "user."
)

type publishFunc func(ctx context.Context, key string, msg amqp.Publishing) error

// AMQPPusher publishes pushes to a RabbitMQ topic exchange keyed by user.
type AMQPPusher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	publish publishFunc
	// sem serializes publishes on the shared channel. A slot is held until
	// the broker call returns, even after the caller gave up.
	sem chan struct{}
}

func newAMQPPusher(conn *amqp.Connection, ch *amqp.Channel, publish publishFunc) *AMQPPusher {
	return &AMQPPusher{conn: conn, channel: ch, publish: publish, sem: make(chan struct{}, 1)}
}

// NewAMQPPusher dials url and declares the notification exchange.
func NewAMQPPusher(url string) (*AMQPPusher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		NotificationExchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", NotificationExchange, err)
	}

	return newAMQPPusher(conn, ch, func(ctx context.Context, key string, msg amqp.Publishing) error {
		return ch.PublishWithContext(ctx, NotificationExchange, key, false, false, msg)
	}), nil
}

// Push publishes payload with routing key user.<id>. PublishWithContext
// does not honour deadlines, so the call runs in its own goroutine and Push
// returns ctx.Err() once ctx is done. A publish left behind keeps its
// semaphore slot until the broker answers or the channel is closed.
func (p *AMQPPusher) Push(ctx context.Context, userID uint, payload string) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	msg := amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        []byte(payload),
	}
	done := make(chan error, 1)
	go func() {
		defer func() { <-p.sem }()
		done <- p.publish(ctx, RoutingKey(userID), msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to publish notification: %w", err)
		}
		return nil
	case <-ctx.Done():
		middleware.Logger.Warn("notification publish abandoned",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", ctx.Err().Error()))
		return ctx.Err()
	}
}

// Consume binds a private queue to every user key and calls onMessage for
// each push until ctx is done. Each server instance gets its own copy.
func (p *AMQPPusher) Consume(ctx context.Context, onMessage func(userID uint, payload string)) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKeyPrefix+"*", NotificationExchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		defer func() { _ = ch.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					middleware.Logger.Warn("notification consumer channel closed")
					return
				}
				userID, ok := parseRoutingKey(msg.RoutingKey)
				if !ok {
					middleware.Logger.Warn("invalid notification routing key", slog.String("routing_key", msg.RoutingKey))
					continue
				}
				onMessage(userID, string(msg.Body))
			}
		}
	}()
	return nil
}

// Name identifies the transport in metrics.
func (p *AMQPPusher) Name() string { return "amqp" }

// Close closes the channel and connection, which also fails any publish
// still waiting on the broker.
func (p *AMQPPusher) Close() error {
	var errs []string
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close rabbitmq: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RoutingKey is the topic key for a user's pushes.
func RoutingKey(userID uint) string {
	return routingKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func parseRoutingKey(key string) (uint, bool) {
	raw, found := strings.CutPrefix(key, routingKeyPrefix)
	if !found {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
