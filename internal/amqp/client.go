// Package amqp carries alerts from the API to the notification worker over
// RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{url: url, exchangeName: exchangeName, queueName: queueName}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key equals the queue name on the direct exchange
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// isCircuitOpen reports whether publishes should be refused. An open circuit
// moves to half-open once openTimeout has passed, letting one attempt through.
func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// Publish sends msg as a persistent JSON message, reconnecting once if the
// channel was lost.
func (c *Client) Publish(ctx context.Context, msg *AlertMessage) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", msg.Kind, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = c.publish(ctx, body)
	if isConnectionError(err) {
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting", "error", err)
		if rerr := c.connect(); rerr == nil {
			err = c.publish(ctx, body)
		}
	}
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	slog.InfoContext(ctx, "Published alert message",
		"kind", msg.Kind,
		"user_id", msg.UserID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return amqp091.ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Consume delivers alert messages to handler until ctx is cancelled,
// reconnecting with exponential backoff when the broker goes away.
// Malformed messages are dropped; handler failures are requeued.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, *AlertMessage) error) error {
	for attempt := 0; ; attempt++ {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer disconnected, retrying", "error", err, "attempt", attempt, "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := c.connect(); err != nil {
			slog.ErrorContext(ctx, "AMQP reconnect failed", "error", err)
			continue
		}
		attempt = -1
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(context.Context, *AlertMessage) error) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return amqp091.ErrClosed
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming alert messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return amqp091.ErrClosed
			}

			msg, err := AlertMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(ctx, msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"kind", msg.Kind,
					"user_id", msg.UserID)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
			slog.InfoContext(ctx, "Processed alert message", "kind", msg.Kind, "user_id", msg.UserID)
		}
	}
}

// exponentialBackoff doubles from one second and caps at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}
