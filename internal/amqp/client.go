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

	"gagyebu/internal/ledger"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var _ ledger.Notifier = (*Client)(nil)

// channel is the part of *amqp091.Channel the client drives.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	IsClosed() bool
	Close() error
}

type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel channel

	state        int32
	failureCount int64
	cbMu         sync.Mutex
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.With("component", "amqp"),
	}
	if _, err := client.ensureChannel(); err != nil {
		return nil, err
	}
	return client, nil
}

// ensureChannel returns the open channel, reconnecting when it was closed.
func (c *Client) ensureChannel() (channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := c.setup(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.conn, c.channel = conn, ch
	return ch, nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
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

	_, err = ch.QueueDeclare(
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

	// routing key is the queue name
	if err := ch.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// one unacked change at a time; later ones describe a newer list anyway
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// LedgerChanged publishes the change. It satisfies ledger.Notifier.
func (c *Client) LedgerChanged(ctx context.Context, change ledger.Change) error {
	return c.PublishLedgerChanged(ctx, NewLedgerChangedMessage(change))
}

// PublishLedgerChanged publishes msg as a persistent JSON message.
func (c *Client) PublishLedgerChanged(ctx context.Context, msg *LedgerChangedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, dropping %s change", msg.Op)
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	c.mu.Unlock()
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.resetChannel()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.log().DebugContext(ctx, "Published ledger change",
		"operation", msg.Op,
		"version", msg.Version,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// ConsumeLedgerChanges delivers change messages to handler with manual ack
// until ctx is cancelled. Lost connections are re-dialled with exponential
// backoff. A handler error requeues the message; an undecodable body is
// dropped.
func (c *Client) ConsumeLedgerChanges(ctx context.Context, handler func(context.Context, *LedgerChangedMessage) error) error {
	attempt := 0
	for {
		started, err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}
		if started {
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		attempt++
		c.log().WarnContext(ctx, "AMQP consumer lost its connection, retrying",
			"error", err, "attempt", attempt, "backoff", wait)
		c.resetChannel()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(context.Context, *LedgerChangedMessage) error) (bool, error) {
	ch, err := c.ensureChannel()
	if err != nil {
		return false, err
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return false, fmt.Errorf("start consuming: %w", err)
	}

	c.log().InfoContext(ctx, "Started consuming ledger changes", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return true, amqp091.ErrClosed
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler func(context.Context, *LedgerChangedMessage) error) {
	msg, err := LedgerChangedMessageFromJSON(d.Body)
	if err != nil {
		c.log().ErrorContext(ctx, "Failed to decode ledger change", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		c.log().ErrorContext(ctx, "Failed to handle ledger change",
			"error", err,
			"operation", msg.Op,
			"version", msg.Version)
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
	c.log().DebugContext(ctx, "Processed ledger change", "operation", msg.Op, "version", msg.Version)
}

func (c *Client) resetChannel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		err = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = errors.Join(err, c.conn.Close())
		c.conn = nil
	}
	return err
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.cbMu.Lock()
	last := c.lastFailure
	c.cbMu.Unlock()
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
	n := atomic.AddInt64(&c.failureCount, 1)
	c.cbMu.Lock()
	c.lastFailure = time.Now()
	c.cbMu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.log().Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

var connectionErrorMarkers = []string{
	"connection refused",
	"connection reset",
	"connection closed",
	"closed network connection",
	"channel/connection is not open",
	"eof",
	"broken pipe",
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range connectionErrorMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
