package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"callbingo/internal/core"
	"callbingo/internal/effects"
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
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	errNotConnected = errors.New("amqp: not connected")

	// ErrRejected marks a handler error that redelivery cannot fix; the
	// message is dropped instead of requeued.
	ErrRejected = errors.New("amqp: message rejected")
)

var _ effects.Sink = (*Client)(nil)

// Client publishes to one direct exchange with two bound queues and
// reconnects lazily after connection loss.
type Client struct {
	url          string
	exchangeName string
	effectsQueue string
	ledgerQueue  string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

func NewClient(url, exchangeName, effectsQueue, ledgerQueue string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		effectsQueue: effectsQueue,
		ledgerQueue:  ledgerQueue,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := c.setup(ch); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}
	c.conn, c.channel = conn, ch
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for _, q := range []string{c.effectsQueue, c.ledgerQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		// Routing key equals the queue name on the direct exchange.
		if err := ch.QueueBind(q, q, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// channelFor returns a live channel, reconnecting if the previous one was
// closed.
func (c *Client) channelFor() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	if c.url == "" {
		return nil, errNotConnected
	}
	c.closeLocked()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	slog.Info("Reconnected to AMQP broker", "exchange", c.exchangeName)
	return c.channel, nil
}

// Ping reports whether a channel to the broker can be obtained.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.channelFor()
	return err
}

// Emit implements effects.Sink by publishing to the effects queue.
func (c *Client) Emit(ctx context.Context, ev effects.Event) error {
	return c.PublishEffect(ctx, NewEffectMessage(ev))
}

func (c *Client) PublishEffect(ctx context.Context, msg *EffectMessage) error {
	if err := c.publish(ctx, c.effectsQueue, msg); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Published effect", "kind", msg.Kind, "queue", c.effectsQueue)
	return nil
}

func (c *Client) PublishLedgerSync(ctx context.Context, action LedgerAction, tx core.Transaction) error {
	if err := c.publish(ctx, c.ledgerQueue, NewLedgerSyncMessage(action, tx)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published ledger sync message",
		"action", action,
		"id", tx.ID,
		"exchange", c.exchangeName,
		"queue", c.ledgerQueue)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.channelFor()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, c.exchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.dropChannel()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// ConsumeEffects blocks until ctx is done, handing each effect to handler.
func (c *Client) ConsumeEffects(ctx context.Context, handler func(context.Context, *EffectMessage) error) error {
	return c.consume(ctx, c.effectsQueue, func(ctx context.Context, body []byte) (bool, error) {
		msg, err := EffectMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handler(ctx, msg)
	})
}

// ConsumeLedgerSync blocks until ctx is done, handing each ledger change
// to handler.
func (c *Client) ConsumeLedgerSync(ctx context.Context, handler func(context.Context, *LedgerSyncMessage) error) error {
	return c.consume(ctx, c.ledgerQueue, func(ctx context.Context, body []byte) (bool, error) {
		msg, err := LedgerSyncMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		return true, handler(ctx, msg)
	})
}

// handleFunc reports whether the body decoded and the handler's error.
type handleFunc func(ctx context.Context, body []byte) (decoded bool, err error)

func (c *Client) consume(ctx context.Context, queue string, fn handleFunc) error {
	for attempt := 0; ; {
		started, err := c.consumeOnce(ctx, queue, fn)
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		}
		if started {
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "Consumer interrupted, retrying",
			"queue", queue,
			"error", err,
			"retry_in", wait)
		attempt++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// consumeOnce reports whether consumption started before it stopped.
func (c *Client) consumeOnce(ctx context.Context, queue string, fn handleFunc) (bool, error) {
	ch, err := c.channelFor()
	if err != nil {
		return false, err
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		c.dropChannel()
		return false, fmt.Errorf("start consuming: %w", err)
	}
	slog.InfoContext(ctx, "Started consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				c.dropChannel()
				return true, errors.New("message channel closed")
			}
			handleDelivery(ctx, queue, d, d.Body, fn)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// handleDelivery acks processed messages, drops undecodable or rejected
// ones and requeues those whose handler failed.
func handleDelivery(ctx context.Context, queue string, d acknowledger, body []byte, fn handleFunc) {
	decoded, err := fn(ctx, body)
	switch {
	case !decoded:
		slog.ErrorContext(ctx, "Failed to unmarshal message", "queue", queue, "error", err)
		d.Nack(false, false)
	case errors.Is(err, ErrRejected):
		slog.ErrorContext(ctx, "Dropping rejected message", "queue", queue, "error", err)
		d.Nack(false, false)
	case err != nil:
		slog.ErrorContext(ctx, "Failed to handle message", "queue", queue, "error", err)
		d.Nack(false, true)
	default:
		d.Ack(false)
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.failMu.Lock()
	last := c.lastFailure
	c.failMu.Unlock()
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
	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()
	n := atomic.AddInt64(&c.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			slog.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

func (c *Client) dropChannel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
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
	c.url = ""
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// exponentialBackoff doubles from one second and caps at thirty.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	return min(d, maxBackoff)
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
