// Package amqp relays change events between instances over a RabbitMQ
// fanout exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"paylog/internal/core"
	"paylog/internal/log"
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
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// Relay publishes events to a fanout exchange and forwards every event it
// consumes, its own included, to the local notifier. While the broker is
// unreachable events go straight to the local notifier.
type Relay struct {
	url          string
	exchangeName string
	local        core.Notifier
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  atomic.Int64 // unix nanos
}

var _ core.Notifier = (*Relay)(nil)

// NewRelay creates a disconnected relay. Run connects it as a consumer and
// Connect connects it for publishing only. A nil local notifier drops events
// the broker does not take.
func NewRelay(url, exchangeName string, local core.Notifier, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if local == nil {
		local = discard{}
	}
	return &Relay{
		url:          url,
		exchangeName: exchangeName,
		local:        local,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}
}

// Run keeps a consumer connected until ctx is done, reconnecting with
// exponential backoff.
func (r *Relay) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := r.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if atomic.LoadInt64(&r.failureCount) == 0 {
			// the last session connected, start over
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		r.logger.WarnContext(ctx, "AMQP consumer disconnected, retrying",
			log.FieldError, err, "retry_in", wait.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// consume connects, declares the topology and forwards deliveries until the
// channel closes or ctx ends.
func (r *Relay) consume(ctx context.Context) error {
	conn, err := amqp091.Dial(r.url)
	if err != nil {
		r.recordFailure()
		return fmt.Errorf("dial AMQP: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	queue, err := setup(channel, r.exchangeName)
	if err != nil {
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	deliveries, err := channel.Consume(
		queue, // queue
		"",    // consumer
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	r.mu.Lock()
	r.conn, r.channel = conn, channel
	r.mu.Unlock()
	r.recordSuccess()
	r.logger.InfoContext(ctx, "AMQP relay connected", "exchange", r.exchangeName, "queue", queue)

	defer func() {
		r.mu.Lock()
		r.conn, r.channel = nil, nil
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			msg, err := EventMessageFromJSON(d.Body)
			if err != nil {
				r.logger.ErrorContext(ctx, "Failed to decode event message", log.FieldError, err)
				continue
			}
			r.local.Publish(ctx, msg.Event())
		}
	}
}

// Connect opens a publish-only connection for short lived processes that
// never consume. Close releases it.
func (r *Relay) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := amqp091.Dial(r.url)
	if err != nil {
		r.recordFailure()
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(channel, r.exchangeName); err != nil {
		_ = conn.Close()
		return err
	}

	r.mu.Lock()
	r.conn, r.channel = conn, channel
	r.mu.Unlock()
	r.recordSuccess()
	r.logger.DebugContext(ctx, "AMQP publisher connected", "exchange", r.exchangeName)
	return nil
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

func setup(ch *amqp091.Channel, exchange string) (string, error) {
	if err := declareExchange(ch, exchange); err != nil {
		return "", err
	}

	// Server-named, per-instance queue that disappears with the connection.
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind queue: %w", err)
	}
	return q.Name, nil
}

// Publish sends e through the broker, falling back to the local notifier.
func (r *Relay) Publish(ctx context.Context, e core.ChangeEvent) {
	if err := r.publish(ctx, e); err != nil {
		if !errors.Is(err, errNotConnected) {
			r.logger.WarnContext(ctx, "AMQP publish failed, delivering locally",
				log.FieldEventType, e.Type, log.FieldError, err)
		}
		r.local.Publish(ctx, e)
	}
}

var errNotConnected = errors.New("relay not connected")

func (r *Relay) publish(ctx context.Context, e core.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open: %w", errNotConnected)
	}

	r.mu.Lock()
	channel := r.channel
	r.mu.Unlock()
	if channel == nil {
		return errNotConnected
	}

	body, err := NewEventMessage(e).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = channel.PublishWithContext(ctx,
		r.exchangeName, // exchange
		"",             // routing key, ignored by fanout
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			r.recordFailure()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close closes the current connection, if any. Run must be stopped through
// its context.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *Relay) isCircuitOpen() bool {
	if atomic.LoadInt32(&r.state) != StateOpen {
		return false
	}
	if time.Since(time.Unix(0, r.lastFailure.Load())) > openTimeout {
		atomic.CompareAndSwapInt32(&r.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (r *Relay) recordSuccess() {
	atomic.StoreInt64(&r.failureCount, 0)
	atomic.StoreInt32(&r.state, StateClosed)
}

func (r *Relay) recordFailure() {
	r.lastFailure.Store(time.Now().UnixNano())
	if atomic.AddInt64(&r.failureCount, 1) >= maxFailures {
		atomic.StoreInt32(&r.state, StateOpen)
	}
}

type discard struct{}

func (discard) Publish(context.Context, core.ChangeEvent) {}

func exponentialBackoff(attempt int) time.Duration {
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
	for _, s := range []string{"connection", "eof", "broken pipe", "closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
