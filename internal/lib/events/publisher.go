package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// State is the publisher's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler processes one consumed event. Returning an error drops the message.
type Handler func(ctx context.Context, routingKey string, payload json.RawMessage) error

type subscription struct {
	queue   string
	keys    []string
	handler Handler
}

// Options configures a Publisher.
type Options struct {
	URL            string
	Exchange       string
	ReconnectDelay time.Duration
	Dial           Dialer
}

// Publisher maintains the broker connection and publishes events.
//
// Publishing and connection swaps share mu, so concurrent Publish calls are
// serialized on the single channel.
type Publisher struct {
	url      string
	exchange string
	delay    time.Duration
	dial     Dialer
	logger   *zerolog.Logger
	now      func() time.Time

	state atomic.Int32

	mu   sync.Mutex
	conn Connection
	ch   Channel
	subs []subscription

	cancel context.CancelFunc
	done   chan struct{}
}

func NewPublisher(opts Options, logger *zerolog.Logger) *Publisher {
	if opts.Dial == nil {
		opts.Dial = DialAMQP
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}

	return &Publisher{
		url:      opts.URL,
		exchange: opts.Exchange,
		delay:    opts.ReconnectDelay,
		dial:     opts.Dial,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// State reports the current connection state.
func (p *Publisher) State() State {
	return State(p.state.Load())
}

func (p *Publisher) setState(s State) {
	p.state.Store(int32(s))
}

// Start runs the connection loop in the background until Close.
func (p *Publisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

// run drives Disconnected -> Connecting -> Connected. Every failed attempt
// and every dropped link waits the fixed delay before the next attempt. A
// channel closed by the broker while the connection stays up counts as a
// dropped link.
func (p *Publisher) run(ctx context.Context) {
	defer close(p.done)

	for {
		p.setState(Connecting)

		l, err := p.connect(ctx)
		if err != nil {
			p.setState(Disconnected)
			p.logger.Error().
				Err(err).
				Dur("retry_in", p.delay).
				Msg("failed to connect to RabbitMQ")
		} else {
			p.setState(Connected)
			p.logger.Info().Str("exchange", p.exchange).Msg("RabbitMQ connected")

			var (
				amqpErr *amqp.Error
				msg     string
			)
			select {
			case <-ctx.Done():
				return
			case amqpErr = <-l.connClosed:
				msg = "RabbitMQ connection closed, reconnecting"
			case amqpErr = <-l.chClosed:
				msg = "RabbitMQ channel closed, reconnecting"
			}

			p.release()
			p.setState(Disconnected)
			if !l.conn.IsClosed() {
				_ = l.conn.Close()
			}

			event := p.logger.Warn().Dur("retry_in", p.delay)
			if amqpErr != nil {
				event = event.Str("reason", amqpErr.Reason).Int("code", amqpErr.Code)
			}
			event.Msg(msg)
		}

		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// link is one established connection and its close notifications.
type link struct {
	conn       Connection
	connClosed <-chan *amqp.Error
	chClosed   <-chan *amqp.Error
}

func (p *Publisher) connect(ctx context.Context) (link, error) {
	conn, err := p.dial(p.url)
	if err != nil {
		return link{}, fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return link{}, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return link{}, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}

	l := link{
		conn:       conn,
		connClosed: conn.NotifyClose(make(chan *amqp.Error, 1)),
		chClosed:   ch.NotifyClose(make(chan *amqp.Error, 1)),
	}

	p.mu.Lock()
	p.conn, p.ch = conn, ch
	subs := append([]subscription(nil), p.subs...)
	p.mu.Unlock()

	for _, sub := range subs {
		if err := p.consume(ctx, ch, sub); err != nil {
			p.logger.Error().Err(err).Str("queue", sub.queue).Msg("failed to restore subscription")
		}
	}

	return l, nil
}

// release forgets the current connection without closing it.
func (p *Publisher) release() {
	p.mu.Lock()
	p.conn, p.ch = nil, nil
	p.mu.Unlock()
}

// Publish sends payload as a persistent JSON message. It returns false, and
// never an error, when the broker is unavailable.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("routing_key", routingKey).Msg("failed to encode event")
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		p.logger.Warn().Str("routing_key", routingKey).Msg("RabbitMQ channel not available, event not published")
		return false
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Body:         body,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
		return false
	}

	p.logger.Debug().Str("routing_key", routingKey).RawJSON("payload", body).Msg("event published")
	return true
}

// Subscribe binds a durable queue to keys on the exchange and feeds every
// delivery to handler. Messages are acked when handler succeeds and dropped
// (nack without requeue) otherwise.
//
// The subscription is remembered and re-established after each reconnect.
// When called while disconnected it only takes effect on the next connect.
func (p *Publisher) Subscribe(ctx context.Context, queue string, keys []string, handler Handler) error {
	if queue == "" || len(keys) == 0 {
		return errors.New("subscribe: queue and at least one routing key are required")
	}

	sub := subscription{queue: queue, keys: keys, handler: handler}

	p.mu.Lock()
	p.subs = append(p.subs, sub)
	ch := p.ch
	p.mu.Unlock()

	if ch == nil {
		p.logger.Info().Str("queue", queue).Msg("RabbitMQ not connected, subscription deferred")
		return nil
	}

	return p.consume(ctx, ch, sub)
}

func (p *Publisher) consume(ctx context.Context, ch Channel, sub subscription) error {
	if _, err := ch.QueueDeclare(sub.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", sub.queue, err)
	}

	for _, key := range sub.keys {
		if err := ch.QueueBind(sub.queue, key, p.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", sub.queue, key, err)
		}
	}

	deliveries, err := ch.Consume(sub.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", sub.queue, err)
	}

	go func() {
		for d := range deliveries {
			p.handleDelivery(ctx, sub, d)
		}
	}()

	p.logger.Info().Str("queue", sub.queue).Strs("routing_keys", sub.keys).Msg("subscribed to events")
	return nil
}

func (p *Publisher) handleDelivery(ctx context.Context, sub subscription, d amqp.Delivery) {
	log := p.logger.With().Str("queue", sub.queue).Str("routing_key", d.RoutingKey).Logger()

	if !json.Valid(d.Body) {
		log.Error().Msg("dropping message with invalid JSON body")
		_ = d.Nack(false, false)
		return
	}

	if err := sub.handler(ctx, d.RoutingKey, json.RawMessage(d.Body)); err != nil {
		log.Error().Err(err).Msg("error processing message, dropping")
		_ = d.Nack(false, false)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Msg("failed to ack message")
	}
}

// Close stops reconnecting and closes the channel and connection.
func (p *Publisher) Close() error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}

	p.mu.Lock()
	conn, ch := p.conn, p.ch
	p.conn, p.ch = nil, nil
	p.mu.Unlock()

	p.setState(Disconnected)

	var errs []error
	if ch != nil {
		errs = append(errs, ch.Close())
	}
	if conn != nil && !conn.IsClosed() {
		errs = append(errs, conn.Close())
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close RabbitMQ: %w", err)
	}

	p.logger.Info().Msg("RabbitMQ connection closed gracefully")
	return nil
}
