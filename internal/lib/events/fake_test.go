package events

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

// fakeBroker hands out in-memory connections and records everything sent.
type fakeBroker struct {
	mu         sync.Mutex
	failDials  int
	dials      int
	conns      []*fakeConn
	exchanges  []string
	queues     []string
	bindings   []string
	published  []publishedMessage
	publishErr error
}

func (b *fakeBroker) dial(string) (Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.failDials > 0 {
		b.failDials--
		return nil, errors.New("connection refused")
	}

	conn := &fakeConn{broker: b}
	conn.ch = &fakeChannel{broker: b, deliveries: map[string]chan amqp.Delivery{}}
	b.conns = append(b.conns, conn)
	return conn, nil
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) lastConn() *fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return nil
	}
	return b.conns[len(b.conns)-1]
}

func (b *fakeBroker) messages() []publishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedMessage(nil), b.published...)
}

func (b *fakeBroker) declaredExchanges() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.exchanges...)
}

type fakeConn struct {
	broker *fakeBroker
	ch     *fakeChannel

	mu     sync.Mutex
	closed bool
	notify []chan *amqp.Error
}

func (c *fakeConn) Channel() (Channel, error) { return c.ch, nil }

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Close() error {
	c.shutdown(nil)
	return nil
}

// drop simulates the broker closing the connection.
func (c *fakeConn) drop() {
	c.shutdown(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"})
}

func (c *fakeConn) shutdown(reason *amqp.Error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	notify := c.notify
	c.mu.Unlock()

	c.ch.shutdown(reason)
	for _, n := range notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
}

type fakeChannel struct {
	broker *fakeBroker

	mu         sync.Mutex
	closed     bool
	deliveries map[string]chan amqp.Delivery
	notify     []chan *amqp.Error
}

func (ch *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	if kind == amqp.ExchangeTopic && durable {
		ch.broker.exchanges = append(ch.broker.exchanges, name)
	}
	return nil
}

func (ch *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if ch.isClosed() {
		return amqp.ErrClosed
	}

	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	if ch.broker.publishErr != nil {
		return ch.broker.publishErr
	}
	ch.broker.published = append(ch.broker.published, publishedMessage{exchange: exchange, key: key, msg: msg})
	return nil
}

func (ch *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	if durable {
		ch.broker.queues = append(ch.broker.queues, name)
	}
	return amqp.Queue{Name: name}, nil
}

func (ch *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.broker.bindings = append(ch.broker.bindings, exchange+"/"+key+"->"+name)
	return nil
}

func (ch *fakeChannel) Consume(queue, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	d := make(chan amqp.Delivery, 16)
	ch.deliveries[queue] = d
	return d, nil
}

func (ch *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.notify = append(ch.notify, receiver)
	return receiver
}

func (ch *fakeChannel) Close() error {
	ch.shutdown(nil)
	return nil
}

// dropChannel simulates the broker closing the channel while the connection
// stays open, as it does on a channel-level exception.
func (ch *fakeChannel) dropChannel() {
	ch.shutdown(&amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED"})
}

func (ch *fakeChannel) shutdown(reason *amqp.Error) {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	for _, d := range ch.deliveries {
		close(d)
	}
	notify := ch.notify
	ch.mu.Unlock()

	for _, n := range notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
}

func (ch *fakeChannel) isClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

func (ch *fakeChannel) deliver(queue string, d amqp.Delivery) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	q, ok := ch.deliveries[queue]
	if !ok || ch.closed {
		return false
	}
	q <- d
	return true
}

func (ch *fakeChannel) consuming(queue string) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	_, ok := ch.deliveries[queue]
	return ok && !ch.closed
}

// fakeAcknowledger records how each delivery was settled.
type fakeAcknowledger struct {
	mu    sync.Mutex
	acked []uint64
	nacks []uint64
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !requeue {
		a.nacks = append(a.nacks, tag)
	}
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) settled() (acked, nacked []uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.acked...), append([]uint64(nil), a.nacks...)
}
