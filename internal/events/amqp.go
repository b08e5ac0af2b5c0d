package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	outboxSize   = 1024
	dialTimeout  = 5 * time.Second
	publishWait  = 5 * time.Second
	backoffStart = time.Second
	backoffMax   = 30 * time.Second
)

var (
	ErrOutboxFull        = errors.New("rabbitmq: outbox is full")
	ErrPublisherClosed   = errors.New("rabbitmq: publisher is closed")
	ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable, waiting to redial")
)

type outgoing struct {
	queue string
	body  []byte
}

// AMQPPublisher keeps one connection and channel to the broker and publishes
// from a background worker, so callers never wait on the network. A lost
// connection is redialed with exponential backoff; events that arrive while
// the broker is down are dropped and logged.
type AMQPPublisher struct {
	url    string
	outbox chan outgoing
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	// Дальше только воркер
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	backoff  time.Duration
	retryAt  time.Time
}

func NewAMQPPublisher(url string) *AMQPPublisher {
	p := newAMQPPublisher(url, outboxSize)
	p.wg.Add(1)
	go p.run()
	return p
}

func newAMQPPublisher(url string, buffer int) *AMQPPublisher {
	return &AMQPPublisher{
		url:      url,
		outbox:   make(chan outgoing, buffer),
		done:     make(chan struct{}),
		declared: make(map[string]bool),
		backoff:  backoffStart,
	}
}

// Publish serializes event and hands it to the worker. It only fails on a
// bad event, a full outbox or a closed publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, queue string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal %s: %w", queue, err)
	}

	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.outbox <- outgoing{queue: queue, body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrOutboxFull
	}
}

// Close stops the worker and closes the broker connection. Events still in
// the outbox are dropped.
func (p *AMQPPublisher) Close() error {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
	p.reset()
	return nil
}

func (p *AMQPPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.outbox:
			if err := p.send(msg); err != nil {
				log.Warn().Err(err).Str("queue", msg.queue).Msg("domain event dropped")
			}
		}
	}
}

func (p *AMQPPublisher) send(msg outgoing) error {
	if err := p.connect(); err != nil {
		return err
	}

	if !p.declared[msg.queue] {
		// durable, не autoDelete, не exclusive
		if _, err := p.ch.QueueDeclare(msg.queue, true, false, false, false, nil); err != nil {
			p.reset()
			return fmt.Errorf("rabbitmq: declare %s: %w", msg.queue, err)
		}
		p.declared[msg.queue] = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishWait)
	defer cancel()
	err := p.ch.PublishWithContext(ctx, "", msg.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         msg.body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq: publish %s: %w", msg.queue, err)
	}
	return nil
}

// connect переиспользует живое соединение или дозванивается, но не чаще,
// чем позволяет backoff
func (p *AMQPPublisher) connect() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()

	if time.Now().Before(p.retryAt) {
		return ErrBrokerUnavailable
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		p.scheduleRetry()
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.scheduleRetry()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	p.conn, p.ch = conn, ch
	p.backoff = backoffStart
	p.retryAt = time.Time{}
	return nil
}

func (p *AMQPPublisher) scheduleRetry() {
	p.retryAt = time.Now().Add(p.backoff)
	p.backoff *= 2
	if p.backoff > backoffMax {
		p.backoff = backoffMax
	}
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
	p.declared = make(map[string]bool)
}
