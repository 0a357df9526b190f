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

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// DefaultDialTimeout bounds the TCP connect and AMQP handshake.
const DefaultDialTimeout = 3 * time.Second

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange. The connection is dialed lazily and re-dialed after it drops.
// The mutex guards state only; dialing and publishing run outside it, and a
// caller waits for a dial no longer than its ctx allows.
type AMQPPublisher struct {
	url      string
	exchange string

	// dial is swapped in tests.
	dial func(url string) (amqpConn, error)

	mu      sync.Mutex
	conn    amqpConn
	ch      amqpChannel
	dialing chan struct{} // closed when the in-flight dial finishes
	closed  bool
}

type amqpConn interface {
	openChannel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

type dialedConn struct{ *amqp.Connection }

func (c dialedConn) openChannel() (amqpChannel, error) { return c.Channel() }

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// NewAMQPPublisher returns a publisher for the broker at url. No connection
// is made until the first publish. dialTimeout <= 0 selects
// DefaultDialTimeout.
func NewAMQPPublisher(url, exchange string, dialTimeout time.Duration) *AMQPPublisher {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &AMQPPublisher{
		url:      url,
		exchange: exchange,
		dial: func(u string) (amqpConn, error) {
			conn, err := amqp.DialConfig(u, amqp.Config{
				Heartbeat: 10 * time.Second,
				Locale:    "en_US",
				Dial:      amqp.DefaultDial(dialTimeout),
			})
			if err != nil {
				return nil, err
			}
			return dialedConn{conn}, nil
		},
	}
}

// PublishInteraction implements Publisher.
func (p *AMQPPublisher) PublishInteraction(ctx context.Context, ev InteractionLogged) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.publish(ctx, RoutingInteractionLogged, body)
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, body []byte) error {
	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		// Drop the channel so the next call starts fresh.
		p.mu.Lock()
		if p.ch == ch {
			p.resetLocked()
		}
		p.mu.Unlock()
		return fmt.Errorf("amqp publish %s: %w", key, err)
	}
	return nil
}

// channel returns the live channel, dialing when there is none. Only one
// dial runs at a time; other callers wait for it or for their ctx.
func (p *AMQPPublisher) channel(ctx context.Context) (amqpChannel, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPublisherClosed
		}
		if p.ch != nil && p.conn != nil && !p.conn.IsClosed() {
			ch := p.ch
			p.mu.Unlock()
			return ch, nil
		}
		if wait := p.dialing; wait != nil {
			p.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, fmt.Errorf("amqp dial: %w", ctx.Err())
			}
		}
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("amqp dial: %w", err)
		}
		p.resetLocked()
		done := make(chan struct{})
		p.dialing = done
		p.mu.Unlock()

		res := p.connect(ctx)

		p.mu.Lock()
		p.dialing = nil
		close(done)
		if res.err == nil && p.closed {
			res.release()
			res.err = ErrPublisherClosed
		}
		if res.err == nil {
			p.conn, p.ch = res.conn, res.ch
			log.Info().Str("exchange", p.exchange).Msg("amqp publisher connected")
		}
		p.mu.Unlock()
		if res.err != nil {
			return nil, res.err
		}
		return res.ch, nil
	}
}

type connected struct {
	conn amqpConn
	ch   amqpChannel
	err  error
}

func (c connected) release() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// connect dials, opens a channel and declares the exchange. When ctx ends
// first the caller is released and the late connection is closed.
func (p *AMQPPublisher) connect(ctx context.Context) connected {
	out := make(chan connected, 1)
	go func() {
		conn, err := p.dial(p.url)
		if err != nil {
			out <- connected{err: fmt.Errorf("amqp dial: %w", err)}
			return
		}
		ch, err := conn.openChannel()
		if err != nil {
			_ = conn.Close()
			out <- connected{err: fmt.Errorf("amqp channel: %w", err)}
			return
		}
		if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			out <- connected{err: fmt.Errorf("amqp exchange declare: %w", err)}
			return
		}
		out <- connected{conn: conn, ch: ch}
	}()

	select {
	case res := <-out:
		return res
	case <-ctx.Done():
		go func() { (<-out).release() }()
		return connected{err: fmt.Errorf("amqp dial: %w", ctx.Err())}
	}
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection. Further publishes fail.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.resetLocked()
	return nil
}
