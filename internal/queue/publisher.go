package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// handshakeTimeout bounds the TCP connect plus AMQP handshake when the
// caller's context has no earlier deadline.
const handshakeTimeout = 30 * time.Second

// Publisher sends order events to a durable topic exchange.  It keeps one
// connection and one channel in confirm mode; both are re-opened lazily
// after the broker drops them.  A publish only succeeds once the broker
// has acknowledged the message.
//
// Access to the connection is serialized through a one-slot semaphore
// rather than a mutex so a caller gives up waiting when its context ends,
// even while another caller is stuck redialing.
type Publisher struct {
	url      string
	exchange string
	log      *logrus.Entry

	sem  chan struct{}
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(ctx context.Context, url, exchange string, logger *logrus.Logger) (*Publisher, error) {
	p := newPublisher(url, exchange, logger)
	if err := p.PingContext(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(url, exchange string, logger *logrus.Logger) *Publisher {
	return &Publisher{
		url:      url,
		exchange: exchange,
		log:      logger.WithFields(logrus.Fields{"component": "publisher", "exchange": exchange}),
		sem:      make(chan struct{}, 1),
	}
}

func (p *Publisher) lock(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) unlock() { <-p.sem }

func (p *Publisher) connectLocked(ctx context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := dialContext(ctx, p.url)
		if err != nil {
			return err
		}
		p.conn = conn
		p.ch = nil
		p.log.Info("connected to broker")
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}
	p.ch = ch
	return nil
}

// dialContext opens an AMQP connection whose TCP connect and handshake end
// no later than ctx.  Once the handshake is done the connection no longer
// depends on ctx.
func dialContext(ctx context.Context, url string) (*amqp.Connection, error) {
	var (
		mu  sync.Mutex
		raw net.Conn
	)
	cfg := amqp.Config{
		Locale: "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			deadline := time.Now().Add(handshakeTimeout)
			if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
				deadline = dl
			}
			// amqp clears the deadline once the handshake completes.
			if err := c.SetDeadline(deadline); err != nil {
				_ = c.Close()
				return nil, err
			}
			mu.Lock()
			raw = c
			mu.Unlock()
			return c, nil
		},
	}

	// A cancellation without a deadline aborts the handshake by expiring
	// the socket deadline immediately.
	stop := make(chan struct{})
	aborted := make(chan bool, 1)
	go func() {
		select {
		case <-ctx.Done():
			mu.Lock()
			if raw != nil {
				_ = raw.SetDeadline(time.Now())
			}
			mu.Unlock()
			aborted <- true
		case <-stop:
			aborted <- false
		}
	}()

	conn, err := amqp.DialConfig(url, cfg)
	close(stop)
	wasAborted := <-aborted

	if err != nil {
		if ctxErr := expired(ctx); ctxErr != nil {
			return nil, fmt.Errorf("dial rabbitmq: %w (%v)", ctxErr, err)
		}
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	if wasAborted {
		_ = conn.Close()
		return nil, fmt.Errorf("dial rabbitmq: %w", ctx.Err())
	}
	return conn, nil
}

// expired is ctx.Err(), except that a passed deadline counts as exceeded
// even before the context's own timer has fired.
func expired(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	return nil
}

// PublishOrderPlaced publishes ev under the order.placed routing key.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, ev OrderPlacedEvent) error {
	return p.PublishJSON(ctx, RoutingKeyOrderPlaced, ev)
}

// PublishJSON marshals v and publishes it as a persistent message, waiting
// for the broker's confirmation or ctx to end.
func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.lock(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	if err := p.connectLocked(ctx); err != nil {
		p.unlock()
		return err
	}
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	p.unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	if err := awaitConfirm(ctx, confirm, key); err != nil {
		return err
	}
	p.log.WithField("routing_key", key).Debug("event published")
	return nil
}

var errNacked = errors.New("broker rejected message")

// confirmation is the part of *amqp.DeferredConfirmation the publisher uses.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

func awaitConfirm(ctx context.Context, c confirmation, key string) error {
	acked, err := c.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: %w", key, errNacked)
	}
	return nil
}

// PingContext reports whether the broker connection is usable, re-dialing
// if needed.  Used by the readiness check.
func (p *Publisher) PingContext(ctx context.Context) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.unlock()
	return p.connectLocked(ctx)
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.sem <- struct{}{}
	defer p.unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
