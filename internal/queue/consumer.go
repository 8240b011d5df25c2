package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/game-catalog/internal/metrics"
)

// ErrMalformed marks a message that can never be processed no matter how
// often it is redelivered.  Handlers wrap it to have the message dropped
// (or dead-lettered) instead of requeued.
var ErrMalformed = errors.New("malformed message")

// PaymentHandler applies one payment result.  It must be idempotent.
type PaymentHandler func(ctx context.Context, ev PaymentProcessedEvent) error

// ConsumerConfig describes where payment results are read from.
type ConsumerConfig struct {
	URL                string
	Exchange           string        // topic exchange the payment service publishes to
	Queue              string        // durable queue owned by this service
	DeadLetterExchange string        // optional; rejected messages go here when set
	Prefetch           int           // channel QoS
	Workers            int           // deliveries handled concurrently
	HandlerTimeout     time.Duration // per-message deadline
}

// Consumer reads PaymentProcessedEvents from RabbitMQ and hands them to a
// PaymentHandler.  Acknowledgement policy:
//   - handler succeeded (including absorbed anomalies)  -> Ack
//   - undecodable body or ErrMalformed                  -> Nack without requeue
//   - any other handler error                           -> Nack with requeue
type Consumer struct {
	cfg    ConsumerConfig
	handle PaymentHandler
	log    *logrus.Entry
}

// NewConsumer builds a consumer; Run starts it.
func NewConsumer(cfg ConsumerConfig, handle PaymentHandler, logger *logrus.Logger) *Consumer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Prefetch < cfg.Workers {
		cfg.Prefetch = cfg.Workers
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	return &Consumer{
		cfg:    cfg,
		handle: handle,
		log:    logger.WithFields(logrus.Fields{"component": "payment-consumer", "queue": cfg.Queue}),
	}
}

// Run connects to the broker and consumes until ctx is cancelled.  Broken
// connections are re-dialled with exponential backoff capped at 30s, so Run
// only returns once ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			c.log.WithError(err).Warnf("failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	var args amqp.Table
	if c.cfg.DeadLetterExchange != "" {
		args = amqp.Table{"x-dead-letter-exchange": c.cfg.DeadLetterExchange}
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKeyPaymentProcessed, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.WithField("workers", c.cfg.Workers).Info("consuming payment results")

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range msgs {
				c.deliver(ctx, d)
			}
		}()
	}
	wg.Wait()
	return errors.New("deliveries channel closed")
}

type outcome string

const (
	outcomeAck     outcome = "ack"
	outcomeDrop    outcome = "drop"
	outcomeRequeue outcome = "requeue"
)

func (c *Consumer) deliver(ctx context.Context, d amqp.Delivery) {
	var err error
	switch o := c.process(ctx, d.Body); o {
	case outcomeAck:
		err = d.Ack(false)
	case outcomeDrop:
		err = d.Nack(false, false)
	default:
		err = d.Nack(false, true)
	}
	if err != nil {
		c.log.WithError(err).WithField("delivery_tag", d.DeliveryTag).Warn("acknowledge delivery")
	}
}

// process decodes one message body, runs the handler and decides how the
// delivery is acknowledged.
func (c *Consumer) process(ctx context.Context, body []byte) outcome {
	var ev PaymentProcessedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.log.WithError(err).Error("undecodable payment event; dropping")
		metrics.ConsumerDeliveries.WithLabelValues(string(outcomeDrop)).Inc()
		return outcomeDrop
	}

	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	defer cancel()
	err := c.handle(hctx, ev)

	o := outcomeAck
	switch {
	case err == nil:
	case errors.Is(err, ErrMalformed):
		c.log.WithError(err).WithField("order_id", ev.OrderID).Error("malformed payment event; dropping")
		o = outcomeDrop
	default:
		c.log.WithError(err).WithField("order_id", ev.OrderID).Warn("payment event failed; requeueing")
		o = outcomeRequeue
	}
	metrics.ConsumerDeliveries.WithLabelValues(string(o)).Inc()
	return o
}
