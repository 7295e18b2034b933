package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer listens on EventsQueue and hands every event to the sink.
type Consumer struct {
	url  string
	sink *Sink
	log  *zap.Logger

	// retryDelay holds a failed delivery before it goes back to the queue.
	retryDelay time.Duration
}

func NewConsumer(url string, sink *Sink, log *zap.Logger) *Consumer {
	return &Consumer{url: url, sink: sink, log: log, retryDelay: 5 * time.Second}
}

// Run keeps a consumer attached to the broker, reconnecting with backoff,
// and returns only when ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("event consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
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

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("event consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(EventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.ack(ctx, d, c.Handle(ctx, d.Body))
		}
	}
}

// ack settles a delivery.  Only malformed bodies are dropped: the outbox
// row is already marked dispatched, so any other failure goes back to the
// queue after retryDelay, however often it was delivered before.
func (c *Consumer) ack(ctx context.Context, d amqp.Delivery, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errMalformed):
		c.log.Error("event consumer: dropping malformed message", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		c.log.Warn("event consumer: requeueing message",
			zap.String("message_id", d.MessageId), zap.Bool("redelivered", d.Redelivered), zap.Error(err))
		// on shutdown the requeue still goes out, or the broker returns
		// the unacked message when the channel closes
		sleep(ctx, c.retryDelay)
		_ = d.Nack(false, true)
	}
}

var errMalformed = errors.New("malformed event")

// Handle decodes one message body and delivers it.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	ev, err := DecodeEvent(body)
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return c.sink.Deliver(ctx, ev)
}
