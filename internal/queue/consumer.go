package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// Handler processes one delivery body. ErrDrop acks a message that can never
// succeed; any other error nacks it.
type Handler func(ctx context.Context, body []byte) error

var ErrDrop = errors.New("drop message")

// Consumer reads one durable queue bound to a topic exchange.
type Consumer struct {
	Log *zap.Logger

	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewConsumer(url, exchange, queue, key string) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel: %w", err)
	}
	fail := func(step string, err error) (*Consumer, error) {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}
	// bound prefetch so a backlog stays in the broker
	if err := ch.Qos(50, 0, false); err != nil {
		return fail("qos", err)
	}
	return &Consumer{Log: zap.NewNop(), conn: conn, ch: ch, queue: q.Name}, nil
}

func (c *Consumer) Close() {
	if c == nil || c.conn == nil {
		return
	}
	_ = c.ch.Close()
	_ = c.conn.Close()
}

// Consume runs workers until ctx is cancelled, then waits for in-flight
// messages to settle.
func (c *Consumer) Consume(ctx context.Context, workers int, handle Handler) error {
	if c == nil || c.ch == nil {
		return errors.New("consumer is not initialized")
	}
	if workers <= 0 {
		workers = 1
	}
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						return
					}
					c.deliver(ctx, handle, d)
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return nil
}

func (c *Consumer) deliver(ctx context.Context, handle Handler, d amqp.Delivery) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "amqp.consume",
		tracer.Tag("routing_key", d.RoutingKey),
		tracer.Tag("message_id", d.MessageId),
	)
	err := Dispatch(ctx, handle, d.Body, d.Redelivered, d)
	if err != nil {
		reqID, _ := d.Headers["X-Request-ID"].(string)
		c.Log.Warn("message not processed",
			zap.String("routing_key", d.RoutingKey),
			zap.String("message_id", d.MessageId),
			zap.String("request_id", reqID),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err),
		)
	}
	sp.Finish(tracer.WithError(err))
}

// Acknowledger is the part of amqp.Delivery Dispatch needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Dispatch runs handle and settles the delivery. A failed first attempt is
// requeued once; a failed redelivery is rejected. The handler error is
// returned for logging.
func Dispatch(ctx context.Context, handle Handler, body []byte, redelivered bool, d Acknowledger) error {
	err := handle(ctx, body)
	var settle error
	switch {
	case err == nil, errors.Is(err, ErrDrop):
		settle = d.Ack(false)
	default:
		settle = d.Nack(false, !redelivered)
	}
	if err != nil {
		return err
	}
	return settle
}
