package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const appID = "expired-service"

// Rabbit publishes JSON events to a durable topic exchange.
type Rabbit struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbit(url, exchange string) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare %s: %w", exchange, err)
	}
	return &Rabbit{conn: conn, ch: ch}, nil
}

func (r *Rabbit) Close() error {
	if r == nil || r.conn == nil {
		return nil
	}
	_ = r.ch.Close()
	return r.conn.Close()
}

func (r *Rabbit) Publish(ctx context.Context, exchange, key string, event any, reqID string) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "amqp.publish",
		tracer.Tag("exchange", exchange),
		tracer.Tag("routing_key", key),
	)
	body, err := json.Marshal(event)
	if err != nil {
		sp.Finish(tracer.WithError(err))
		return fmt.Errorf("encode %s: %w", key, err)
	}

	// a slow broker must not hold the request
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err = r.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		AppId:        appID,
		Type:         key,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
		Headers:      amqp.Table{"X-Request-ID": reqID},
	})
	sp.Finish(tracer.WithError(err))
	return err
}
