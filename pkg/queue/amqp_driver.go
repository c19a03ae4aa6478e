package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultAMQPQueue = "storefront.jobs"

// AMQPDriver publishes jobs to a durable RabbitMQ queue. Deliveries are
// acknowledged as soon as they are handed to a worker; retries and failure
// recording happen in the Manager.
type AMQPDriver struct {
	conn  *amqp.Connection
	pub   *amqp.Channel
	sub   *amqp.Channel
	queue string

	once       sync.Once
	deliveries <-chan amqp.Delivery
	consumeErr error
}

// DialAMQP connects to url and declares queue.
func DialAMQP(url, queue string) (*AMQPDriver, error) {
	if queue == "" {
		queue = defaultAMQPQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("queue/amqp: dial: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue/amqp: publish channel: %w", err)
	}
	sub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue/amqp: consume channel: %w", err)
	}
	if _, err := pub.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue/amqp: declare %s: %w", queue, err)
	}

	return &AMQPDriver{conn: conn, pub: pub, sub: sub, queue: queue}, nil
}

func (d *AMQPDriver) Push(ctx context.Context, payload []byte) error {
	err := d.pub.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("queue/amqp: publish: %w", err)
	}
	return nil
}

func (d *AMQPDriver) consume() {
	if err := d.sub.Qos(8, 0, false); err != nil {
		d.consumeErr = fmt.Errorf("queue/amqp: qos: %w", err)
		return
	}
	d.deliveries, d.consumeErr = d.sub.Consume(d.queue, "", false, false, false, false, nil)
}

func (d *AMQPDriver) Pop(ctx context.Context) ([]byte, error) {
	d.once.Do(d.consume)
	if d.consumeErr != nil {
		return nil, d.consumeErr
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-d.deliveries:
		if !ok {
			return nil, errors.New("queue/amqp: delivery channel closed")
		}
		if err := msg.Ack(false); err != nil {
			return nil, fmt.Errorf("queue/amqp: ack: %w", err)
		}
		return msg.Body, nil
	}
}

func (d *AMQPDriver) Close() error {
	return d.conn.Close()
}
