// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed is returned by Consumer.Run when the broker closes
// the delivery channel.
var ErrDeliveriesClosed = errors.New("amqp delivery channel closed")

// consumerPrefetch bounds unacknowledged deliveries per worker.
const consumerPrefetch = 16

func dialQueue(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	// durable, not auto-deleted, not exclusive
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp queue declare: %w", err)
	}
	return conn, ch, nil
}

// AMQPPublisher is a Handler that forwards jobs to a durable queue for the
// mail worker.
type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

// NewAMQPPublisher connects to the broker and declares the queue.
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	conn, ch, err := dialQueue(url, queue)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Handle publishes the job as a persistent JSON message.
func (p *AMQPPublisher) Handle(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return err
	}
	slog.Info("verification_email_queued", "job_id", job.ID, "queue", p.queue)
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	return errors.Join(p.ch.Close(), p.conn.Close())
}

// Consumer reads jobs from the queue and passes them to a Handler.
type Consumer struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	handler Handler
	timeout time.Duration
}

// NewConsumer connects to the broker and declares the queue.
func NewConsumer(url, queue string, handler Handler, timeout time.Duration) (*Consumer, error) {
	conn, ch, err := dialQueue(url, queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, handler: handler, timeout: timeout}, nil
}

// NewDeliveryProcessor returns a Consumer without a broker connection, for
// processing deliveries obtained elsewhere.
func NewDeliveryProcessor(handler Handler, timeout time.Duration) *Consumer {
	return &Consumer{handler: handler, timeout: timeout}
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}

	slog.Info("mail_worker_listening", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.Process(ctx, d)
		}
	}
}

// Process handles one delivery. Successful jobs are acked; malformed or
// failed jobs are dropped without requeue, so each email gets one attempt.
func (c *Consumer) Process(ctx context.Context, d amqp.Delivery) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		slog.Error("mail_job_malformed", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
		return
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.handler.Handle(ctx, job); err != nil {
		slog.Error("mail_job_failed", "job_id", job.ID, "to", job.To, "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Close closes the channel and connection.
func (c *Consumer) Close() error {
	if c.ch == nil {
		return nil
	}
	return errors.Join(c.ch.Close(), c.conn.Close())
}
