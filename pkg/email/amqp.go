package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Queue carries alert emails over AMQP. The server publishes, and
// `fos email-worker` consumes and sends.
type Queue struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	logger       *slog.Logger
}

// DialQueue connects to the broker and declares the exchange and queue.
func DialQueue(url, exchangeName, queueName string, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q := &Queue{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}

	if err := q.setup(); err != nil {
		q.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return q, nil
}

func (q *Queue) setup() error {
	err := q.channel.ExchangeDeclare(
		q.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		q.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key equals the queue name on a direct exchange.
	if err := q.channel.QueueBind(q.queueName, q.queueName, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Dispatch publishes req as a persistent message.
func (q *Queue) Dispatch(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = q.channel.PublishWithContext(
		ctx,
		q.exchangeName, // exchange
		q.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	q.logger.DebugContext(ctx, "published alert email", "queue", q.queueName, "email", req.Email)
	return nil
}

// Consume delivers queued requests to handle until ctx is done. Messages
// that cannot be decoded are dropped; handler failures are requeued.
func (q *Queue) Consume(ctx context.Context, handle func(context.Context, Request) error) error {
	msgs, err := q.channel.Consume(
		q.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	q.logger.InfoContext(ctx, "consuming alert emails", "queue", q.queueName)

	for {
		select {
		case <-ctx.Done():
			q.logger.InfoContext(ctx, "stopping alert email consumer", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			q.handle(ctx, delivery, handle)
		}
	}
}

func (q *Queue) handle(ctx context.Context, delivery amqp091.Delivery, handle func(context.Context, Request) error) {
	req, err := DecodeRequest(delivery.Body)
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to decode alert email", "error", err)
		delivery.Nack(false, false)
		return
	}

	if err := handle(ctx, req); err != nil {
		q.logger.ErrorContext(ctx, "failed to send alert email", "error", err, "email", req.Email)
		delivery.Nack(false, !delivery.Redelivered)
		return
	}
	delivery.Ack(false)
}

// DecodeRequest parses a queued message body.
func DecodeRequest(body []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, fmt.Errorf("unmarshal alert email: %w", err)
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
