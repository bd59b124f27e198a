package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// attemptsHeader counts job-level delivery attempts across redeliveries.
const attemptsHeader = "x-attempts"

// RabbitMQConfig configures the durable queue topology and retry budget.
type RabbitMQConfig struct {
	URL         string
	Queue       string
	MaxAttempts int
	BaseBackoff time.Duration
}

// RabbitMQ implements Queue on RabbitMQ with a main queue, a TTL retry queue
// that dead-letters back to main, and a DLQ for jobs past their attempt
// budget.
type RabbitMQ struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  RabbitMQConfig
}

// NewRabbitMQ connects and declares the main/retry/DLQ queues.
func NewRabbitMQ(cfg RabbitMQConfig) (*RabbitMQ, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbit dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbit channel: %w", err)
	}

	mainQ := cfg.Queue
	retryQ := cfg.Queue + ".retry"
	dlqQ := cfg.Queue + ".dlq"

	// DLQ
	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare %s: %w", dlqQ, err)
	}

	// Retry queue: per-message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": mainQ,
	}); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare %s: %w", retryQ, err)
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	if _, err := ch.QueueDeclare(mainQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare %s: %w", mainQ, err)
	}

	return &RabbitMQ{conn: conn, ch: ch, cfg: cfg}, nil
}

// Enqueue publishes a persistent job message to the main queue.
func (q *RabbitMQ) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = q.ch.PublishWithContext(cctx,
		"",          // default exchange
		q.cfg.Queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      amqp.Table{attemptsHeader: int32(1)},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to publish job: %w", err)
	}
	return job.ID, nil
}

// Consume delivers jobs one at a time (prefetch 1) with manual acks. On
// handler failure the job is re-published to the retry queue with an
// exponentially growing TTL until the attempt budget runs out, then
// dead-lettered.
func (q *RabbitMQ) Consume(ctx context.Context, handle Handler) error {
	if err := q.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := q.ch.Consume(q.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			var job Job
			if err := json.Unmarshal(d.Body, &job); err != nil || job.RequestID == 0 {
				log.Printf("queue: bad message dropped: %v", err)
				_ = d.Nack(false, false)
				continue
			}

			if err := handle(ctx, job); err != nil {
				q.redeliver(ctx, d, job, err)
				continue
			}

			if err := d.Ack(false); err != nil {
				log.Printf("queue: ack failed job=%s err=%v", job.ID, err)
			}
		}
	}
}

// redeliver routes a failed delivery to the retry queue or the DLQ.
func (q *RabbitMQ) redeliver(ctx context.Context, d amqp.Delivery, job Job, cause error) {
	attempt := deliveryAttempt(d)
	if attempt >= q.cfg.MaxAttempts {
		log.Printf("queue: job=%s request=%d dead-lettered after %d attempt(s): %v",
			job.ID, job.RequestID, attempt, cause)
		_ = d.Nack(false, false)
		return
	}

	backoff := q.cfg.BaseBackoff * (1 << (attempt - 1))
	log.Printf("queue: job=%s request=%d attempt %d failed, retrying in %s: %v",
		job.ID, job.RequestID, attempt, backoff, cause)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := q.ch.PublishWithContext(cctx, "", q.cfg.Queue+".retry", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Timestamp:    time.Now(),
		Expiration:   strconv.FormatInt(backoff.Milliseconds(), 10),
		Headers:      amqp.Table{attemptsHeader: int32(attempt + 1)},
	})
	if err != nil {
		// Could not park the retry; leave redelivery to the broker.
		log.Printf("queue: retry publish failed job=%s err=%v", job.ID, err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func deliveryAttempt(d amqp.Delivery) int {
	if d.Headers != nil {
		if v, ok := d.Headers[attemptsHeader]; ok {
			switch n := v.(type) {
			case int32:
				return int(n)
			case int64:
				return int(n)
			case int:
				return n
			}
		}
	}
	return 1
}

// Close closes the channel and connection.
func (q *RabbitMQ) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
