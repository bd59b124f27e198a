package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryDelivery struct {
	job     Job
	attempt int
}

// Memory is an in-process Queue for tests and single-process runs. It keeps
// the same at-least-once contract as the RabbitMQ implementation: failed
// jobs are redelivered (without the TTL wait) up to MaxAttempts, then moved
// to an inspectable dead-letter list.
type Memory struct {
	maxAttempts int

	mu   sync.Mutex
	jobs chan memoryDelivery
	dead []Job

	closeOnce sync.Once
	closed    chan struct{}
}

// NewMemory creates an in-process queue with the given attempt budget.
func NewMemory(maxAttempts int) *Memory {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Memory{
		maxAttempts: maxAttempts,
		jobs:        make(chan memoryDelivery, 1024),
		closed:      make(chan struct{}),
	}
}

// Enqueue adds a job to the in-process buffer.
func (m *Memory) Enqueue(_ context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	select {
	case <-m.closed:
		return "", fmt.Errorf("queue closed")
	default:
	}
	select {
	case m.jobs <- memoryDelivery{job: job, attempt: 1}:
		return job.ID, nil
	default:
		return "", fmt.Errorf("queue full")
	}
}

// Consume delivers buffered jobs to the handler until the context is
// cancelled or the queue is closed.
func (m *Memory) Consume(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return nil
		case d := <-m.jobs:
			if err := handle(ctx, d.job); err != nil {
				if d.attempt >= m.maxAttempts {
					m.mu.Lock()
					m.dead = append(m.dead, d.job)
					m.mu.Unlock()
					continue
				}
				d.attempt++
				select {
				case m.jobs <- d:
				default:
					m.mu.Lock()
					m.dead = append(m.dead, d.job)
					m.mu.Unlock()
				}
			}
		}
	}
}

// DeadLetters returns jobs that exhausted their attempt budget.
func (m *Memory) DeadLetters() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, len(m.dead))
	copy(out, m.dead)
	return out
}

// Pending reports how many jobs are buffered and undelivered.
func (m *Memory) Pending() int {
	return len(m.jobs)
}

// Drain consumes until the buffer is empty or the timeout elapses. Test
// helper for driving the queue synchronously.
func (m *Memory) Drain(ctx context.Context, handle Handler, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("drain timed out with %d pending", len(m.jobs))
		case d := <-m.jobs:
			if err := handle(ctx, d.job); err != nil {
				if d.attempt >= m.maxAttempts {
					m.mu.Lock()
					m.dead = append(m.dead, d.job)
					m.mu.Unlock()
					break
				}
				d.attempt++
				m.jobs <- d
			}
		default:
			return nil
		}
	}
}

// Close stops delivery. Safe to call more than once.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}
