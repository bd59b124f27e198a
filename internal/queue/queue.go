// Package queue provides the durable job queue feeding workers. Delivery is
// at-least-once: a job may be redelivered whole after a crash, with
// job-level attempt counting and exponential backoff layered above the
// per-step retry inside a pipeline run.
package queue

import "context"

// Job identifies which request to drive through the pipelines.
type Job struct {
	ID        string `json:"id"`
	RequestID int64  `json:"request_id"`
	TenantID  int64  `json:"tenant_id"`
	Title     string `json:"title"`
	// ResumeStep is an advisory hint recorded when an operator resumes a
	// paused request. Workers log it but always restart from step 0.
	ResumeStep int `json:"resume_step,omitempty"`
}

// Handler processes one delivered job. A non-nil error triggers redelivery
// until the queue's attempt budget is exhausted, after which the job is
// dead-lettered.
type Handler func(ctx context.Context, job Job) error

// Queue is the injectable queue dependency shared by scheduler and worker.
type Queue interface {
	// Enqueue publishes a job and returns its id.
	Enqueue(ctx context.Context, job Job) (string, error)
	// Consume delivers jobs to the handler one at a time until the context
	// is cancelled or the underlying transport closes.
	Consume(ctx context.Context, handle Handler) error
	// Close releases the queue's resources.
	Close() error
}
