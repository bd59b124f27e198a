// Package worker consumes queued jobs and drives each request through the
// drafting and multimedia pipelines to a terminal status.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jonathan/content-pipeline/internal/db"
	"github.com/jonathan/content-pipeline/internal/engine"
	"github.com/jonathan/content-pipeline/internal/pipeline"
	"github.com/jonathan/content-pipeline/internal/queue"
)

// Store is the slice of the persistence layer the worker needs on top of
// what the pipelines use. *db.DB satisfies it.
type Store interface {
	pipeline.Store
	ClaimRequest(ctx context.Context, id int64) (bool, error)
	MarkRequestFailed(ctx context.Context, id int64) error
	CompleteRequest(ctx context.Context, id int64, status string, publishedLocation *string) error
	UpdateRequestStatusFrom(ctx context.Context, id int64, to string, from ...string) (bool, error)
}

// Worker runs one consume loop against the queue.
type Worker struct {
	store Store
	queue queue.Queue
	deps  pipeline.Deps
}

// New creates a worker. The pipeline deps' Store is forced to the worker's
// store so both layers write through the same connection pool.
func New(store Store, q queue.Queue, deps pipeline.Deps) *Worker {
	deps.Store = store
	return &Worker{store: store, queue: q, deps: deps}
}

// Run consumes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("worker: consuming")
	return w.queue.Consume(ctx, w.Process)
}

// Process handles one delivery. Returning nil acks the job; returning an
// error hands it back to the queue's redelivery machinery. A pipeline
// failure is final for the request (status failed, job acked) — job-level
// redelivery is reserved for infrastructure errors, not content failures.
func (w *Worker) Process(ctx context.Context, job queue.Job) error {
	_, err := w.Execute(ctx, job)
	return err
}

// Execute claims the request and drives it through both pipelines, returning
// the per-pipeline results for callers that display them. Results cover only
// the pipelines that actually ran; a lost claim yields none.
func (w *Worker) Execute(ctx context.Context, job queue.Job) ([]*engine.Result, error) {
	claimed, err := w.store.ClaimRequest(ctx, job.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim request %d: %w", job.RequestID, err)
	}
	if !claimed {
		// Another worker holds it or it was paused/cancelled meanwhile.
		log.Printf("worker: request=%d not claimable, skipping job=%s", job.RequestID, job.ID)
		return nil, nil
	}

	if job.ResumeStep > 0 {
		// Advisory only. Runs always restart from step 0.
		log.Printf("worker: request=%d carries resume hint step=%d, restarting from 0", job.RequestID, job.ResumeStep)
	}

	log.Printf("worker: request=%d tenant=%d title=%q drafting", job.RequestID, job.TenantID, job.Title)
	drafting := pipeline.Drafting(w.deps).Run(ctx, engine.NewContext(job.RequestID, job.TenantID, job.Title))
	results := []*engine.Result{drafting}
	if !drafting.Success {
		return results, w.failed(ctx, job, drafting)
	}

	mc := engine.NewContext(job.RequestID, job.TenantID, job.Title)
	if out, ok := drafting.Context.Output(pipeline.StepQualityReview); ok {
		mc.Seed(pipeline.StepQualityReview, out)
	}

	log.Printf("worker: request=%d multimedia", job.RequestID)
	multimedia := pipeline.Multimedia(w.deps).Run(ctx, mc)
	results = append(results, multimedia)
	if !multimedia.Success {
		return results, w.failed(ctx, job, multimedia)
	}

	outcome, _ := multimedia.Context.Data(pipeline.StepPublish).(pipeline.PublishOutcome)
	if outcome.Deployed {
		loc := outcome.Location
		if err := w.store.CompleteRequest(ctx, job.RequestID, db.StatusComplete, &loc); err != nil {
			return results, fmt.Errorf("failed to complete request %d: %w", job.RequestID, err)
		}
		log.Printf("worker: request=%d complete, published at %s", job.RequestID, loc)
		return results, nil
	}

	if err := w.store.CompleteRequest(ctx, job.RequestID, db.StatusDraftReady, nil); err != nil {
		return results, fmt.Errorf("failed to complete request %d: %w", job.RequestID, err)
	}
	log.Printf("worker: request=%d draft ready (%s)", job.RequestID, outcome.Message)
	return results, nil
}

// failed records a pipeline failure. A run cut short by context cancellation
// is not a verdict on the request: the claim is handed back so a later
// delivery can pick it up.
func (w *Worker) failed(ctx context.Context, job queue.Job, result *engine.Result) error {
	if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
		if _, err := w.store.UpdateRequestStatusFrom(context.WithoutCancel(ctx), job.RequestID,
			db.StatusQueued, db.StatusProcessing); err != nil {
			log.Printf("worker: request=%d failed to release claim: %v", job.RequestID, err)
		}
		return result.Err
	}

	log.Printf("worker: request=%d failed at %s/%s: %v",
		job.RequestID, result.Pipeline, result.FailedStep, result.Err)
	if err := w.store.MarkRequestFailed(ctx, job.RequestID); err != nil {
		return fmt.Errorf("failed to mark request %d failed: %w", job.RequestID, err)
	}
	return nil
}
