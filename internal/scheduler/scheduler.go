// Package scheduler owns time: it creates future-dated requests, expands
// recurring schedules, and runs the poll loop that promotes due work onto
// the queue.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/content-pipeline/internal/db"
	"github.com/jonathan/content-pipeline/internal/queue"
)

// Store is the slice of the persistence layer the scheduler needs. *db.DB
// satisfies it.
type Store interface {
	CreateRequest(ctx context.Context, tenantID int64, title string, scheduledFor time.Time) (int64, error)
	DueRequests(ctx context.Context, now time.Time, limit int) ([]db.Request, error)
	UpdateRequestStatusFrom(ctx context.Context, id int64, to string, from ...string) (bool, error)
	CreateScheduleEntries(ctx context.Context, tenantID int64, entries []db.ScheduleEntryInput) ([]int64, error)
	DueScheduleEntries(ctx context.Context, now time.Time, limit int) ([]db.ScheduleEntry, error)
	MarkScheduleMaterialized(ctx context.Context, id int64) (bool, error)
}

// Options tunes the poll loop.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
	// Now is the clock; tests inject a fixed one.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Scheduler creates scheduled work and promotes it when due.
type Scheduler struct {
	store Store
	queue queue.Queue
	opts  Options
}

// New creates a scheduler.
func New(store Store, q queue.Queue, opts Options) *Scheduler {
	return &Scheduler{store: store, queue: q, opts: opts.withDefaults()}
}

// AddContent creates one future-dated request and returns its id.
func (s *Scheduler) AddContent(ctx context.Context, tenantID int64, title string, scheduledFor time.Time) (int64, error) {
	if title == "" {
		return 0, fmt.Errorf("title is required")
	}
	id, err := s.store.CreateRequest(ctx, tenantID, title, scheduledFor)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return id, nil
}

// BulkAddContent creates one request per title, spaced intervalHours apart
// starting at the first slot. Returns the created ids in title order; on a
// mid-batch failure the ids created so far are returned with the error.
func (s *Scheduler) BulkAddContent(ctx context.Context, tenantID int64, titles []string, start time.Time, intervalHours int) ([]int64, error) {
	if len(titles) == 0 {
		return nil, fmt.Errorf("no titles given")
	}
	if intervalHours <= 0 {
		intervalHours = 24
	}

	ids := make([]int64, 0, len(titles))
	for i, title := range titles {
		slot := start.Add(time.Duration(i*intervalHours) * time.Hour)
		id, err := s.AddContent(ctx, tenantID, title, slot)
		if err != nil {
			return ids, fmt.Errorf("bulk add stopped at %q: %w", title, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AddRecurring expands the spec into schedule entries and stores them. The
// entries are materialized into requests by the poll loop as they come due.
func (s *Scheduler) AddRecurring(ctx context.Context, tenantID int64, spec RecurrenceSpec) ([]int64, error) {
	entries, err := spec.Entries()
	if err != nil {
		return nil, err
	}
	ids, err := s.store.CreateScheduleEntries(ctx, tenantID, entries)
	if err != nil {
		return ids, fmt.Errorf("failed to store schedule entries: %w", err)
	}
	return ids, nil
}

// Run polls until the context is cancelled. Each tick materializes due
// schedule entries and promotes due pending requests onto the queue.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("scheduler: polling every %s", s.opts.PollInterval)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			log.Printf("scheduler: tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one scheduling pass.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.opts.Now()
	if err := s.materializeDue(ctx, now); err != nil {
		return err
	}
	return s.promoteDue(ctx, now)
}

// materializeDue turns due schedule entries into pending requests. The
// materialized flag is flipped first; losing that race means another
// scheduler owns the entry.
func (s *Scheduler) materializeDue(ctx context.Context, now time.Time) error {
	entries, err := s.store.DueScheduleEntries(ctx, now, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to load due schedule entries: %w", err)
	}

	for _, entry := range entries {
		won, err := s.store.MarkScheduleMaterialized(ctx, entry.ID)
		if err != nil {
			return err
		}
		if !won {
			continue
		}
		id, err := s.store.CreateRequest(ctx, entry.TenantID, entry.Title, entry.ScheduledFor)
		if err != nil {
			return fmt.Errorf("failed to materialize schedule entry %d: %w", entry.ID, err)
		}
		log.Printf("scheduler: schedule entry %d materialized as request %d", entry.ID, id)
	}
	return nil
}

// promoteDue enqueues a job for each due pending request, then flips it to
// queued. Enqueue-then-flip keeps the at-least-once guarantee: a crash
// between the two leaves a pending record that gets a duplicate job next
// tick, which the worker's claim gate absorbs.
func (s *Scheduler) promoteDue(ctx context.Context, now time.Time) error {
	due, err := s.store.DueRequests(ctx, now, s.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to load due requests: %w", err)
	}

	for _, req := range due {
		jobID, err := s.queue.Enqueue(ctx, queue.Job{
			RequestID: req.ID,
			TenantID:  req.TenantID,
			Title:     req.Title,
		})
		if err != nil {
			return fmt.Errorf("failed to enqueue request %d: %w", req.ID, err)
		}

		flipped, err := s.store.UpdateRequestStatusFrom(ctx, req.ID, db.StatusQueued, db.StatusPending)
		if err != nil {
			return err
		}
		if !flipped {
			// Lost a race with an operator or another scheduler; the claim
			// gate will discard the extra job.
			log.Printf("scheduler: request=%d no longer pending, job=%s will be skipped", req.ID, jobID)
			continue
		}
		log.Printf("scheduler: request=%d queued job=%s", req.ID, jobID)
	}
	return nil
}

// EnqueueNow promotes one request immediately regardless of its scheduled
// time. Used by the operator enqueue-now and resume actions; resumeStep
// rides along as an advisory hint.
func (s *Scheduler) EnqueueNow(ctx context.Context, req *db.Request, resumeStep int) (string, error) {
	jobID, err := s.queue.Enqueue(ctx, queue.Job{
		RequestID:  req.ID,
		TenantID:   req.TenantID,
		Title:      req.Title,
		ResumeStep: resumeStep,
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue request %d: %w", req.ID, err)
	}
	if _, err := s.store.UpdateRequestStatusFrom(ctx, req.ID, db.StatusQueued, db.StatusPending); err != nil {
		return jobID, err
	}
	return jobID, nil
}
