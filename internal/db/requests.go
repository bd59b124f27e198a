package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, tenant_id, title, status, current_step, scheduled_for,
	       published_location, text_content, html_content, created_at, updated_at, completed_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.TenantID, &r.Title, &r.Status, &r.CurrentStep, &r.ScheduledFor,
		&r.PublishedLocation, &r.TextContent, &r.HTMLContent, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRequest inserts a new content request in pending status and returns its ID.
func (db *DB) CreateRequest(ctx context.Context, tenantID int64, title string, scheduledFor time.Time) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx,
		`INSERT INTO requests (tenant_id, title, status, current_step, scheduled_for)
		 VALUES ($1, $2, $3, 0, $4)
		 RETURNING id`,
		tenantID, title, StatusPending, scheduledFor,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return id, nil
}

// GetRequest retrieves a request by ID. Returns nil when not found.
func (db *DB) GetRequest(ctx context.Context, id int64) (*Request, error) {
	r, err := scanRequest(db.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return r, nil
}

// ListRequests retrieves requests with optional filters, newest first.
func (db *DB) ListRequests(ctx context.Context, filters RequestFilters) ([]Request, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.TenantID != 0 {
		query += fmt.Sprintf(" AND tenant_id = $%d", argNum)
		args = append(args, filters.TenantID)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, nil
}

// DueRequests retrieves a bounded batch of pending requests whose scheduled
// time has arrived, ordered by scheduled_for ascending.
func (db *DB) DueRequests(ctx context.Context, now time.Time, limit int) ([]Request, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+requestColumns+`
		 FROM requests
		 WHERE status = $1 AND scheduled_for <= $2
		 ORDER BY scheduled_for ASC
		 LIMIT $3`,
		StatusPending, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due requests: %w", err)
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, nil
}

// UpdateRequestStatusFrom transitions a request's status only if its current
// status is one of the expected values. Returns false when the guard did not
// match, which callers treat as losing the race rather than as an error.
func (db *DB) UpdateRequestStatusFrom(ctx context.Context, id int64, to string, from ...string) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("no expected statuses given")
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE requests SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = ANY($3)`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition request %d to %s: %w", id, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimRequest is the worker's compare-and-swap gate: queued or pending moves
// to processing with the step index reset. A false return means another
// worker already holds the request.
func (db *DB) ClaimRequest(ctx context.Context, id int64) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE requests SET status = $1, current_step = 0, updated_at = NOW()
		 WHERE id = $2 AND status = ANY($3)`,
		StatusProcessing, id, []string{StatusQueued, StatusPending},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim request %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetCurrentStep records the index of the step about to run.
func (db *DB) SetCurrentStep(ctx context.Context, id int64, step int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE requests SET current_step = $1, updated_at = NOW() WHERE id = $2`,
		step, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set current step: %w", err)
	}
	return nil
}

// SetContent stores the assembled deliverables on the request.
func (db *DB) SetContent(ctx context.Context, id int64, html, text string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE requests SET html_content = $1, text_content = $2, updated_at = NOW() WHERE id = $3`,
		html, text, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set content: %w", err)
	}
	return nil
}

// CompleteRequest moves a processing request to a terminal success status
// (complete or draft_ready), recording the published location when deployed.
func (db *DB) CompleteRequest(ctx context.Context, id int64, status string, publishedLocation *string) error {
	if status != StatusComplete && status != StatusDraftReady {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE requests SET status = $1, published_location = $2, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $3`,
		status, publishedLocation, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete request %d: %w", id, err)
	}
	return nil
}

// MarkRequestFailed moves a request to failed, leaving current_step at
// whatever the last attempted step wrote.
func (db *DB) MarkRequestFailed(ctx context.Context, id int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE requests SET status = $1, updated_at = NOW() WHERE id = $2`,
		StatusFailed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark request %d failed: %w", id, err)
	}
	return nil
}

// RetryRequest resets a failed request to pending with current_step 0.
func (db *DB) RetryRequest(ctx context.Context, id int64) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE requests SET status = $1, current_step = 0, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		StatusPending, id, StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to retry request %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// PauseRequest pauses a request that has not yet reached a terminal status.
func (db *DB) PauseRequest(ctx context.Context, id int64) (bool, error) {
	return db.UpdateRequestStatusFrom(ctx, id, StatusPaused, StatusPending, StatusQueued, StatusProcessing)
}

// ResumeRequest returns a paused request to pending so the scheduler can pick
// it up again.
func (db *DB) ResumeRequest(ctx context.Context, id int64) (bool, error) {
	return db.UpdateRequestStatusFrom(ctx, id, StatusPending, StatusPaused)
}

// CancelRequest cancels a request that is not already terminal. Cancellation
// is cooperative: a worker mid-run does not observe it.
func (db *DB) CancelRequest(ctx context.Context, id int64) (bool, error) {
	return db.UpdateRequestStatusFrom(ctx, id, StatusCancelled, StatusPending, StatusQueued, StatusProcessing, StatusPaused)
}

// RescheduleRequest changes scheduled_for while the request is still pending.
func (db *DB) RescheduleRequest(ctx context.Context, id int64, scheduledFor time.Time) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE requests SET scheduled_for = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		scheduledFor, id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reschedule request %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// BulkRetry resets every failed request in the id list; returns how many moved.
func (db *DB) BulkRetry(ctx context.Context, ids []int64) (int, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE requests SET status = $1, current_step = 0, updated_at = NOW()
		 WHERE id = ANY($2) AND status = $3`,
		StatusPending, ids, StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk retry: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// BulkCancel cancels every request in the id list that has not already
// finished or been cancelled; returns how many moved.
func (db *DB) BulkCancel(ctx context.Context, ids []int64) (int, error) {
	untouchable := append(TerminalStatuses(), StatusCancelled)
	tag, err := db.pool.Exec(ctx,
		`UPDATE requests SET status = $1, updated_at = NOW()
		 WHERE id = ANY($2) AND NOT (status = ANY($3))`,
		StatusCancelled, ids, untouchable,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk cancel: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
