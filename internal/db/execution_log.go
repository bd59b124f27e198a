package db

import (
	"context"
	"fmt"
	"time"
)

// LogExecution appends one execution log row for a step attempt. One row per
// attempt: a step retried twice before succeeding leaves three rows.
func (db *DB) LogExecution(ctx context.Context, requestID int64, stepName string, attempt int, duration time.Duration, success bool, errMsg string) error {
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO execution_log (request_id, step_name, attempt, duration_ms, success, error)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		requestID, stepName, attempt, duration.Milliseconds(), success, errPtr,
	)
	if err != nil {
		return fmt.Errorf("failed to log execution of %s: %w", stepName, err)
	}
	return nil
}

// ListExecutionLog retrieves a request's execution history in creation order.
func (db *DB) ListExecutionLog(ctx context.Context, requestID int64) ([]ExecutionEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, request_id, step_name, attempt, duration_ms, success, error, created_at
		 FROM execution_log
		 WHERE request_id = $1
		 ORDER BY created_at ASC`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution log: %w", err)
	}
	defer rows.Close()

	var entries []ExecutionEntry
	for rows.Next() {
		var e ExecutionEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.StepName, &e.Attempt, &e.DurationMs, &e.Success, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
