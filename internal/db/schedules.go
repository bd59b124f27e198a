package db

import (
	"context"
	"fmt"
	"time"
)

// ScheduleEntry is a lightweight future-dated slot produced by recurring
// schedule generation. It is distinct from a full Request: the scheduler
// materializes due entries into pending requests during its poll loop.
type ScheduleEntry struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenant_id"`
	Title        string    `json:"title"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Materialized bool      `json:"materialized"`
	CreatedAt    time.Time `json:"created_at"`
}

// ScheduleEntryInput is the input for creating one schedule entry.
type ScheduleEntryInput struct {
	Title        string
	ScheduledFor time.Time
}

// CreateScheduleEntries inserts a batch of schedule entries for a tenant and
// returns their IDs in input order.
func (db *DB) CreateScheduleEntries(ctx context.Context, tenantID int64, entries []ScheduleEntryInput) ([]int64, error) {
	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		var id int64
		err := db.pool.QueryRow(ctx,
			`INSERT INTO schedules (tenant_id, title, scheduled_for, materialized)
			 VALUES ($1, $2, $3, FALSE)
			 RETURNING id`,
			tenantID, entry.Title, entry.ScheduledFor,
		).Scan(&id)
		if err != nil {
			return ids, fmt.Errorf("failed to create schedule entry %q: %w", entry.Title, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DueScheduleEntries retrieves unmaterialized entries whose time has arrived.
func (db *DB) DueScheduleEntries(ctx context.Context, now time.Time, limit int) ([]ScheduleEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, tenant_id, title, scheduled_for, materialized, created_at
		 FROM schedules
		 WHERE materialized = FALSE AND scheduled_for <= $1
		 ORDER BY scheduled_for ASC
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedule entries: %w", err)
	}
	defer rows.Close()

	var entries []ScheduleEntry
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Title, &e.ScheduledFor, &e.Materialized, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// MarkScheduleMaterialized flags an entry as turned into a request. Returns
// false when the entry was already materialized by a concurrent scheduler.
func (db *DB) MarkScheduleMaterialized(ctx context.Context, id int64) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE schedules SET materialized = TRUE
		 WHERE id = $1 AND materialized = FALSE`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark schedule entry %d materialized: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
