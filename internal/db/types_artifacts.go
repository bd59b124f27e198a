package db

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is the immutable persisted output of one step execution attempt.
// The data schema varies by step; Data holds the decoded JSON payload.
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	RequestID int64     `json:"request_id"`
	StepName  string    `json:"step_name"`
	Attempt   int       `json:"attempt"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExecutionEntry is one row of the execution log: how a single step attempt
// went. Purely observational; pipeline logic never reads it.
type ExecutionEntry struct {
	ID         uuid.UUID `json:"id"`
	RequestID  int64     `json:"request_id"`
	StepName   string    `json:"step_name"`
	Attempt    int       `json:"attempt"`
	DurationMs int       `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
