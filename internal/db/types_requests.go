package db

import "time"

// Request status constants. A request's status is the single source of truth
// for its lifecycle position; "failed" is the one state that means "needs
// operator attention".
const (
	StatusPending    = "pending"
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusPaused     = "paused"
	StatusCancelled  = "cancelled"
	StatusComplete   = "complete"
	StatusDraftReady = "draft_ready"
	StatusFailed     = "failed"
)

// Request represents one content item's durable lifecycle record.
type Request struct {
	ID                int64      `json:"id"`
	TenantID          int64      `json:"tenant_id"`
	Title             string     `json:"title"`
	Status            string     `json:"status"`
	CurrentStep       int        `json:"current_step"`
	ScheduledFor      time.Time  `json:"scheduled_for"`
	PublishedLocation *string    `json:"published_location,omitempty"`
	TextContent       *string    `json:"text_content,omitempty"`
	HTMLContent       *string    `json:"html_content,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// RequestFilters holds optional filters for listing requests
type RequestFilters struct {
	TenantID int64
	Status   string
	Limit    int
}

// TerminalStatuses are the statuses a worker can leave a request in when a
// pipeline run ends.
func TerminalStatuses() []string {
	return []string{StatusComplete, StatusDraftReady, StatusFailed}
}
