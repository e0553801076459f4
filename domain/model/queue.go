package model

import "time"

// Job statuses shared by the posting and token refresh queues
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// PostingQueueJob is one queued publish attempt per (post, platform).
// At most one non-terminal job exists per pair.
type PostingQueueJob struct {
	ID            int64      `json:"id"`
	PostID        int64      `json:"post_id"`
	Platform      string     `json:"platform"`
	ConnectionID  int64      `json:"connection_id"`
	Status        string     `json:"status"` // pending | processing | completed | failed
	Attempts      int        `json:"attempts"`
	LastError     *string    `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TokenRefreshJob is one queued proactive refresh per connection.
// At most one non-terminal job exists per connection.
type TokenRefreshJob struct {
	ID            int64      `json:"id"`
	ConnectionID  int64      `json:"connection_id"`
	Status        string     `json:"status"` // pending | processing | completed | failed
	Attempts      int        `json:"attempts"`
	LastError     *string    `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PublishResult is what a platform publisher reports back for one attempt.
type PublishResult struct {
	Success  bool   `json:"success"`
	RemoteID string `json:"remote_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}
