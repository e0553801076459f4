package model

import "time"

// PostEvent notifies downstream consumers of post status changes.
type PostEvent struct {
	PostID     int64     `json:"post_id"`
	Status     string    `json:"status"`
	Platform   string    `json:"platform,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
