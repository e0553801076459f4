package model

import "time"

// Post statuses
const (
	PostStatusPending    = "pending"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusPartial    = "partial"
	PostStatusFailed     = "failed"
)

// PlatformResult is the per-platform outcome kept on the post.
type PlatformResult struct {
	Success     bool      `json:"success"`
	RemoteID    string    `json:"remote_id,omitempty"`
	URL         string    `json:"url,omitempty"`
	Error       string    `json:"error,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Post is one logical content item targeting N platforms.
type Post struct {
	ID                 int64                     `json:"id"`
	UserID             string                    `json:"user_id"`
	Content            string                    `json:"content"`
	TargetPlatforms    []string                  `json:"target_platforms"`
	PublishedPlatforms []string                  `json:"published_platforms"`
	Results            map[string]PlatformResult `json:"results"`
	Status             string                    `json:"status"` // pending | scheduled | publishing | published | partial | failed
	ScheduledAt        *time.Time                `json:"scheduled_at,omitempty"`
	TrendTitle         *string                   `json:"trend_title,omitempty"`
	TrendURL           *string                   `json:"trend_url,omitempty"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

// ComputeStatus derives the aggregate post status from the per-platform
// outcomes. pendingJobs is the number of posting jobs for this post that are
// still pending or processing.
//
// published: every target platform succeeded.
// partial: at least one succeeded and at least one did not, counting
// platforms that were skipped because no connection existed.
// failed: every target reached a terminal outcome and none succeeded.
// A post with jobs still in flight stays publishing.
func (p *Post) ComputeStatus(pendingJobs int) string {
	if len(p.TargetPlatforms) == 0 {
		return p.Status
	}
	succeeded := 0
	terminal := 0
	for _, platform := range p.TargetPlatforms {
		res, ok := p.Results[platform]
		switch {
		case ok && res.Success:
			succeeded++
			terminal++
		case ok:
			terminal++
		}
	}
	if succeeded == len(p.TargetPlatforms) {
		return PostStatusPublished
	}
	if pendingJobs > 0 {
		return PostStatusPublishing
	}
	if terminal < len(p.TargetPlatforms) {
		// Targets without any recorded outcome and without a job are still
		// unresolved; keep the post in publishing until the queueing pass
		// records a skip or a job reaches a terminal state.
		return PostStatusPublishing
	}
	if succeeded > 0 {
		return PostStatusPartial
	}
	return PostStatusFailed
}

// HasPublished reports whether platform is already in the published list.
func (p *Post) HasPublished(platform string) bool {
	for _, pl := range p.PublishedPlatforms {
		if pl == platform {
			return true
		}
	}
	return false
}
