package repository

import (
	"context"
	"time"

	"postpilot/domain/model"
)

// IPostingQueue owns the posting_queue table.
type IPostingQueue interface {
	// EnqueueIfAbsent inserts a pending job unless a non-terminal job already
	// exists for (postID, platform). Returns true when a row was inserted.
	EnqueueIfAbsent(ctx context.Context, postID int64, platform string, connectionID int64) (bool, error)
	// FetchDue returns pending jobs whose next_attempt_at is unset or in the
	// past, oldest first.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.PostingQueueJob, error)
	// Claim transitions a job pending -> processing. Returns false when the
	// job was already claimed by someone else.
	Claim(ctx context.Context, jobID int64) (bool, error)
	MarkCompleted(ctx context.Context, jobID int64) error
	// MarkRetry returns the job to pending with the attempt count bumped and
	// the next attempt scheduled.
	MarkRetry(ctx context.Context, jobID int64, lastError string, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
	// CountUnresolved reports pending+processing jobs for a post.
	CountUnresolved(ctx context.Context, postID int64) (int, error)
}

// ITokenRefreshQueue owns the token_refresh_queue table.
type ITokenRefreshQueue interface {
	EnqueueIfAbsent(ctx context.Context, connectionID int64) (bool, error)
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.TokenRefreshJob, error)
	Claim(ctx context.Context, jobID int64) (bool, error)
	MarkCompleted(ctx context.Context, jobID int64) error
	MarkRetry(ctx context.Context, jobID int64, lastError string, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
}
