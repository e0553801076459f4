package repository

import (
	"context"
	"time"

	"postpilot/domain/model"
)

// IPost defines persistence for posts. The publishing queue is the only
// writer of the per-platform result map and the aggregate status.
type IPost interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Post, error)
	// MergeResult stores the outcome for one platform, appends to the
	// published list on success and persists the recomputed aggregate status.
	MergeResult(ctx context.Context, postID int64, platform string, res model.PlatformResult, status string) error
	UpdateStatus(ctx context.Context, postID int64, status string) error
	// ListDueScheduled returns scheduled posts whose schedule time has passed.
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.Post, error)
}
