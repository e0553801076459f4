package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"postpilot/domain/model"
	"postpilot/domain/repository"
	"postpilot/infrastructure/configuration"
	"postpilot/infrastructure/logger"
)

var (
	ErrEmptyContent  = errors.New("post content is empty")
	ErrNoPlatforms   = errors.New("post targets no platforms")
	ErrNoRecentTrend = errors.New("no recent trend available")
	ErrPostNotOwned  = errors.New("post does not belong to user")
)

// CreatePostInput is the request shape for creating a post.
type CreatePostInput struct {
	Content         string     `json:"content"`
	TargetPlatforms []string   `json:"target_platforms"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
}

// IPostUsecase creates posts and hands immediate ones to the publish queue.
type IPostUsecase interface {
	Create(ctx context.Context, userID string, input CreatePostInput) (*model.Post, error)
	ComposeFromTrend(ctx context.Context, userID string, platforms []string, scheduledAt *time.Time) (*model.Post, error)
	Get(ctx context.Context, userID string, postID int64) (*model.Post, error)
	List(ctx context.Context, userID string, limit int) ([]*model.Post, error)
}

type postUsecase struct {
	postRepo  repository.IPost
	trendRepo repository.ITrend
	queue     IPublishQueue
	nowFn     func() time.Time
}

func NewPostUsecase(postRepo repository.IPost, trendRepo repository.ITrend, queue IPublishQueue) IPostUsecase {
	return &postUsecase{
		postRepo:  postRepo,
		trendRepo: trendRepo,
		queue:     queue,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

func (u *postUsecase) Create(ctx context.Context, userID string, input CreatePostInput) (*model.Post, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, ErrEmptyContent
	}
	platforms, err := normalizePlatforms(input.TargetPlatforms)
	if err != nil {
		return nil, err
	}

	now := u.nowFn()
	post := &model.Post{
		UserID:          userID,
		Content:         input.Content,
		TargetPlatforms: platforms,
		Results:         map[string]model.PlatformResult{},
		Status:          model.PostStatusPending,
	}
	if input.ScheduledAt != nil && input.ScheduledAt.After(now) {
		t := input.ScheduledAt.UTC()
		post.Status = model.PostStatusScheduled
		post.ScheduledAt = &t
	}
	if err := u.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	logger.GetLogger().
		WithField("post_id", post.ID).
		WithField("user_id", userID).
		WithField("status", post.Status).
		Info("Post created")

	if post.Status == model.PostStatusPending {
		if err := u.queue.QueuePost(ctx, post.ID); err != nil {
			logger.GetLogger().WithField("post_id", post.ID).WithField("error", err).Error("Failed to queue post")
		}
		// Return the queued view so callers see skips immediately.
		return u.postRepo.GetByID(ctx, post.ID)
	}
	return post, nil
}

// ComposeFromTrend builds a post from the most recent trend item.
func (u *postUsecase) ComposeFromTrend(ctx context.Context, userID string, platforms []string, scheduledAt *time.Time) (*model.Post, error) {
	if u.trendRepo == nil {
		return nil, ErrNoRecentTrend
	}
	trends, err := u.trendRepo.FindRecent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(trends) == 0 {
		return nil, ErrNoRecentTrend
	}
	trend := trends[0]
	post, err := u.Create(ctx, userID, CreatePostInput{
		Content:         fmt.Sprintf("%s\n\n%s", trend.Title, trend.URL),
		TargetPlatforms: platforms,
		ScheduledAt:     scheduledAt,
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (u *postUsecase) Get(ctx context.Context, userID string, postID int64) (*model.Post, error) {
	post, err := u.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, ErrPostNotOwned
	}
	return post, nil
}

func (u *postUsecase) List(ctx context.Context, userID string, limit int) ([]*model.Post, error) {
	return u.postRepo.ListByUser(ctx, userID, limit)
}

func normalizePlatforms(platforms []string) ([]string, error) {
	if len(platforms) == 0 {
		return nil, ErrNoPlatforms
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" || seen[name] {
			continue
		}
		if _, ok := configuration.GetPlatform(name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, name)
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, ErrNoPlatforms
	}
	return out, nil
}
