package usecase

import (
	"context"
	"fmt"
	"time"

	"postpilot/domain/model"
	"postpilot/domain/repository"
	"postpilot/infrastructure/logger"
	"postpilot/infrastructure/vault"
)

// backoffSchedule is indexed by the attempt that just failed; later attempts
// reuse the last entry.
var backoffSchedule = []time.Duration{1 * time.Minute, 5 * time.Minute, 15 * time.Minute}

func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(backoffSchedule) {
		attempt = len(backoffSchedule)
	}
	return backoffSchedule[attempt-1]
}

// IPublishQueue fans a post out to its target platforms through the posting
// queue. QueuePost creates the jobs, Drain works them off, PromoteScheduled
// moves due scheduled posts into the queue.
type IPublishQueue interface {
	QueuePost(ctx context.Context, postID int64) error
	Drain(ctx context.Context) error
	PromoteScheduled(ctx context.Context) error
}

type PublishQueue struct {
	postRepo   repository.IPost
	connRepo   repository.IConnection
	queueRepo  repository.IPostingQueue
	refresher  IRefreshScheduler
	tokenVault *vault.Vault
	publishers map[string]repository.IPublisher
	batchSize  int
	maxRetries int
	jobPause   time.Duration
	notify     func(ctx context.Context, event model.PostEvent)
	nowFn      func() time.Time
}

func NewPublishQueue(postRepo repository.IPost, connRepo repository.IConnection, queueRepo repository.IPostingQueue, refresher IRefreshScheduler, tokenVault *vault.Vault, publishers map[string]repository.IPublisher, batchSize, maxRetries int, jobPause time.Duration) *PublishQueue {
	return &PublishQueue{
		postRepo:   postRepo,
		connRepo:   connRepo,
		queueRepo:  queueRepo,
		refresher:  refresher,
		tokenVault: tokenVault,
		publishers: publishers,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		jobPause:   jobPause,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNotifier wires an optional downstream notifier for post status changes.
func (q *PublishQueue) WithNotifier(fn func(ctx context.Context, event model.PostEvent)) *PublishQueue {
	q.notify = fn
	return q
}

// QueuePost creates one pending job per target platform with an active
// connection. Platforms without one are recorded as skipped and never
// retried. Safe to call repeatedly for the same post.
func (q *PublishQueue) QueuePost(ctx context.Context, postID int64) error {
	log := logger.GetLogger().WithField("post_id", postID)
	post, err := q.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if len(post.TargetPlatforms) == 0 {
		return fmt.Errorf("post %d has no target platforms", postID)
	}
	if post.Results == nil {
		post.Results = map[string]model.PlatformResult{}
	}

	now := q.nowFn()
	var skipped []string
	for _, platform := range post.TargetPlatforms {
		if res, ok := post.Results[platform]; ok && res.Success {
			continue
		}
		conn, err := q.connRepo.Get(ctx, post.UserID, platform)
		if err != nil {
			return err
		}
		if conn == nil || conn.Status != model.ConnectionStatusActive {
			if _, already := post.Results[platform]; !already {
				skipped = append(skipped, platform)
			}
			continue
		}
		inserted, err := q.queueRepo.EnqueueIfAbsent(ctx, post.ID, platform, conn.ID)
		if err != nil {
			return err
		}
		if inserted {
			log.WithField("platform", platform).Debug("Posting job enqueued")
		}
	}

	// Record skips before computing the aggregate so an all-skipped post
	// settles as failed instead of hanging in publishing.
	for _, platform := range skipped {
		post.Results[platform] = model.PlatformResult{
			Success:     false,
			Error:       "no active connection",
			PublishedAt: now,
		}
	}
	unresolved, err := q.queueRepo.CountUnresolved(ctx, post.ID)
	if err != nil {
		return err
	}
	status := post.ComputeStatus(unresolved)
	for _, platform := range skipped {
		if err := q.postRepo.MergeResult(ctx, post.ID, platform, post.Results[platform], status); err != nil {
			return err
		}
		log.WithField("platform", platform).Warn("Platform skipped - no active connection")
	}
	if status != post.Status {
		if len(skipped) == 0 {
			if err := q.postRepo.UpdateStatus(ctx, post.ID, status); err != nil {
				return err
			}
		}
		q.emit(ctx, model.PostEvent{PostID: post.ID, Status: status, OccurredAt: now})
	}
	return nil
}

// PromoteScheduled moves scheduled posts whose time has arrived into the
// posting queue.
func (q *PublishQueue) PromoteScheduled(ctx context.Context) error {
	posts, err := q.postRepo.ListDueScheduled(ctx, q.nowFn(), q.batchSize)
	if err != nil {
		return err
	}
	for _, post := range posts {
		if err := q.postRepo.UpdateStatus(ctx, post.ID, model.PostStatusPending); err != nil {
			logger.GetLogger().WithField("post_id", post.ID).WithField("error", err).Error("Failed to promote scheduled post")
			continue
		}
		if err := q.QueuePost(ctx, post.ID); err != nil {
			logger.GetLogger().WithField("post_id", post.ID).WithField("error", err).Error("Failed to queue scheduled post")
		}
	}
	return nil
}

// Drain claims due jobs one at a time and publishes them, pausing between
// jobs to stay under platform rate limits.
func (q *PublishQueue) Drain(ctx context.Context) error {
	if err := q.PromoteScheduled(ctx); err != nil {
		logger.GetLogger().WithField("error", err).Error("Scheduled post promotion failed")
	}

	jobs, err := q.queueRepo.FetchDue(ctx, q.nowFn(), q.batchSize)
	if err != nil {
		return err
	}
	for i, job := range jobs {
		if i > 0 && q.jobPause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(q.jobPause):
			}
		}
		claimed, err := q.queueRepo.Claim(ctx, job.ID)
		if err != nil {
			logger.GetLogger().WithField("job_id", job.ID).WithField("error", err).Error("Failed to claim posting job")
			continue
		}
		if !claimed {
			continue
		}
		// A claimed job must reach completed, failed, or a rescheduled
		// pending. Detach it from the drain deadline so an expiring tick
		// cannot strand the row in processing.
		q.processJob(context.WithoutCancel(ctx), job)
	}
	return nil
}

func (q *PublishQueue) processJob(ctx context.Context, job *model.PostingQueueJob) {
	log := logger.GetLogger().
		WithField("job_id", job.ID).
		WithField("post_id", job.PostID).
		WithField("platform", job.Platform)

	conn, err := q.connRepo.GetByID(ctx, job.ConnectionID)
	if err != nil {
		q.failAttempt(ctx, job, fmt.Sprintf("connection lookup failed: %v", err))
		return
	}
	if conn.Status != model.ConnectionStatusActive {
		q.failAttempt(ctx, job, fmt.Sprintf("connection not usable: status %s", conn.Status))
		return
	}

	conn, err = q.refresher.RefreshIfDue(ctx, conn)
	if err != nil {
		q.failAttempt(ctx, job, fmt.Sprintf("token refresh failed: %v", err))
		return
	}

	accessToken := q.tokenVault.Decrypt(conn.AccessToken)
	if vault.IsEnvelope(accessToken) {
		q.failAttempt(ctx, job, "access token not decryptable")
		return
	}

	publisher, ok := q.publishers[job.Platform]
	if !ok {
		q.failAttempt(ctx, job, fmt.Sprintf("no publisher registered for %s", job.Platform))
		return
	}

	post, err := q.postRepo.GetByID(ctx, job.PostID)
	if err != nil {
		q.failAttempt(ctx, job, fmt.Sprintf("post lookup failed: %v", err))
		return
	}

	res, err := publisher.Publish(ctx, repository.Credentials{
		AccessToken:    accessToken,
		PlatformUserID: conn.PlatformUserID,
		Metadata:       q.decryptMetadata(conn.Metadata),
	}, post.Content)
	if err != nil {
		q.failAttempt(ctx, job, err.Error())
		return
	}
	if !res.Success {
		q.failAttempt(ctx, job, res.Error)
		return
	}

	if err := q.queueRepo.MarkCompleted(ctx, job.ID); err != nil {
		log.WithField("error", err).Error("Failed to complete posting job")
	}
	if err := q.connRepo.TouchLastUsed(ctx, conn.ID); err != nil {
		log.WithField("error", err).Error("Failed to touch connection")
	}

	now := q.nowFn()
	post.Results[job.Platform] = model.PlatformResult{
		Success:     true,
		RemoteID:    res.RemoteID,
		URL:         res.URL,
		PublishedAt: now,
	}
	unresolved, err := q.queueRepo.CountUnresolved(ctx, job.PostID)
	if err != nil {
		log.WithField("error", err).Error("Failed to count unresolved jobs")
		unresolved = 0
	}
	status := post.ComputeStatus(unresolved)
	if err := q.postRepo.MergeResult(ctx, job.PostID, job.Platform, post.Results[job.Platform], status); err != nil {
		log.WithField("error", err).Error("Failed to merge publish result")
		return
	}
	log.WithField("remote_id", res.RemoteID).Info("Post published")
	q.emit(ctx, model.PostEvent{PostID: job.PostID, Status: status, Platform: job.Platform, OccurredAt: now})
}

// failAttempt retries with backoff below the ceiling, otherwise records a
// terminal failure on both the job and the post.
func (q *PublishQueue) failAttempt(ctx context.Context, job *model.PostingQueueJob, reason string) {
	log := logger.GetLogger().
		WithField("job_id", job.ID).
		WithField("post_id", job.PostID).
		WithField("platform", job.Platform)

	attempts := job.Attempts + 1
	if attempts < q.maxRetries {
		next := q.nowFn().Add(backoffDelay(attempts))
		if err := q.queueRepo.MarkRetry(ctx, job.ID, reason, next); err != nil {
			log.WithField("error", err).Error("Failed to reschedule posting job")
		}
		log.WithField("attempts", attempts).WithField("reason", reason).Warn("Publish attempt failed - will retry")
		return
	}

	if err := q.queueRepo.MarkFailed(ctx, job.ID, reason); err != nil {
		log.WithField("error", err).Error("Failed to fail posting job")
	}
	log.WithField("attempts", attempts).WithField("reason", reason).Error("Publish retries exhausted")

	post, err := q.postRepo.GetByID(ctx, job.PostID)
	if err != nil {
		log.WithField("error", err).Error("Failed to load post after terminal failure")
		return
	}
	now := q.nowFn()
	if post.Results == nil {
		post.Results = map[string]model.PlatformResult{}
	}
	post.Results[job.Platform] = model.PlatformResult{
		Success:     false,
		Error:       reason,
		PublishedAt: now,
	}
	unresolved, err := q.queueRepo.CountUnresolved(ctx, job.PostID)
	if err != nil {
		log.WithField("error", err).Error("Failed to count unresolved jobs")
		unresolved = 0
	}
	status := post.ComputeStatus(unresolved)
	if err := q.postRepo.MergeResult(ctx, job.PostID, job.Platform, post.Results[job.Platform], status); err != nil {
		log.WithField("error", err).Error("Failed to merge failure result")
		return
	}
	q.emit(ctx, model.PostEvent{PostID: job.PostID, Status: status, Platform: job.Platform, OccurredAt: now})
}

// decryptMetadata passes metadata through to the publisher with any
// vault-encrypted values (page tokens) decrypted.
func (q *PublishQueue) decryptMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return metadata
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if vault.IsEnvelope(v) {
			out[k] = q.tokenVault.Decrypt(v)
			continue
		}
		out[k] = v
	}
	return out
}

func (q *PublishQueue) emit(ctx context.Context, event model.PostEvent) {
	if q.notify == nil {
		return
	}
	q.notify(ctx, event)
}
