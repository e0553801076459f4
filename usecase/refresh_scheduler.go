package usecase

import (
	"context"
	"errors"
	"time"

	"postpilot/domain/model"
	"postpilot/domain/repository"
	"postpilot/infrastructure/logger"
	"postpilot/infrastructure/vault"
)

const refreshRetryDelay = 5 * time.Minute

// IRefreshScheduler keeps access tokens fresh. Sweep runs on a ticker and
// handles the proactive path; RefreshIfDue is the just-in-time path the
// publishing queue calls right before a publish attempt.
type IRefreshScheduler interface {
	Sweep(ctx context.Context) error
	RefreshIfDue(ctx context.Context, conn *model.Connection) (*model.Connection, error)
}

type refreshScheduler struct {
	connRepo     repository.IConnection
	refreshQueue repository.ITokenRefreshQueue
	oauth        IOAuthUsecase
	buffer       time.Duration
	batchSize    int
	maxRetries   int
	nowFn        func() time.Time
}

func NewRefreshScheduler(connRepo repository.IConnection, refreshQueue repository.ITokenRefreshQueue, oauth IOAuthUsecase, buffer time.Duration, batchSize, maxRetries int) IRefreshScheduler {
	return &refreshScheduler{
		connRepo:     connRepo,
		refreshQueue: refreshQueue,
		oauth:        oauth,
		buffer:       buffer,
		batchSize:    batchSize,
		maxRetries:   maxRetries,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// Sweep enqueues refresh jobs for connections expiring within the buffer
// window, then claims and processes due jobs.
func (s *refreshScheduler) Sweep(ctx context.Context) error {
	now := s.nowFn()
	log := logger.GetLogger()

	expiring, err := s.connRepo.ListExpiring(ctx, now.Add(s.buffer))
	if err != nil {
		return err
	}
	for _, conn := range expiring {
		if conn.RefreshToken == "" {
			// Nothing to refresh with; the connection is left alone until a
			// publish attempt fails or the user reconnects.
			continue
		}
		inserted, err := s.refreshQueue.EnqueueIfAbsent(ctx, conn.ID)
		if err != nil {
			log.WithField("connection_id", conn.ID).WithField("error", err).Error("Failed to enqueue refresh job")
			continue
		}
		if inserted {
			log.WithField("connection_id", conn.ID).WithField("platform", conn.Platform).Debug("Refresh job enqueued")
		}
	}

	jobs, err := s.refreshQueue.FetchDue(ctx, now, s.batchSize)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		claimed, err := s.refreshQueue.Claim(ctx, job.ID)
		if err != nil {
			log.WithField("job_id", job.ID).WithField("error", err).Error("Failed to claim refresh job")
			continue
		}
		if !claimed {
			continue
		}
		s.processJob(ctx, job)
	}
	return nil
}

func (s *refreshScheduler) processJob(ctx context.Context, job *model.TokenRefreshJob) {
	log := logger.GetLogger().WithField("job_id", job.ID).WithField("connection_id", job.ConnectionID)

	_, err := s.oauth.Refresh(ctx, job.ConnectionID)
	if err == nil {
		if err := s.refreshQueue.MarkCompleted(ctx, job.ID); err != nil {
			log.WithField("error", err).Error("Failed to complete refresh job")
		}
		log.Info("Token refreshed")
		return
	}

	if errors.Is(err, ErrNoRefreshToken) || errors.Is(err, ErrUnsupportedPlatform) || errors.Is(err, ErrCredentialNotDecryptable) {
		// Retrying cannot help; fail the job without touching the connection.
		if mErr := s.refreshQueue.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
			log.WithField("error", mErr).Error("Failed to fail refresh job")
		}
		log.WithField("error", err).Warn("Refresh job not retryable")
		return
	}

	attempts := job.Attempts + 1
	if attempts < s.maxRetries {
		next := s.nowFn().Add(refreshRetryDelay)
		if mErr := s.refreshQueue.MarkRetry(ctx, job.ID, err.Error(), next); mErr != nil {
			log.WithField("error", mErr).Error("Failed to reschedule refresh job")
		}
		log.WithField("attempts", attempts).WithField("error", err).Warn("Refresh attempt failed - will retry")
		return
	}

	if mErr := s.refreshQueue.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
		log.WithField("error", mErr).Error("Failed to fail refresh job")
	}
	detail := err.Error()
	if sErr := s.connRepo.UpdateStatus(ctx, job.ConnectionID, model.ConnectionStatusExpired, &detail); sErr != nil {
		log.WithField("error", sErr).Error("Failed to expire connection")
	}
	log.WithField("attempts", attempts).WithField("error", err).Error("Refresh retries exhausted - connection expired")
}

// RefreshIfDue refreshes the connection's token synchronously when it is
// within the expiry buffer. Returns the connection to use for the publish
// attempt, updated when a refresh happened.
func (s *refreshScheduler) RefreshIfDue(ctx context.Context, conn *model.Connection) (*model.Connection, error) {
	if !vault.NeedsRefresh(conn.ExpiresAt, s.buffer) {
		return conn, nil
	}
	if conn.RefreshToken == "" {
		// No refresh credential; attempt the publish with the current token
		// and let the platform reject it if it has truly expired.
		return conn, nil
	}
	refreshed, err := s.oauth.Refresh(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}
