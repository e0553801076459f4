package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"postpilot/domain/model"
	"postpilot/domain/repository"
)

type MockConnectionRepo struct {
	mock.Mock
}

func (m *MockConnectionRepo) Upsert(ctx context.Context, conn *model.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepo) GetByID(ctx context.Context, id int64) (*model.Connection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Connection), args.Error(1)
}

func (m *MockConnectionRepo) Get(ctx context.Context, userID, platform string) (*model.Connection, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Connection), args.Error(1)
}

func (m *MockConnectionRepo) ListByUser(ctx context.Context, userID string) ([]*model.Connection, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Connection), args.Error(1)
}

func (m *MockConnectionRepo) ListExpiring(ctx context.Context, cutoff time.Time) ([]*model.Connection, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Connection), args.Error(1)
}

func (m *MockConnectionRepo) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error {
	args := m.Called(ctx, id, accessToken, refreshToken, expiresAt)
	return args.Error(0)
}

func (m *MockConnectionRepo) UpdateStatus(ctx context.Context, id int64, status string, lastError *string) error {
	args := m.Called(ctx, id, status, lastError)
	return args.Error(0)
}

func (m *MockConnectionRepo) TouchLastUsed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConnectionRepo) Delete(ctx context.Context, userID, platform string) error {
	args := m.Called(ctx, userID, platform)
	return args.Error(0)
}

type MockPostRepo struct {
	mock.Mock
}

func (m *MockPostRepo) Create(ctx context.Context, post *model.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepo) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Post, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Post), args.Error(1)
}

func (m *MockPostRepo) MergeResult(ctx context.Context, postID int64, platform string, res model.PlatformResult, status string) error {
	args := m.Called(ctx, postID, platform, res, status)
	return args.Error(0)
}

func (m *MockPostRepo) UpdateStatus(ctx context.Context, postID int64, status string) error {
	args := m.Called(ctx, postID, status)
	return args.Error(0)
}

func (m *MockPostRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.Post, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Post), args.Error(1)
}

type MockPostingQueue struct {
	mock.Mock
}

func (m *MockPostingQueue) EnqueueIfAbsent(ctx context.Context, postID int64, platform string, connectionID int64) (bool, error) {
	args := m.Called(ctx, postID, platform, connectionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostingQueue) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.PostingQueueJob, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PostingQueueJob), args.Error(1)
}

func (m *MockPostingQueue) Claim(ctx context.Context, jobID int64) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostingQueue) MarkCompleted(ctx context.Context, jobID int64) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockPostingQueue) MarkRetry(ctx context.Context, jobID int64, lastError string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, jobID, lastError, nextAttemptAt)
	return args.Error(0)
}

func (m *MockPostingQueue) MarkFailed(ctx context.Context, jobID int64, lastError string) error {
	args := m.Called(ctx, jobID, lastError)
	return args.Error(0)
}

func (m *MockPostingQueue) CountUnresolved(ctx context.Context, postID int64) (int, error) {
	args := m.Called(ctx, postID)
	return args.Int(0), args.Error(1)
}

type MockTokenRefreshQueue struct {
	mock.Mock
}

func (m *MockTokenRefreshQueue) EnqueueIfAbsent(ctx context.Context, connectionID int64) (bool, error) {
	args := m.Called(ctx, connectionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRefreshQueue) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.TokenRefreshJob, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.TokenRefreshJob), args.Error(1)
}

func (m *MockTokenRefreshQueue) Claim(ctx context.Context, jobID int64) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRefreshQueue) MarkCompleted(ctx context.Context, jobID int64) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockTokenRefreshQueue) MarkRetry(ctx context.Context, jobID int64, lastError string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, jobID, lastError, nextAttemptAt)
	return args.Error(0)
}

func (m *MockTokenRefreshQueue) MarkFailed(ctx context.Context, jobID int64, lastError string) error {
	args := m.Called(ctx, jobID, lastError)
	return args.Error(0)
}

type MockOAuth struct {
	mock.Mock
}

func (m *MockOAuth) BuildAuthorizationURL(ctx context.Context, userID, platform, returnURL string) (string, error) {
	args := m.Called(ctx, userID, platform, returnURL)
	return args.String(0), args.Error(1)
}

func (m *MockOAuth) ExchangeCode(ctx context.Context, platform, code, state string) (*ExchangeOutcome, error) {
	args := m.Called(ctx, platform, code, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ExchangeOutcome), args.Error(1)
}

func (m *MockOAuth) Refresh(ctx context.Context, connectionID int64) (*model.Connection, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Connection), args.Error(1)
}

func (m *MockOAuth) Disconnect(ctx context.Context, userID, platform string) error {
	args := m.Called(ctx, userID, platform)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, creds repository.Credentials, content string) (*model.PublishResult, error) {
	args := m.Called(ctx, creds, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PublishResult), args.Error(1)
}

type MockPublishQueue struct {
	mock.Mock
}

func (m *MockPublishQueue) QueuePost(ctx context.Context, postID int64) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *MockPublishQueue) Drain(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPublishQueue) PromoteScheduled(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockTrendRepo struct {
	mock.Mock
}

func (m *MockTrendRepo) FindRecent(ctx context.Context, limit int) ([]*model.Trend, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Trend), args.Error(1)
}
