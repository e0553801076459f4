package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"postpilot/domain/model"
	"postpilot/domain/repository"
	"postpilot/infrastructure/vault"
)

type queueFixture struct {
	postRepo  *MockPostRepo
	connRepo  *MockConnectionRepo
	queueRepo *MockPostingQueue
	oauth     *MockOAuth
	publisher *MockPublisher
	queue     *PublishQueue
	now       time.Time
	vault     *vault.Vault
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()
	v, err := vault.New("test-secret")
	require.NoError(t, err)

	f := &queueFixture{
		postRepo:  new(MockPostRepo),
		connRepo:  new(MockConnectionRepo),
		queueRepo: new(MockPostingQueue),
		oauth:     new(MockOAuth),
		publisher: new(MockPublisher),
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		vault:     v,
	}
	refresher := NewRefreshScheduler(f.connRepo, new(MockTokenRefreshQueue), f.oauth, time.Hour, 10, 3)
	f.queue = NewPublishQueue(
		f.postRepo, f.connRepo, f.queueRepo, refresher, v,
		map[string]repository.IPublisher{"twitter": f.publisher, "linkedin": f.publisher},
		10, 3, 0,
	)
	f.queue.nowFn = func() time.Time { return f.now }
	return f
}

func (f *queueFixture) encrypt(t *testing.T, plaintext string) string {
	t.Helper()
	enc, err := f.vault.Encrypt(plaintext)
	require.NoError(t, err)
	return enc
}

func TestPublishQueue_QueuePost_EnqueuesConnectedSkipsDisconnected(t *testing.T) {
	f := newQueueFixture(t)
	ctx := context.Background()

	post := &model.Post{
		ID:              1,
		UserID:          "user-1",
		Content:         "hello",
		TargetPlatforms: []string{"twitter", "linkedin"},
		Results:         map[string]model.PlatformResult{},
		Status:          model.PostStatusPending,
	}
	conn := &model.Connection{ID: 11, UserID: "user-1", Platform: "twitter", Status: model.ConnectionStatusActive}

	f.postRepo.On("GetByID", mock.Anything, int64(1)).Return(post, nil).Once()
	f.connRepo.On("Get", mock.Anything, "user-1", "twitter").Return(conn, nil).Once()
	f.connRepo.On("Get", mock.Anything, "user-1", "linkedin").Return(nil, nil).Once()
	f.queueRepo.On("EnqueueIfAbsent", mock.Anything, int64(1), "twitter", int64(11)).Return(true, nil).Once()
	f.queueRepo.On("CountUnresolved", mock.Anything, int64(1)).Return(1, nil).Once()
	// The disconnected platform is recorded as a terminal skip while the
	// queued one keeps the post publishing.
	f.postRepo.On("MergeResult", mock.Anything, int64(1), "linkedin",
		mock.MatchedBy(func(res model.PlatformResult) bool {
			return !res.Success && res.Error == "no active connection"
		}), model.PostStatusPublishing).Return(nil).Once()

	err := f.queue.QueuePost(ctx, 1)

	assert.NoError(t, err)
	f.postRepo.AssertExpectations(t)
	f.queueRepo.AssertExpectations(t)
}

func TestPublishQueue_QueuePost_AllSkippedSettlesFailed(t *testing.T) {
	f := newQueueFixture(t)

	post := &model.Post{
		ID:              2,
		UserID:          "user-1",
		TargetPlatforms: []string{"twitter"},
		Results:         map[string]model.PlatformResult{},
		Status:          model.PostStatusPending,
	}
	f.postRepo.On("GetByID", mock.Anything, int64(2)).Return(post, nil).Once()
	f.connRepo.On("Get", mock.Anything, "user-1", "twitter").Return(nil, nil).Once()
	f.queueRepo.On("CountUnresolved", mock.Anything, int64(2)).Return(0, nil).Once()
	f.postRepo.On("MergeResult", mock.Anything, int64(2), "twitter", mock.Anything, model.PostStatusFailed).Return(nil).Once()

	err := f.queue.QueuePost(context.Background(), 2)

	assert.NoError(t, err)
	f.postRepo.AssertExpectations(t)
	f.queueRepo.AssertNotCalled(t, "EnqueueIfAbsent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishQueue_QueuePost_IdempotentForExistingResults(t *testing.T) {
	f := newQueueFixture(t)

	// The twitter result already succeeded; requeueing must not create a job
	// or rewrite the result.
	post := &model.Post{
		ID:              3,
		UserID:          "user-1",
		TargetPlatforms: []string{"twitter"},
		Results: map[string]model.PlatformResult{
			"twitter": {Success: true, RemoteID: "r1"},
		},
		Status: model.PostStatusPublished,
	}
	f.postRepo.On("GetByID", mock.Anything, int64(3)).Return(post, nil).Once()
	f.queueRepo.On("CountUnresolved", mock.Anything, int64(3)).Return(0, nil).Once()

	err := f.queue.QueuePost(context.Background(), 3)

	assert.NoError(t, err)
	f.queueRepo.AssertNotCalled(t, "EnqueueIfAbsent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.postRepo.AssertNotCalled(t, "MergeResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishQueue_Drain_PublishesClaimedJob(t *testing.T) {
	f := newQueueFixture(t)
	ctx := context.Background()

	job := &model.PostingQueueJob{ID: 21, PostID: 5, Platform: "twitter", ConnectionID: 11, Status: model.JobStatusPending}
	expiry := time.Now().UTC().Add(48 * time.Hour)
	conn := &model.Connection{
		ID:          11,
		UserID:      "user-1",
		Platform:    "twitter",
		AccessToken: f.encrypt(t, "plain-access-token"),
		ExpiresAt:   &expiry,
		Status:      model.ConnectionStatusActive,
	}
	post := &model.Post{
		ID:              5,
		UserID:          "user-1",
		Content:         "hello world",
		TargetPlatforms: []string{"twitter"},
		Results:         map[string]model.PlatformResult{},
		Status:          model.PostStatusPublishing,
	}

	f.postRepo.On("ListDueScheduled", mock.Anything, f.now, 10).Return([]*model.Post{}, nil).Once()
	f.queueRepo.On("FetchDue", mock.Anything, f.now, 10).Return([]*model.PostingQueueJob{job}, nil).Once()
	f.queueRepo.On("Claim", mock.Anything, int64(21)).Return(true, nil).Once()
	f.connRepo.On("GetByID", mock.Anything, int64(11)).Return(conn, nil).Once()
	f.postRepo.On("GetByID", mock.Anything, int64(5)).Return(post, nil).Once()
	// The publisher sees the decrypted token, never the envelope.
	f.publisher.On("Publish", mock.Anything,
		mock.MatchedBy(func(creds repository.Credentials) bool {
			return creds.AccessToken == "plain-access-token"
		}), "hello world").
		Return(&model.PublishResult{Success: true, RemoteID: "tw-1", URL: "https://twitter.com/i/status/tw-1"}, nil).Once()
	f.queueRepo.On("MarkCompleted", mock.Anything, int64(21)).Return(nil).Once()
	f.connRepo.On("TouchLastUsed", mock.Anything, int64(11)).Return(nil).Once()
	f.queueRepo.On("CountUnresolved", mock.Anything, int64(5)).Return(0, nil).Once()
	f.postRepo.On("MergeResult", mock.Anything, int64(5), "twitter",
		mock.MatchedBy(func(res model.PlatformResult) bool {
			return res.Success && res.RemoteID == "tw-1"
		}), model.PostStatusPublished).Return(nil).Once()

	err := f.queue.Drain(ctx)

	assert.NoError(t, err)
	f.queueRepo.AssertExpectations(t)
	f.postRepo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestPublishQueue_Drain_SkipsLostClaim(t *testing.T) {
	f := newQueueFixture(t)

	job := &model.PostingQueueJob{ID: 22, PostID: 5, Platform: "twitter", ConnectionID: 11}
	f.postRepo.On("ListDueScheduled", mock.Anything, f.now, 10).Return([]*model.Post{}, nil).Once()
	f.queueRepo.On("FetchDue", mock.Anything, f.now, 10).Return([]*model.PostingQueueJob{job}, nil).Once()
	f.queueRepo.On("Claim", mock.Anything, int64(22)).Return(false, nil).Once()

	err := f.queue.Drain(context.Background())

	assert.NoError(t, err)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishQueue_Drain_RetriesWithBackoff(t *testing.T) {
	f := newQueueFixture(t)

	job := &model.PostingQueueJob{ID: 23, PostID: 6, Platform: "twitter", ConnectionID: 11, Attempts: 0}
	expiry := time.Now().UTC().Add(48 * time.Hour)
	conn := &model.Connection{
		ID:          11,
		AccessToken: f.encrypt(t, "token"),
		ExpiresAt:   &expiry,
		Status:      model.ConnectionStatusActive,
	}
	post := &model.Post{ID: 6, Content: "x", TargetPlatforms: []string{"twitter"}, Results: map[string]model.PlatformResult{}}

	f.postRepo.On("ListDueScheduled", mock.Anything, f.now, 10).Return([]*model.Post{}, nil).Once()
	f.queueRepo.On("FetchDue", mock.Anything, f.now, 10).Return([]*model.PostingQueueJob{job}, nil).Once()
	f.queueRepo.On("Claim", mock.Anything, int64(23)).Return(true, nil).Once()
	f.connRepo.On("GetByID", mock.Anything, int64(11)).Return(conn, nil).Once()
	f.postRepo.On("GetByID", mock.Anything, int64(6)).Return(post, nil).Once()
	f.publisher.On("Publish", mock.Anything, mock.Anything, "x").
		Return(&model.PublishResult{Success: false, Error: "rate limited"}, nil).Once()
	// First failure reschedules one minute out.
	f.queueRepo.On("MarkRetry", mock.Anything, int64(23), "rate limited", f.now.Add(1*time.Minute)).Return(nil).Once()

	err := f.queue.Drain(context.Background())

	assert.NoError(t, err)
	f.queueRepo.AssertExpectations(t)
	f.queueRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	f.postRepo.AssertNotCalled(t, "MergeResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishQueue_Drain_FailsTerminallyAtCeilingAndRecordsPartial(t *testing.T) {
	f := newQueueFixture(t)

	// Third attempt of a two-platform post whose linkedin leg already
	// succeeded; exhausting twitter leaves the post partial.
	job := &model.PostingQueueJob{ID: 24, PostID: 7, Platform: "twitter", ConnectionID: 11, Attempts: 2}
	expiry := time.Now().UTC().Add(48 * time.Hour)
	conn := &model.Connection{
		ID:          11,
		AccessToken: f.encrypt(t, "token"),
		ExpiresAt:   &expiry,
		Status:      model.ConnectionStatusActive,
	}
	post := &model.Post{
		ID:              7,
		Content:         "x",
		TargetPlatforms: []string{"twitter", "linkedin"},
		Results: map[string]model.PlatformResult{
			"linkedin": {Success: true, RemoteID: "li-1"},
		},
		Status: model.PostStatusPublishing,
	}

	f.postRepo.On("ListDueScheduled", mock.Anything, f.now, 10).Return([]*model.Post{}, nil).Once()
	f.queueRepo.On("FetchDue", mock.Anything, f.now, 10).Return([]*model.PostingQueueJob{job}, nil).Once()
	f.queueRepo.On("Claim", mock.Anything, int64(24)).Return(true, nil).Once()
	f.connRepo.On("GetByID", mock.Anything, int64(11)).Return(conn, nil).Once()
	f.postRepo.On("GetByID", mock.Anything, int64(7)).Return(post, nil).Twice()
	f.publisher.On("Publish", mock.Anything, mock.Anything, "x").
		Return(&model.PublishResult{Success: false, Error: "boom"}, nil).Once()
	f.queueRepo.On("MarkFailed", mock.Anything, int64(24), "boom").Return(nil).Once()
	f.queueRepo.On("CountUnresolved", mock.Anything, int64(7)).Return(0, nil).Once()
	f.postRepo.On("MergeResult", mock.Anything, int64(7), "twitter",
		mock.MatchedBy(func(res model.PlatformResult) bool {
			return !res.Success && res.Error == "boom"
		}), model.PostStatusPartial).Return(nil).Once()

	err := f.queue.Drain(context.Background())

	assert.NoError(t, err)
	f.queueRepo.AssertExpectations(t)
	f.postRepo.AssertExpectations(t)
	f.queueRepo.AssertNotCalled(t, "MarkRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishQueue_Drain_UndecryptableTokenFailsAttempt(t *testing.T) {
	f := newQueueFixture(t)

	otherVault, err := vault.New("some-other-secret")
	require.NoError(t, err)
	foreign, err := otherVault.Encrypt("token")
	require.NoError(t, err)

	job := &model.PostingQueueJob{ID: 25, PostID: 8, Platform: "twitter", ConnectionID: 12, Attempts: 0}
	expiry := time.Now().UTC().Add(48 * time.Hour)
	conn := &model.Connection{ID: 12, AccessToken: foreign, ExpiresAt: &expiry, Status: model.ConnectionStatusActive}

	f.postRepo.On("ListDueScheduled", mock.Anything, f.now, 10).Return([]*model.Post{}, nil).Once()
	f.queueRepo.On("FetchDue", mock.Anything, f.now, 10).Return([]*model.PostingQueueJob{job}, nil).Once()
	f.queueRepo.On("Claim", mock.Anything, int64(25)).Return(true, nil).Once()
	f.connRepo.On("GetByID", mock.Anything, int64(12)).Return(conn, nil).Once()
	f.queueRepo.On("MarkRetry", mock.Anything, int64(25), "access token not decryptable", f.now.Add(1*time.Minute)).Return(nil).Once()

	err = f.queue.Drain(context.Background())

	assert.NoError(t, err)
	f.queueRepo.AssertExpectations(t)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishQueue_Drain_ClaimedJobSurvivesExpiredDrainWindow(t *testing.T) {
	f := newQueueFixture(t)

	// The drain window closes right after the claim. The job must still be
	// rescheduled; a write on the dead context would leave it in processing.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := &model.PostingQueueJob{ID: 26, PostID: 9, Platform: "twitter", ConnectionID: 11, Attempts: 0}
	expiry := time.Now().UTC().Add(48 * time.Hour)
	conn := &model.Connection{
		ID:          11,
		AccessToken: f.encrypt(t, "token"),
		ExpiresAt:   &expiry,
		Status:      model.ConnectionStatusActive,
	}
	post := &model.Post{ID: 9, Content: "x", TargetPlatforms: []string{"twitter"}, Results: map[string]model.PlatformResult{}}

	liveCtx := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })

	f.postRepo.On("ListDueScheduled", mock.Anything, f.now, 10).Return([]*model.Post{}, nil).Once()
	f.queueRepo.On("FetchDue", mock.Anything, f.now, 10).Return([]*model.PostingQueueJob{job}, nil).Once()
	f.queueRepo.On("Claim", mock.Anything, int64(26)).Return(true, nil).Once()
	f.connRepo.On("GetByID", liveCtx, int64(11)).Return(conn, nil).Once()
	f.postRepo.On("GetByID", liveCtx, int64(9)).Return(post, nil).Once()
	f.publisher.On("Publish", liveCtx, mock.Anything, "x").
		Return(&model.PublishResult{Success: false, Error: "connection reset"}, nil).Once()
	f.queueRepo.On("MarkRetry", liveCtx, int64(26), "connection reset", f.now.Add(1*time.Minute)).Return(nil).Once()

	err := f.queue.Drain(ctx)

	assert.NoError(t, err)
	f.queueRepo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestPublishQueue_BackoffSchedule(t *testing.T) {
	assert.Equal(t, 1*time.Minute, backoffDelay(1))
	assert.Equal(t, 5*time.Minute, backoffDelay(2))
	assert.Equal(t, 15*time.Minute, backoffDelay(3))
	assert.Equal(t, 15*time.Minute, backoffDelay(7))
}

func TestPublishQueue_PromoteScheduled(t *testing.T) {
	f := newQueueFixture(t)

	scheduledAt := f.now.Add(-time.Minute)
	duePost := &model.Post{
		ID:              9,
		UserID:          "user-1",
		TargetPlatforms: []string{"twitter"},
		Results:         map[string]model.PlatformResult{},
		Status:          model.PostStatusScheduled,
		ScheduledAt:     &scheduledAt,
	}
	conn := &model.Connection{ID: 11, UserID: "user-1", Platform: "twitter", Status: model.ConnectionStatusActive}

	f.postRepo.On("ListDueScheduled", mock.Anything, f.now, 10).Return([]*model.Post{duePost}, nil).Once()
	f.postRepo.On("UpdateStatus", mock.Anything, int64(9), model.PostStatusPending).Return(nil).Once()
	f.postRepo.On("GetByID", mock.Anything, int64(9)).Return(duePost, nil).Once()
	f.connRepo.On("Get", mock.Anything, "user-1", "twitter").Return(conn, nil).Once()
	f.queueRepo.On("EnqueueIfAbsent", mock.Anything, int64(9), "twitter", int64(11)).Return(true, nil).Once()
	f.queueRepo.On("CountUnresolved", mock.Anything, int64(9)).Return(1, nil).Once()
	f.postRepo.On("UpdateStatus", mock.Anything, int64(9), model.PostStatusPublishing).Return(nil).Once()

	err := f.queue.PromoteScheduled(context.Background())

	assert.NoError(t, err)
	f.postRepo.AssertExpectations(t)
	f.queueRepo.AssertExpectations(t)
}
