package persistence

import (
	"context"
	"database/sql"
	"time"

	"postpilot/domain/model"
)

// PostingQueueRepository owns the posting_queue table.
type PostingQueueRepository struct{ db *sql.DB }

func NewPostingQueueRepository(db *sql.DB) *PostingQueueRepository {
	return &PostingQueueRepository{db: db}
}

const postingJobColumns = `id, post_id, platform, connection_id, status, attempts,
	last_error, next_attempt_at, created_at, updated_at`

// EnqueueIfAbsent inserts a pending job unless a non-terminal one already
// exists for the pair. The partial unique index backs the same guarantee
// under concurrency; ON CONFLICT keeps the re-run a clean no-op.
func (r *PostingQueueRepository) EnqueueIfAbsent(ctx context.Context, postID int64, platform string, connectionID int64) (bool, error) {
	now := time.Now().UTC()
	q := `INSERT INTO posting_queue (post_id, platform, connection_id, status, attempts, created_at, updated_at)
		  SELECT $1, $2, $3, 'pending', 0, $4, $4
		  WHERE NOT EXISTS (
			SELECT 1 FROM posting_queue
			WHERE post_id=$1 AND platform=$2 AND status IN ('pending','processing')
		  )`
	res, err := r.db.ExecContext(ctx, q, postID, platform, connectionID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostingQueueRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.PostingQueueJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postingJobColumns+` FROM posting_queue
		 WHERE status='pending' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		 ORDER BY created_at ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*model.PostingQueueJob
	for rows.Next() {
		j := &model.PostingQueueJob{}
		var lastErr sql.NullString
		var nextAt sql.NullTime
		if err := rows.Scan(&j.ID, &j.PostID, &j.Platform, &j.ConnectionID, &j.Status,
			&j.Attempts, &lastErr, &nextAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		if lastErr.Valid {
			j.LastError = &lastErr.String
		}
		if nextAt.Valid {
			t := nextAt.Time
			j.NextAttemptAt = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Claim is a conditional pending -> processing transition; it only succeeds
// when no other worker has claimed the row first.
func (r *PostingQueueRepository) Claim(ctx context.Context, jobID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE posting_queue SET status='processing', updated_at=$1 WHERE id=$2 AND status='pending'`,
		time.Now().UTC(), jobID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostingQueueRepository) MarkCompleted(ctx context.Context, jobID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posting_queue SET status='completed', attempts=attempts+1, last_error=NULL, updated_at=$1 WHERE id=$2`,
		time.Now().UTC(), jobID)
	return err
}

func (r *PostingQueueRepository) MarkRetry(ctx context.Context, jobID int64, lastError string, nextAttemptAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posting_queue SET status='pending', attempts=attempts+1, last_error=$1, next_attempt_at=$2, updated_at=$3 WHERE id=$4`,
		lastError, nextAttemptAt, time.Now().UTC(), jobID)
	return err
}

func (r *PostingQueueRepository) MarkFailed(ctx context.Context, jobID int64, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posting_queue SET status='failed', attempts=attempts+1, last_error=$1, updated_at=$2 WHERE id=$3`,
		lastError, time.Now().UTC(), jobID)
	return err
}

func (r *PostingQueueRepository) CountUnresolved(ctx context.Context, postID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posting_queue WHERE post_id=$1 AND status IN ('pending','processing')`,
		postID).Scan(&n)
	return n, err
}
