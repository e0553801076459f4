package persistence

import (
	"context"
	"database/sql"
	"time"

	"postpilot/domain/model"
)

// TokenRefreshRepository owns the token_refresh_queue table.
type TokenRefreshRepository struct{ db *sql.DB }

func NewTokenRefreshRepository(db *sql.DB) *TokenRefreshRepository {
	return &TokenRefreshRepository{db: db}
}

func (r *TokenRefreshRepository) EnqueueIfAbsent(ctx context.Context, connectionID int64) (bool, error) {
	now := time.Now().UTC()
	q := `INSERT INTO token_refresh_queue (connection_id, status, attempts, created_at, updated_at)
		  SELECT $1, 'pending', 0, $2, $2
		  WHERE NOT EXISTS (
			SELECT 1 FROM token_refresh_queue
			WHERE connection_id=$1 AND status IN ('pending','processing')
		  )`
	res, err := r.db.ExecContext(ctx, q, connectionID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TokenRefreshRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.TokenRefreshJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, connection_id, status, attempts, last_error, next_attempt_at, created_at, updated_at
		 FROM token_refresh_queue
		 WHERE status='pending' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		 ORDER BY created_at ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*model.TokenRefreshJob
	for rows.Next() {
		j := &model.TokenRefreshJob{}
		var lastErr sql.NullString
		var nextAt sql.NullTime
		if err := rows.Scan(&j.ID, &j.ConnectionID, &j.Status, &j.Attempts,
			&lastErr, &nextAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
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

func (r *TokenRefreshRepository) Claim(ctx context.Context, jobID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE token_refresh_queue SET status='processing', updated_at=$1 WHERE id=$2 AND status='pending'`,
		time.Now().UTC(), jobID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TokenRefreshRepository) MarkCompleted(ctx context.Context, jobID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE token_refresh_queue SET status='completed', attempts=attempts+1, last_error=NULL, updated_at=$1 WHERE id=$2`,
		time.Now().UTC(), jobID)
	return err
}

func (r *TokenRefreshRepository) MarkRetry(ctx context.Context, jobID int64, lastError string, nextAttemptAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE token_refresh_queue SET status='pending', attempts=attempts+1, last_error=$1, next_attempt_at=$2, updated_at=$3 WHERE id=$4`,
		lastError, nextAttemptAt, time.Now().UTC(), jobID)
	return err
}

func (r *TokenRefreshRepository) MarkFailed(ctx context.Context, jobID int64, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE token_refresh_queue SET status='failed', attempts=attempts+1, last_error=$1, updated_at=$2 WHERE id=$3`,
		lastError, time.Now().UTC(), jobID)
	return err
}
