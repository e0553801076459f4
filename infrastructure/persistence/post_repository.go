package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"postpilot/domain/model"
)

// PostRepository persists posts. Result-map and aggregate-status writes go
// through MergeResult so the queue stays the single writer.
type PostRepository struct{ db *sql.DB }

func NewPostRepository(db *sql.DB) *PostRepository { return &PostRepository{db: db} }

const postColumns = `id, user_id, content, target_platforms, published_platforms, results,
	status, scheduled_at, trend_title, trend_url, created_at, updated_at`

func (r *PostRepository) Create(ctx context.Context, p *model.Post) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Results == nil {
		p.Results = map[string]model.PlatformResult{}
	}
	results, err := json.Marshal(p.Results)
	if err != nil {
		return err
	}
	q := `INSERT INTO posts (user_id, content, target_platforms, published_platforms, results,
			status, scheduled_at, trend_title, trend_url, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`
	return r.db.QueryRowContext(ctx, q,
		p.UserID, p.Content, pq.Array(p.TargetPlatforms), pq.Array(p.PublishedPlatforms),
		results, p.Status, p.ScheduledAt, p.TrendTitle, p.TrendURL, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

func (r *PostRepository) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id=$1`, id)
	return scanPost(row)
}

func (r *PostRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *PostRepository) MergeResult(ctx context.Context, postID int64, platform string, res model.PlatformResult, status string) error {
	entry, err := json.Marshal(map[string]model.PlatformResult{platform: res})
	if err != nil {
		return err
	}
	published := `published_platforms`
	if res.Success {
		// array_append only when the platform is not already recorded.
		published = `CASE WHEN $2 = ANY(published_platforms) THEN published_platforms
			ELSE array_append(published_platforms, $2) END`
	}
	q := `UPDATE posts SET results = results || $1::jsonb,
			published_platforms = ` + published + `,
			status = $3, updated_at = $4 WHERE id = $5`
	_, err = r.db.ExecContext(ctx, q, entry, platform, status, time.Now().UTC(), postID)
	return err
}

func (r *PostRepository) UpdateStatus(ctx context.Context, postID int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now().UTC(), postID)
	return err
}

func (r *PostRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE status=$1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		 ORDER BY scheduled_at ASC LIMIT $3`,
		model.PostStatusScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func scanPost(row rowScanner) (*model.Post, error) {
	p := &model.Post{}
	var results []byte
	var scheduledAt sql.NullTime
	var trendTitle, trendURL sql.NullString
	var targets, published pq.StringArray
	if err := row.Scan(&p.ID, &p.UserID, &p.Content, &targets, &published, &results,
		&p.Status, &scheduledAt, &trendTitle, &trendURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.TargetPlatforms = targets
	p.PublishedPlatforms = published
	if scheduledAt.Valid {
		t := scheduledAt.Time
		p.ScheduledAt = &t
	}
	if trendTitle.Valid {
		v := trendTitle.String
		p.TrendTitle = &v
	}
	if trendURL.Valid {
		v := trendURL.String
		p.TrendURL = &v
	}
	p.Results = map[string]model.PlatformResult{}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &p.Results); err != nil {
			return nil, fmt.Errorf("decode results for post %d: %w", p.ID, err)
		}
	}
	return p, nil
}
