package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"postpilot/domain/model"
)

// ConnectionRepository persists social_connections using native sql.DB.
type ConnectionRepository struct{ db *sql.DB }

func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, user_id, platform, access_token, refresh_token, expires_at,
	platform_user_id, platform_username, display_name, metadata, scopes, status,
	last_used_at, last_error, created_at, updated_at`

func (r *ConnectionRepository) Upsert(ctx context.Context, c *model.Connection) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}
	q := `INSERT INTO social_connections (user_id, platform, access_token, refresh_token, expires_at,
			platform_user_id, platform_username, display_name, metadata, scopes, status, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			platform_user_id=EXCLUDED.platform_user_id,
			platform_username=EXCLUDED.platform_username,
			display_name=EXCLUDED.display_name,
			metadata=EXCLUDED.metadata,
			scopes=EXCLUDED.scopes,
			status=EXCLUDED.status,
			last_error=NULL,
			updated_at=EXCLUDED.updated_at
		  RETURNING id`
	return r.db.QueryRowContext(ctx, q,
		c.UserID, c.Platform, c.AccessToken, nullString(c.RefreshToken), c.ExpiresAt,
		c.PlatformUserID, c.PlatformUsername, c.DisplayName, meta, c.Scopes, c.Status,
		c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
}

func (r *ConnectionRepository) GetByID(ctx context.Context, id int64) (*model.Connection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM social_connections WHERE id=$1`, id)
	return scanConnection(row)
}

func (r *ConnectionRepository) Get(ctx context.Context, userID, platform string) (*model.Connection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM social_connections WHERE user_id=$1 AND platform=$2`,
		userID, platform)
	conn, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return conn, err
}

func (r *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*model.Connection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM social_connections WHERE user_id=$1 ORDER BY platform`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConnections(rows)
}

func (r *ConnectionRepository) ListExpiring(ctx context.Context, cutoff time.Time) ([]*model.Connection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM social_connections
		 WHERE status=$1 AND expires_at IS NOT NULL AND expires_at <= $2`,
		model.ConnectionStatusActive, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConnections(rows)
}

func (r *ConnectionRepository) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE social_connections SET access_token=$1, refresh_token=$2, expires_at=$3,
			status=$4, last_error=NULL, updated_at=$5 WHERE id=$6`,
		accessToken, nullString(refreshToken), expiresAt, model.ConnectionStatusActive,
		time.Now().UTC(), id)
	return err
}

func (r *ConnectionRepository) UpdateStatus(ctx context.Context, id int64, status string, lastError *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE social_connections SET status=$1, last_error=$2, updated_at=$3 WHERE id=$4`,
		status, lastError, time.Now().UTC(), id)
	return err
}

func (r *ConnectionRepository) TouchLastUsed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE social_connections SET last_used_at=$1 WHERE id=$2`, time.Now().UTC(), id)
	return err
}

func (r *ConnectionRepository) Delete(ctx context.Context, userID, platform string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM social_connections WHERE user_id=$1 AND platform=$2`, userID, platform)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(row rowScanner) (*model.Connection, error) {
	c := &model.Connection{}
	var refreshToken, lastError sql.NullString
	var expiresAt, lastUsedAt sql.NullTime
	var meta []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.Platform, &c.AccessToken, &refreshToken, &expiresAt,
		&c.PlatformUserID, &c.PlatformUsername, &c.DisplayName, &meta, &c.Scopes, &c.Status,
		&lastUsedAt, &lastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if refreshToken.Valid {
		c.RefreshToken = refreshToken.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		c.LastUsedAt = &t
	}
	if lastError.Valid {
		v := lastError.String
		c.LastError = &v
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for connection %d: %w", c.ID, err)
		}
	}
	return c, nil
}

func scanConnections(rows *sql.Rows) ([]*model.Connection, error) {
	var list []*model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
