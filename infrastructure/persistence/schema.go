package persistence

import "database/sql"

// EnsurePipelineSchema creates the publishing pipeline tables when missing.
// The partial unique indexes enforce at most one non-terminal job per
// (post, platform) pair and per connection.
func EnsurePipelineSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS social_connections (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT,
			expires_at TIMESTAMPTZ,
			platform_user_id TEXT NOT NULL DEFAULT '',
			platform_username TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			scopes TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			last_used_at TIMESTAMPTZ,
			last_error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, platform)
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			target_platforms TEXT[] NOT NULL DEFAULT '{}',
			published_platforms TEXT[] NOT NULL DEFAULT '{}',
			results JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'pending',
			scheduled_at TIMESTAMPTZ,
			trend_title TEXT,
			trend_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS posting_queue (
			id BIGSERIAL PRIMARY KEY,
			post_id BIGINT NOT NULL REFERENCES posts(id),
			platform TEXT NOT NULL,
			connection_id BIGINT NOT NULL REFERENCES social_connections(id),
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT,
			next_attempt_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS posting_queue_open_job
			ON posting_queue (post_id, platform)
			WHERE status IN ('pending','processing')`,
		`CREATE TABLE IF NOT EXISTS token_refresh_queue (
			id BIGSERIAL PRIMARY KEY,
			connection_id BIGINT NOT NULL REFERENCES social_connections(id),
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT,
			next_attempt_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS token_refresh_open_job
			ON token_refresh_queue (connection_id)
			WHERE status IN ('pending','processing')`,
		`CREATE INDEX IF NOT EXISTS posting_queue_due
			ON posting_queue (status, next_attempt_at, created_at)`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
