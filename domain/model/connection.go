package model

import "time"

// Connection statuses
const (
	ConnectionStatusActive  = "active"
	ConnectionStatusError   = "error"
	ConnectionStatusExpired = "expired"
	ConnectionStatusRevoked = "revoked"
)

// Connection stores platform OAuth credentials per user. Tokens are held
// encrypted at rest; the vault decrypts them on the way out.
// At most one Connection exists per (user_id, platform).
type Connection struct {
	ID               int64             `json:"id"`
	UserID           string            `json:"user_id"`
	Platform         string            `json:"platform"`
	AccessToken      string            `json:"-"`
	RefreshToken     string            `json:"-"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
	PlatformUserID   string            `json:"platform_user_id"`
	PlatformUsername string            `json:"platform_username"`
	DisplayName      string            `json:"display_name"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Scopes           string            `json:"scopes"`
	Status           string            `json:"status"` // active | error | expired | revoked
	LastUsedAt       *time.Time        `json:"last_used_at,omitempty"`
	LastError        *string           `json:"last_error,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Profile is the normalized shape of a platform user-info response.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}
