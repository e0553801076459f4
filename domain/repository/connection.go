package repository

import (
	"context"
	"time"

	"postpilot/domain/model"
)

// IConnection defines persistence for platform OAuth connections.
type IConnection interface {
	Upsert(ctx context.Context, conn *model.Connection) error
	GetByID(ctx context.Context, id int64) (*model.Connection, error)
	Get(ctx context.Context, userID, platform string) (*model.Connection, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Connection, error)
	// ListExpiring returns active connections whose expiry falls before the
	// given cutoff. Connections without an expiry are never returned.
	ListExpiring(ctx context.Context, cutoff time.Time) ([]*model.Connection, error)
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time) error
	UpdateStatus(ctx context.Context, id int64, status string, lastError *string) error
	TouchLastUsed(ctx context.Context, id int64) error
	Delete(ctx context.Context, userID, platform string) error
}
