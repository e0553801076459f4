package repository

import (
	"context"

	"postpilot/domain/model"
)

// Credentials is the decrypted material handed to a publisher for one attempt.
type Credentials struct {
	AccessToken string
	// PlatformUserID is the connected account's id on the platform; LinkedIn
	// needs it to build the author URN.
	PlatformUserID string
	Metadata       map[string]string
}

// IPublisher is the only operation the pipeline calls out to per platform.
// Implementations should return an error on transport failure; the queue
// treats that the same as a success=false result.
type IPublisher interface {
	Publish(ctx context.Context, creds Credentials, content string) (*model.PublishResult, error)
}

// ITrend supplies trend metadata used when composing posts.
type ITrend interface {
	FindRecent(ctx context.Context, limit int) ([]*model.Trend, error)
}
