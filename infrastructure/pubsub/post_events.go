package pubsub

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"
	"postpilot/domain/model"
	"postpilot/infrastructure/logger"
)

// IPostEventPubSub publishes post status changes to a Pub/Sub topic.
type IPostEventPubSub interface {
	PublishStatus(ctx context.Context, event model.PostEvent) (string, error)
}

type PostEventPubSub struct {
	client *pubsub.Client
	topic  string
}

func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	return pubsub.NewClient(ctx, projectID)
}

func NewPostEventPubSub(client *pubsub.Client, topic string) IPostEventPubSub {
	return &PostEventPubSub{client: client, topic: topic}
}

func (p *PostEventPubSub) PublishStatus(ctx context.Context, event model.PostEvent) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	topic := p.client.Topic(p.topic)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topic).Info("Topic doesn't exist - creating it")
		if _, err = p.client.CreateTopic(ctx, p.topic); err != nil {
			return "", err
		}
	}
	serverID, err := topic.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	if err != nil {
		return "", err
	}
	logger.GetLogger().WithField("server ID", serverID).Debug("Post event published")
	return serverID, nil
}
