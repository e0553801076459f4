package servicebus

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"postpilot/domain/model"
	"postpilot/infrastructure/logger"
)

// IPostEventServiceBus mirrors the Pub/Sub notifier for Azure deployments.
type IPostEventServiceBus interface {
	SendStatus(ctx context.Context, event model.PostEvent) error
}

type PostEventServiceBus struct {
	client *azservicebus.Client
	queue  string
}

func NewServiceBus(namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

func NewPostEventServiceBus(client *azservicebus.Client, queue string) IPostEventServiceBus {
	return &PostEventServiceBus{client: client, queue: queue}
}

func (s *PostEventServiceBus) SendStatus(ctx context.Context, event model.PostEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	sender, err := s.client.NewSender(s.queue, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while making new sender service bus.")
		return err
	}
	defer func() {
		if cerr := sender.Close(ctx); cerr != nil {
			logger.GetLogger().WithField("error", cerr).Error("Error while closing sender.")
		}
	}()
	if err := sender.SendMessage(ctx, &azservicebus.Message{Body: payload}, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}
