package messaging

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/airbusgeo/geocube-ndvi/service"
	"google.golang.org/api/option"
)

// Publisher publishes messages on a topic
type Publisher interface {
	Publish(ctx context.Context, data ...[]byte) error
}

// PubSubPublisher implements Publisher with a Google Pub/Sub topic
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher creates a publisher on the topic of the project
func NewPubSubPublisher(ctx context.Context, project, topic string, opts ...option.ClientOption) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewPubSubPublisher.NewClient: %w", err)
	}
	return &PubSubPublisher{client: client, topic: client.Topic(topic)}, nil
}

// Publish implements Publisher
// It waits for the server to acknowledge all the messages.
func (p *PubSubPublisher) Publish(ctx context.Context, data ...[]byte) error {
	results := make([]*pubsub.PublishResult, len(data))
	for i, d := range data {
		results[i] = p.topic.Publish(ctx, &pubsub.Message{Data: d})
	}
	var err error
	for _, res := range results {
		if _, e := res.Get(ctx); e != nil {
			err = service.MergeErrors(true, err, fmt.Errorf("Publish[%s]: %w", p.topic.ID(), e))
		}
	}
	return err
}

// Close flushes the pending messages and releases the client
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
