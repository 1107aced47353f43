package gcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"google.golang.org/api/option"
	"google.golang.org/api/pubsub/v1"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// Publisher publishes encoded records to Pub/Sub topics in one project.
type Publisher struct {
	svc     *pubsub.Service
	project string
}

// NewPublisher creates a Pub/Sub publisher for topics in project.
func NewPublisher(ctx context.Context, project string, opts ...option.ClientOption) (*Publisher, error) {
	if project == "" {
		return nil, fmt.Errorf("project cannot be empty")
	}
	svc, err := pubsub.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create pubsub service: %w", err)
	}
	return &Publisher{svc: svc, project: project}, nil
}

// TopicPath returns the fully qualified topic name.
func (p *Publisher) TopicPath(topic string) string {
	return fmt.Sprintf("projects/%s/topics/%s", p.project, topic)
}

// Publish sends one message with the publication's attributes. Key becomes the
// Pub/Sub ordering key.
func (p *Publisher) Publish(ctx context.Context, pub *events.Publication) error {
	req := &pubsub.PublishRequest{
		Messages: []*pubsub.PubsubMessage{{
			Data:        base64.StdEncoding.EncodeToString(pub.Data),
			Attributes:  pub.Attributes,
			OrderingKey: pub.Key,
		}},
	}
	resp, err := p.svc.Projects.Topics.Publish(p.TopicPath(pub.Topic), req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: publish to %s failed: %v", events.ErrSinkError, pub.Topic, err)
	}

	slog.Debug("Published classification", "topic", pub.Topic, "message_ids", resp.MessageIds)
	return nil
}
