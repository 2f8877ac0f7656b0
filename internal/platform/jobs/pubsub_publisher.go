package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/ticketbridge/api/internal/services"
)

// PubSubWebhookPublisher publishes webhook processing jobs to a Pub/Sub topic.
type PubSubWebhookPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubWebhookPublisher constructs a Pub/Sub backed webhook job publisher.
func NewPubSubWebhookPublisher(topic *pubsub.Topic) (*PubSubWebhookPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub webhook publisher: topic is required")
	}
	return &PubSubWebhookPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishWebhookJob enqueues a webhook job message on the configured topic.
func (p *PubSubWebhookPublisher) PublishWebhookJob(ctx context.Context, message services.WebhookJobMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub webhook publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal webhook job: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "email", message.Order.Customer.Email)
	attrs["syncMailchimp"] = strconv.FormatBool(message.SyncMailchimp)
	attrs["syncWooCommerce"] = strconv.FormatBool(message.SyncWooCommerce)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish webhook job: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
