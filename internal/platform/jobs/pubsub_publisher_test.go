package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ticketbridge/api/internal/services"
)

func TestPubSubWebhookPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "webhook-jobs")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubWebhookPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubWebhookPublisher: %v", err)
	}

	msg := services.WebhookJobMessage{
		OrderID: "txn-42",
		Order: services.OrderSnapshot{
			OrderID:  "txn-42",
			Status:   "completed",
			Currency: "USD",
			Customer: services.CustomerSnapshot{Email: "jamie@example.com"},
		},
		SyncMailchimp:   true,
		SyncWooCommerce: false,
		QueuedAt:        time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishWebhookJob(ctx, msg); err != nil {
		t.Fatalf("PublishWebhookJob: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.WebhookJobMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != msg.OrderID || payload.Order.Customer.Email != "jamie@example.com" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if !payload.SyncMailchimp || payload.SyncWooCommerce {
		t.Fatalf("gates not carried: %#v", payload)
	}
	if attr := messages[0].Attributes["orderId"]; attr != "txn-42" {
		t.Fatalf("expected orderId attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["syncWooCommerce"]; attr != "false" {
		t.Fatalf("expected syncWooCommerce=false attribute, got %q", attr)
	}
}
