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

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

func TestPubSubInvoicePublisherPublishesMessage(t *testing.T) {
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

	topic, err := client.CreateTopic(ctx, "invoice-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	defer topic.Stop()

	publisher, err := NewPubSubInvoicePublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubInvoicePublisher: %v", err)
	}

	occurredAt := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	event := services.InvoiceEvent{
		Type:           "invoice.status_changed",
		InvoiceID:      "inv_01HX",
		UserID:         "user_1",
		PreviousStatus: "PENDING",
		CurrentStatus:  "CONFIRMED",
		ActorID:        "system:auto-confirm",
		Total:          "200.00",
		OccurredAt:     occurredAt,
	}

	if err := publisher.PublishInvoiceEvent(ctx, event); err != nil {
		t.Fatalf("PublishInvoiceEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload InvoiceEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.InvoiceID != event.InvoiceID || payload.CurrentStatus != "CONFIRMED" || payload.Total != "200.00" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if !payload.OccurredAt.Equal(occurredAt) {
		t.Fatalf("expected occurredAt %s, got %s", occurredAt, payload.OccurredAt)
	}
	if attr := messages[0].Attributes["status"]; attr != "CONFIRMED" {
		t.Fatalf("expected status attribute, got %q", attr)
	}
	if messages[0].OrderingKey != "inv_01HX" {
		t.Fatalf("expected ordering key inv_01HX, got %q", messages[0].OrderingKey)
	}
}

func TestNewPubSubInvoicePublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubInvoicePublisher(nil); err == nil {
		t.Fatalf("expected error when topic missing")
	}
	var nilPublisher *PubSubInvoicePublisher
	if err := nilPublisher.PublishInvoiceEvent(context.Background(), services.InvoiceEvent{}); err == nil {
		t.Fatalf("expected error from nil publisher")
	}
}
