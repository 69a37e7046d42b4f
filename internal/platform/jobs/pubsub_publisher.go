package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/services"
)

// InvoiceEventMessage is the JSON body of an invoice lifecycle message.
type InvoiceEventMessage struct {
	Type           string    `json:"type"`
	InvoiceID      string    `json:"invoiceId"`
	UserID         string    `json:"userId"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	CurrentStatus  string    `json:"currentStatus"`
	ActorID        string    `json:"actorId,omitempty"`
	Total          string    `json:"invoiceTotal,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// PubSubInvoicePublisher publishes invoice lifecycle events to a Pub/Sub topic.
type PubSubInvoicePublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.InvoiceEventPublisher = (*PubSubInvoicePublisher)(nil)

// NewPubSubInvoicePublisher constructs a Pub/Sub backed invoice event publisher.
func NewPubSubInvoicePublisher(topic *pubsub.Topic) (*PubSubInvoicePublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub invoice publisher: topic is required")
	}
	// events of one invoice must reach subscribers in transition order
	topic.EnableMessageOrdering = true
	return &PubSubInvoicePublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishInvoiceEvent sends event and waits for the server to acknowledge it.
func (p *PubSubInvoicePublisher) PublishInvoiceEvent(ctx context.Context, event services.InvoiceEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub invoice publisher: not initialised")
	}

	data, err := p.marshal(InvoiceEventMessage{
		Type:           event.Type,
		InvoiceID:      event.InvoiceID,
		UserID:         event.UserID,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ActorID:        event.ActorID,
		Total:          event.Total,
		OccurredAt:     event.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal invoice event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "invoiceId", event.InvoiceID)
	setAttr(attrs, "userId", event.UserID)
	setAttr(attrs, "status", event.CurrentStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: strings.TrimSpace(event.InvoiceID),
	})
	if _, err := result.Get(ctx); err != nil {
		// a failed ordered publish pauses the key until resumed
		p.topic.ResumePublish(strings.TrimSpace(event.InvoiceID))
		return fmt.Errorf("publish invoice event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
