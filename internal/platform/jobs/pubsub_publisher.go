package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/adega-club/api/internal/services"
)

// PubSubComboPublisher publishes combo lifecycle events to Pub/Sub topics.
type PubSubComboPublisher struct {
	confirmed *pubsub.Topic
	rejected  *pubsub.Topic
	marshal   func(any) ([]byte, error)
}

// NewPubSubComboPublisher constructs a Pub/Sub backed combo event publisher.
// The rejected topic is optional; rejection events are dropped without it.
func NewPubSubComboPublisher(confirmed, rejected *pubsub.Topic) (*PubSubComboPublisher, error) {
	if confirmed == nil {
		return nil, errors.New("pubsub combo publisher: confirmed topic is required")
	}
	return &PubSubComboPublisher{
		confirmed: confirmed,
		rejected:  rejected,
		marshal:   json.Marshal,
	}, nil
}

// ComboConfirmed enqueues a confirmation event on the configured topic.
func (p *PubSubComboPublisher) ComboConfirmed(ctx context.Context, event services.ComboConfirmedEvent) error {
	if p == nil || p.confirmed == nil {
		return errors.New("pubsub combo publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal combo confirmed event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "comboId", event.Record.ID)
	setAttr(attrs, "userId", event.UserID)
	setAttr(attrs, "sessionId", event.SessionID)
	setAttr(attrs, "currency", event.Record.Currency)

	result := p.confirmed.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish combo confirmed event: %w", err)
	}
	return nil
}

// ComboRejected enqueues a rejection event when a rejected topic is configured.
func (p *PubSubComboPublisher) ComboRejected(ctx context.Context, event services.ComboRejectedEvent) error {
	if p == nil {
		return errors.New("pubsub combo publisher: not initialised")
	}
	if p.rejected == nil {
		return nil
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal combo rejected event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "userId", event.UserID)
	setAttr(attrs, "sessionId", event.SessionID)

	result := p.rejected.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish combo rejected event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ services.ComboEventPublisher = (*PubSubComboPublisher)(nil)
