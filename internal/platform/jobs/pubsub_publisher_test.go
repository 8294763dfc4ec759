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

	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/services"
)

func newTestTopics(t *testing.T) (*pstest.Server, *pubsub.Topic, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	confirmed, err := client.CreateTopic(ctx, "combo-confirmed")
	if err != nil {
		t.Fatalf("CreateTopic confirmed: %v", err)
	}
	rejected, err := client.CreateTopic(ctx, "combo-rejected")
	if err != nil {
		t.Fatalf("CreateTopic rejected: %v", err)
	}
	return srv, confirmed, rejected
}

func TestPubSubComboPublisherConfirmed(t *testing.T) {
	ctx := context.Background()
	srv, confirmed, rejected := newTestTopics(t)

	publisher, err := NewPubSubComboPublisher(confirmed, rejected)
	if err != nil {
		t.Fatalf("NewPubSubComboPublisher: %v", err)
	}

	event := services.ComboConfirmedEvent{
		Record: domain.ComboRecord{
			ID:                  "combo-1",
			Currency:            "BRL",
			OriginalTotal:       8600,
			DiscountedTotal:     8170,
			DiscountBasisPoints: 500,
		},
		UserID:    "user-1",
		SessionID: "sess-1",
		Timestamp: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	if err := publisher.ComboConfirmed(ctx, event); err != nil {
		t.Fatalf("ComboConfirmed: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.ComboConfirmedEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Record.ID != "combo-1" || payload.Record.DiscountedTotal != 8170 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	attrs := messages[0].Attributes
	if attrs["comboId"] != "combo-1" || attrs["userId"] != "user-1" || attrs["sessionId"] != "sess-1" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if attrs["currency"] != "BRL" {
		t.Fatalf("expected currency attribute, got %v", attrs)
	}
}

func TestPubSubComboPublisherRejected(t *testing.T) {
	ctx := context.Background()
	srv, confirmed, rejected := newTestTopics(t)

	publisher, err := NewPubSubComboPublisher(confirmed, rejected)
	if err != nil {
		t.Fatalf("NewPubSubComboPublisher: %v", err)
	}

	event := services.ComboRejectedEvent{
		SessionID: "sess-1",
		UserID:    "user-1",
		Reasons:   []string{"spirit not selected", "2 ice slots empty"},
		Timestamp: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	if err := publisher.ComboRejected(ctx, event); err != nil {
		t.Fatalf("ComboRejected: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	var payload services.ComboRejectedEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Reasons) != 2 {
		t.Fatalf("expected rejection reasons preserved, got %#v", payload)
	}
}

func TestPubSubComboPublisherDropsRejectionsWithoutTopic(t *testing.T) {
	ctx := context.Background()
	srv, confirmed, _ := newTestTopics(t)

	publisher, err := NewPubSubComboPublisher(confirmed, nil)
	if err != nil {
		t.Fatalf("NewPubSubComboPublisher: %v", err)
	}

	if err := publisher.ComboRejected(ctx, services.ComboRejectedEvent{SessionID: "sess-1"}); err != nil {
		t.Fatalf("ComboRejected without topic should be a no-op: %v", err)
	}
	if got := len(srv.Messages()); got != 0 {
		t.Fatalf("expected no messages, got %d", got)
	}
}

func TestNewPubSubComboPublisherRequiresConfirmedTopic(t *testing.T) {
	if _, err := NewPubSubComboPublisher(nil, nil); err == nil {
		t.Fatalf("expected error without confirmed topic")
	}
}
