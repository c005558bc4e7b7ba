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

	domain "github.com/carsi-commerce/api/internal/domain"
)

func TestPublishOrderStatusChanged(t *testing.T) {
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
	defer func() { _ = client.Close() }()

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	publisher, err := NewPubSubOrderEventPublisher(topic, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewPubSubOrderEventPublisher: %v", err)
	}

	order := domain.Order{
		ID:         "ord_test",
		Number:     "CC-2025-000042",
		UserID:     "usr_1",
		Status:     domain.OrderStatusProcessing,
		TotalPrice: 13570,
		IsPaid:     true,
	}
	if err := publisher.PublishOrderStatusChanged(ctx, order, domain.OrderStatusPending); err != nil {
		t.Fatalf("PublishOrderStatusChanged: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload OrderEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Event != "order.status.changed" {
		t.Fatalf("unexpected event %q", payload.Event)
	}
	if payload.OrderID != "ord_test" || payload.PreviousStatus != string(domain.OrderStatusPending) {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if !payload.OccurredAt.Equal(now) {
		t.Fatalf("OccurredAt not stamped from clock: %v", payload.OccurredAt)
	}
	if attr := messages[0].Attributes["previousStatus"]; attr != string(domain.OrderStatusPending) {
		t.Fatalf("expected previousStatus attribute, got %q", attr)
	}
}

func TestPublishOrderCreated(t *testing.T) {
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
	defer func() { _ = client.Close() }()

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubOrderEventPublisher(topic, nil)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventPublisher: %v", err)
	}

	paidAt := time.Date(2025, time.March, 10, 11, 58, 0, 0, time.UTC)
	order := domain.Order{
		ID:         "ord_test",
		Number:     "CC-2025-000001",
		UserID:     "usr_1",
		Status:     domain.OrderStatusPending,
		TotalPrice: 5000,
		IsPaid:     true,
		PaidAt:     &paidAt,
	}
	if err := publisher.PublishOrderCreated(ctx, order); err != nil {
		t.Fatalf("PublishOrderCreated: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["event"]; attr != "order.created" {
		t.Fatalf("unexpected event attribute %q", attr)
	}
	if _, ok := messages[0].Attributes["previousStatus"]; ok {
		t.Fatal("created event must not carry previousStatus")
	}
}
