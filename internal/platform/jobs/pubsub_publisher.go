package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/carsi-commerce/api/internal/services"
)

const (
	eventOrderCreated       = "order.created"
	eventOrderStatusChanged = "order.status.changed"
)

// OrderEventMessage is the JSON payload published for order lifecycle events.
// Monetary amounts are kuruş.
type OrderEventMessage struct {
	Event          string     `json:"event"`
	OrderID        string     `json:"orderId"`
	OrderNumber    string     `json:"orderNumber"`
	UserID         string     `json:"userId"`
	Status         string     `json:"status"`
	PreviousStatus string     `json:"previousStatus,omitempty"`
	TotalPrice     int64      `json:"totalPrice"`
	IsPaid         bool       `json:"isPaid"`
	OccurredAt     time.Time  `json:"occurredAt"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
}

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub topic
// consumed by the back-office notification pipeline.
type PubSubOrderEventPublisher struct {
	topic   *pubsub.Topic
	clock   func() time.Time
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderEventPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic, clock func() time.Time) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &PubSubOrderEventPublisher{
		topic:   topic,
		clock:   func() time.Time { return clock().UTC() },
		marshal: json.Marshal,
	}, nil
}

var _ services.OrderEventPublisher = (*PubSubOrderEventPublisher)(nil)

// PublishOrderCreated emits an order.created event for a freshly persisted order.
func (p *PubSubOrderEventPublisher) PublishOrderCreated(ctx context.Context, order services.Order) error {
	return p.publish(ctx, OrderEventMessage{
		Event:       eventOrderCreated,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		UserID:      order.UserID,
		Status:      string(order.Status),
		TotalPrice:  order.TotalPrice,
		IsPaid:      order.IsPaid,
		PaidAt:      order.PaidAt,
	})
}

// PublishOrderStatusChanged emits an order.status.changed event carrying both
// the new and the previous status.
func (p *PubSubOrderEventPublisher) PublishOrderStatusChanged(ctx context.Context, order services.Order, previous services.OrderStatus) error {
	return p.publish(ctx, OrderEventMessage{
		Event:          eventOrderStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		UserID:         order.UserID,
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		TotalPrice:     order.TotalPrice,
		IsPaid:         order.IsPaid,
		PaidAt:         order.PaidAt,
	})
}

func (p *PubSubOrderEventPublisher) publish(ctx context.Context, message OrderEventMessage) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order publisher: not initialised")
	}

	message.OccurredAt = p.clock()

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", message.Event)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "orderNumber", message.OrderNumber)
	setAttr(attrs, "status", message.Status)
	setAttr(attrs, "previousStatus", message.PreviousStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
