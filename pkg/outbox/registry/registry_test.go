package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
	"github.com/digimartlabs/digimart-backend/pkg/outbox/payloads"
)

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:       "orders-topic",
		NotificationTopic: "notification-topic",
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func envelopeRow(t *testing.T, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestEventRegistryResolve(t *testing.T) {
	reg := newTestRegistry(t)
	orderID := uuid.New()
	row := envelopeRow(t, enums.EventOrderCompleted, enums.AggregateOrder, payloads.OrderCompletedEvent{
		OrderID:     orderID,
		Reference:   "ORD-1",
		BuyerUserID: uuid.New(),
		TotalCents:  5000,
		ItemCount:   1,
		CompletedAt: time.Now(),
	})

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderCompletedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID {
		t.Fatalf("payload order id mismatch")
	}
}

func TestEventRegistryRoutesNotificationTopic(t *testing.T) {
	reg := newTestRegistry(t)
	row := envelopeRow(t, enums.EventNotificationRequested, enums.AggregateNotification, payloads.NotificationRequestedEvent{
		UserID: uuid.New(),
		Kind:   "sale",
		Title:  "You made a sale",
	})

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "notification-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
}

func TestEventRegistryResolveRejections(t *testing.T) {
	reg := newTestRegistry(t)

	cases := []struct {
		name string
		row  models.OutboxEvent
	}{
		{
			"unsupported event type",
			envelopeRow(t, enums.OutboxEventType("bogus"), enums.AggregateOrder, map[string]string{}),
		},
		{
			"aggregate mismatch",
			envelopeRow(t, enums.EventOrderCompleted, enums.AggregateNotification, map[string]string{}),
		},
		{
			"corrupt envelope",
			models.OutboxEvent{
				ID:            uuid.New(),
				EventType:     enums.EventOrderCompleted,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       json.RawMessage("not json"),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Resolve(tc.row)
			if err == nil {
				t.Fatalf("expected error")
			}
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %v", err)
			}
		})
	}

	missingAggregate := envelopeRow(t, enums.EventOrderCompleted, enums.AggregateOrder, map[string]string{})
	missingAggregate.AggregateID = uuid.Nil
	if _, err := reg.Resolve(missingAggregate); err == nil {
		t.Fatalf("expected error for missing aggregate id")
	}
}

func TestEventRegistryResolveEmptyData(t *testing.T) {
	reg := newTestRegistry(t)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage("null"),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}

	if _, err := reg.Resolve(row); err == nil {
		t.Fatalf("expected error for empty payload data")
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{NotificationTopic: "n"}); err == nil {
		t.Fatalf("expected error without orders topic")
	}
	if _, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "o"}); err == nil {
		t.Fatalf("expected error without notification topic")
	}
}
