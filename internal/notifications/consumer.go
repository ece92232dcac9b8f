package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/money"
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
	"github.com/digimartlabs/digimart-backend/pkg/outbox/idempotency"
	"github.com/digimartlabs/digimart-backend/pkg/outbox/payloads"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

const eventNotificationConsumer = "event-notifications"

// Notification kinds written by the consumer.
const (
	KindOrder  = "order"
	KindWallet = "wallet"
	KindSale   = "sale"
)

type deliverer interface {
	Deliver(ctx context.Context, params DeliverParams) (*models.Notification, error)
}

// Consumer watches domain events and turns them into in-app notifications.
type Consumer struct {
	svc          deliverer
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an event notification consumer.
func NewConsumer(svc deliverer, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if svc == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		svc:          svc,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !c.handles(eventType) {
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, eventNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	params, err := c.buildNotification(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, eventNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	if _, err := c.svc.Deliver(ctx, params); err != nil {
		c.logg.Error(logCtx, "notification delivery failed", err)
		_ = c.idempotency.Delete(ctx, eventNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{"user_id": params.UserID.String()}), "notification delivered")
	return processResult{ack: true}
}

func (c *Consumer) handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderCompleted,
		enums.EventOrderCancelled,
		enums.EventOrderExpired,
		enums.EventDepositCompleted,
		enums.EventNotificationRequested:
		return true
	}
	return false
}

func (c *Consumer) buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (DeliverParams, error) {
	switch eventType {
	case enums.EventOrderCompleted:
		var payload payloads.OrderCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return DeliverParams{}, err
		}
		return DeliverParams{
			UserID:   payload.BuyerUserID,
			Kind:     KindOrder,
			Title:    "Order delivered",
			Body:     fmt.Sprintf("Order %s is complete. Your items are ready to download.", payload.Reference),
			Metadata: orderMetadata(payload.OrderID, payload.Reference),
		}, nil

	case enums.EventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return DeliverParams{}, err
		}
		body := fmt.Sprintf("Order %s was cancelled and %s was returned to your wallet.", payload.Reference, money.Format(payload.TotalCents))
		if payload.Reason != "" {
			body = fmt.Sprintf("Order %s was cancelled (%s). %s was returned to your wallet.", payload.Reference, payload.Reason, money.Format(payload.TotalCents))
		}
		return DeliverParams{
			UserID:   payload.BuyerUserID,
			Kind:     KindOrder,
			Title:    "Order cancelled",
			Body:     body,
			Metadata: orderMetadata(payload.OrderID, payload.Reference),
		}, nil

	case enums.EventOrderExpired:
		var payload payloads.OrderExpiredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return DeliverParams{}, err
		}
		return DeliverParams{
			UserID:   payload.BuyerUserID,
			Kind:     KindOrder,
			Title:    "Order expired",
			Body:     fmt.Sprintf("The reservation for order %s lapsed and %s was returned to your wallet.", payload.Reference, money.Format(payload.TotalCents)),
			Metadata: orderMetadata(payload.OrderID, payload.Reference),
		}, nil

	case enums.EventDepositCompleted:
		var payload payloads.DepositCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return DeliverParams{}, err
		}
		return DeliverParams{
			UserID: payload.UserID,
			Kind:   KindWallet,
			Title:  "Deposit completed",
			Body:   fmt.Sprintf("%s was added to your wallet.", money.Format(payload.AmountCents)),
			Metadata: &types.JSONMap{
				"transaction_id": payload.TransactionID.String(),
				"reference":      payload.Reference,
			},
		}, nil

	case enums.EventNotificationRequested:
		var payload payloads.NotificationRequestedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return DeliverParams{}, err
		}
		params := DeliverParams{
			UserID: payload.UserID,
			Kind:   payload.Kind,
			Title:  payload.Title,
			Body:   payload.Body,
		}
		if payload.OrderID != nil {
			params.Metadata = &types.JSONMap{"order_id": payload.OrderID.String()}
		}
		return params, nil
	}
	return DeliverParams{}, fmt.Errorf("no notification mapping for event %s", eventType)
}

func orderMetadata(orderID uuid.UUID, reference string) *types.JSONMap {
	return &types.JSONMap{
		"order_id":  orderID.String(),
		"reference": reference,
	}
}
