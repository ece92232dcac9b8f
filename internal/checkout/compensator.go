package checkout

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/internal/assets"
	"github.com/digimartlabs/digimart-backend/internal/ledger"
	"github.com/digimartlabs/digimart-backend/internal/orders"
	"github.com/digimartlabs/digimart-backend/internal/stock"
	"github.com/digimartlabs/digimart-backend/internal/txlog"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/metrics"
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
	"github.com/digimartlabs/digimart-backend/pkg/outbox/payloads"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// Compensator unwinds an order that cannot complete: it cancels the order,
// returns assets and stock, and refunds the buyer's reserved hold. The saga
// and the expiry reaper share this path, and the status update is a
// conditional claim so only one of them ever runs the refund.
type Compensator struct {
	runner  txRunner
	orders  orders.Repository
	ledger  *ledger.Service
	txlog   *txlog.Service
	stock   *stock.Service
	assets  *assets.Service
	outbox  *outbox.Service
	metrics *metrics.SagaMetrics
	logg    *logger.Logger
}

// NewCompensator wires the shared rollback path.
func NewCompensator(
	runner txRunner,
	orderRepo orders.Repository,
	ledgerSvc *ledger.Service,
	txlogSvc *txlog.Service,
	stockSvc *stock.Service,
	assetSvc *assets.Service,
	outboxSvc *outbox.Service,
	sagaMetrics *metrics.SagaMetrics,
	logg *logger.Logger,
) *Compensator {
	return &Compensator{
		runner:  runner,
		orders:  orderRepo,
		ledger:  ledgerSvc,
		txlog:   txlogSvc,
		stock:   stockSvc,
		assets:  assetSvc,
		outbox:  outboxSvc,
		metrics: sagaMetrics,
		logg:    logg,
	}
}

// Cancel compensates the order. When another actor already moved the order to
// a terminal status the call is a clean no-op. All steps run in one
// transaction; a refund shortfall aborts the whole attempt so the order stays
// claimable and the shortfall is escalated instead of partially refunded.
func (c *Compensator) Cancel(ctx context.Context, order *models.Order, reason string, eventType enums.OutboxEventType) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}

	claimed := false
	err := c.runner.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now()
		history := append(order.StatusHistory, types.StatusChange{
			Status:    string(enums.OrderStatusCancelled),
			Note:      reason,
			ChangedAt: now,
		})
		affected, err := c.orders.WithTx(tx).UpdateStatusIf(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed},
			enums.OrderStatusCancelled,
			map[string]any{
				"cancel_reason":  reason,
				"cancelled_at":   now,
				"payment_status": enums.PaymentStatusRefunded,
				"status_history": history,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claiming order for cancellation")
		}
		if affected == 0 {
			// Someone else finished or cancelled the order first.
			return nil
		}
		claimed = true

		if _, err := c.assets.Release(ctx, tx, order.ID); err != nil {
			c.metrics.IncRollbackStep("release_assets", "failure")
			return err
		}
		c.metrics.IncRollbackStep("release_assets", "success")

		lines := make([]stock.Line, 0, len(order.Items))
		for _, item := range order.Items {
			lines = append(lines, stock.Line{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if err := c.stock.Release(ctx, tx, lines); err != nil {
			c.metrics.IncRollbackStep("release_stock", "failure")
			return err
		}
		c.metrics.IncRollbackStep("release_stock", "success")

		buyer := ledger.Account{OwnerID: order.BuyerUserID, OwnerType: enums.OwnerTypeBuyer}
		if err := c.ledger.SubtractFunds(ctx, tx, buyer, enums.BucketReserved, order.TotalCents); err != nil {
			c.metrics.IncRollbackStep("refund", "failure")
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientFunds {
				fields := map[string]any{
					"order_id":     order.ID.String(),
					"buyer_id":     order.BuyerUserID.String(),
					"amount_cents": order.TotalCents,
				}
				c.logg.Error(c.logg.WithFields(ctx, fields), "reserved hold does not cover refund, manual intervention required", err)
				return pkgerrors.Wrap(pkgerrors.CodeRollbackFailed, err, "refund shortfall on reserved bucket")
			}
			return err
		}
		if err := c.ledger.AddFunds(ctx, tx, buyer, enums.BucketWallet, order.TotalCents); err != nil {
			c.metrics.IncRollbackStep("refund", "failure")
			return err
		}
		c.metrics.IncRollbackStep("refund", "success")

		orderID := order.ID
		refundTx, err := c.txlog.Record(ctx, tx, txlog.CreateParams{
			UserID:      order.BuyerUserID,
			OrderID:     &orderID,
			Type:        enums.TransactionTypeRefund,
			AmountCents: order.TotalCents,
			Description: reason,
		})
		if err != nil {
			return err
		}
		if _, err := c.txlog.Transition(ctx, tx, refundTx.ID, enums.TransactionStatusCompleted, "reserved hold returned to wallet"); err != nil {
			return err
		}

		return c.emitCancelled(ctx, tx, order, reason, eventType, now)
	})
	if err != nil {
		return err
	}
	if claimed && c.logg != nil {
		fields := map[string]any{
			"order_id": order.ID.String(),
			"reason":   reason,
		}
		c.logg.Info(c.logg.WithFields(ctx, fields), "order compensated")
	}
	return nil
}

func (c *Compensator) emitCancelled(ctx context.Context, tx *gorm.DB, order *models.Order, reason string, eventType enums.OutboxEventType, at time.Time) error {
	var data any
	switch eventType {
	case enums.EventOrderExpired:
		data = payloads.OrderExpiredEvent{
			OrderID:     order.ID,
			Reference:   order.Reference,
			BuyerUserID: order.BuyerUserID,
			TotalCents:  order.TotalCents,
			ExpiredAt:   at,
		}
	default:
		eventType = enums.EventOrderCancelled
		data = payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			Reference:   order.Reference,
			BuyerUserID: order.BuyerUserID,
			TotalCents:  order.TotalCents,
			Reason:      reason,
			CancelledAt: at,
		}
	}
	return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          data,
		Version:       1,
		OccurredAt:    at,
	})
}
