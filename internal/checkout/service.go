package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/internal/assets"
	"github.com/digimartlabs/digimart-backend/internal/ledger"
	"github.com/digimartlabs/digimart-backend/internal/orders"
	"github.com/digimartlabs/digimart-backend/internal/products"
	"github.com/digimartlabs/digimart-backend/internal/stock"
	"github.com/digimartlabs/digimart-backend/internal/txlog"
	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/metrics"
	"github.com/digimartlabs/digimart-backend/pkg/money"
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
	"github.com/digimartlabs/digimart-backend/pkg/outbox/payloads"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ItemInput is one requested product line.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// Service runs the order saga. The happy path is reserve, confirm, settle,
// complete; every write along the way is a conditional persisted operation so
// a concurrent reaper or a second request can never double-spend a hold.
type Service struct {
	runner      txRunner
	orders      orders.Repository
	products    products.Repository
	ledger      *ledger.Service
	txlog       *txlog.Service
	stock       *stock.Service
	assets      *assets.Service
	outbox      *outbox.Service
	compensator *Compensator
	cfg         config.CheckoutConfig
	metrics     *metrics.SagaMetrics
	logg        *logger.Logger
}

// NewService wires the checkout saga.
func NewService(
	runner txRunner,
	orderRepo orders.Repository,
	productRepo products.Repository,
	ledgerSvc *ledger.Service,
	txlogSvc *txlog.Service,
	stockSvc *stock.Service,
	assetSvc *assets.Service,
	outboxSvc *outbox.Service,
	compensator *Compensator,
	cfg config.CheckoutConfig,
	sagaMetrics *metrics.SagaMetrics,
	logg *logger.Logger,
) *Service {
	return &Service{
		runner:      runner,
		orders:      orderRepo,
		products:    productRepo,
		ledger:      ledgerSvc,
		txlog:       txlogSvc,
		stock:       stockSvc,
		assets:      assetSvc,
		outbox:      outboxSvc,
		compensator: compensator,
		cfg:         cfg,
		metrics:     sagaMetrics,
		logg:        logg,
	}
}

type pricedLine struct {
	product        models.Product
	quantity       int
	unitPriceCents int64
	subtotalCents  int64
}

// PlaceOrder runs the full saga and returns the completed order. On any
// failure after the reservation landed, the shared compensator unwinds the
// holds before the error is returned.
func (s *Service) PlaceOrder(ctx context.Context, buyerID uuid.UUID, items []ItemInput) (*models.Order, error) {
	started := time.Now()

	lines, totalCents, err := s.priceLines(ctx, buyerID, items)
	if err != nil {
		s.metrics.ObserveRun("rejected", time.Since(started))
		return nil, err
	}

	order, err := s.reserve(ctx, buyerID, lines, totalCents)
	if err != nil {
		s.metrics.ObserveRun("reserve_failed", time.Since(started))
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if err := s.confirm(ctx, order); err != nil {
		s.metrics.ObserveRun("expired", time.Since(started))
		return nil, err
	}

	if err := s.settle(ctx, order, lines); err != nil {
		if cancelErr := s.compensator.Cancel(ctx, order, failureReason(err), enums.EventOrderCancelled); cancelErr != nil {
			s.logg.Error(ctx, "compensation after failed settle also failed", cancelErr)
		}
		s.metrics.ObserveRun("cancelled", time.Since(started))
		return nil, err
	}

	s.metrics.ObserveRun("completed", time.Since(started))
	completed, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return order, nil
	}
	return completed, nil
}

func (s *Service) priceLines(ctx context.Context, buyerID uuid.UUID, items []ItemInput) ([]pricedLine, int64, error) {
	if len(items) == 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	if len(items) > s.cfg.MaxItemsPerOrder {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "too many items in order")
	}

	ids := make([]uuid.UUID, 0, len(items))
	seen := map[uuid.UUID]bool{}
	for _, item := range items {
		if item.Quantity <= 0 || item.Quantity > s.cfg.MaxQtyPerItem {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity outside allowed range")
		}
		if seen[item.ProductID] {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order")
		}
		seen[item.ProductID] = true
		ids = append(ids, item.ProductID)
	}

	rows, err := s.products.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}
	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	lines := make([]pricedLine, 0, len(items))
	var total int64
	var sellerID uuid.UUID
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not available").WithDetails(map[string]any{
				"product_id": item.ProductID.String(),
			})
		}
		if product.SellerUserID == buyerID {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "cannot buy your own product")
		}
		if sellerID == uuid.Nil {
			sellerID = product.SellerUserID
		} else if sellerID != product.SellerUserID {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "order items must belong to a single seller")
		}
		unit := money.DiscountedUnitPrice(product.PriceCents, product.DiscountPercent)
		subtotal := money.LineTotal(unit, item.Quantity)
		lines = append(lines, pricedLine{
			product:        product,
			quantity:       item.Quantity,
			unitPriceCents: unit,
			subtotalCents:  subtotal,
		})
		total += subtotal
	}
	return lines, total, nil
}

// reserve is the saga's first persisted step: wallet funds move into the
// reserved hold, stock is taken, and the pending order lands, all in one
// transaction.
func (s *Service) reserve(ctx context.Context, buyerID uuid.UUID, lines []pricedLine, totalCents int64) (*models.Order, error) {
	now := time.Now()
	order := &models.Order{
		ID:           uuid.New(),
		Reference:    orders.NewReference(),
		BuyerUserID:  buyerID,
		SellerUserID: lines[0].product.SellerUserID,
		Status:       enums.OrderStatusPending,
		TotalCents:   totalCents,
		ExpiresAt:    now.Add(s.cfg.ReservationWindow),
		StatusHistory: types.StatusHistory{{
			Status:    string(enums.OrderStatusPending),
			ChangedAt: now,
		}},
	}
	for _, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      line.product.ID,
			SellerUserID:   line.product.SellerUserID,
			StoreID:        line.product.StoreID,
			Quantity:       line.quantity,
			UnitPriceCents: line.unitPriceCents,
			SubtotalCents:  line.subtotalCents,
		})
	}

	buyer := ledger.Account{OwnerID: buyerID, OwnerType: enums.OwnerTypeBuyer}
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.TransferFunds(ctx, tx, buyer, enums.BucketWallet, buyer, enums.BucketReserved, totalCents); err != nil {
			return err
		}
		stockLines := make([]stock.Line, 0, len(lines))
		for _, line := range lines {
			stockLines = append(stockLines, stock.Line{ProductID: line.product.ID, Quantity: line.quantity})
		}
		if err := s.stock.Reserve(ctx, tx, stockLines); err != nil {
			return err
		}
		return s.orders.WithTx(tx).Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// confirm claims the order out of the reaper's reach. Losing the claim means
// the reservation window lapsed and the reaper already compensated.
func (s *Service) confirm(ctx context.Context, order *models.Order) error {
	now := time.Now()
	history := append(order.StatusHistory, types.StatusChange{
		Status:    string(enums.OrderStatusConfirmed),
		ChangedAt: now,
	})
	affected, err := s.orders.UpdateStatusIf(ctx, order.ID,
		[]enums.OrderStatus{enums.OrderStatusPending},
		enums.OrderStatusConfirmed,
		map[string]any{"status_history": history})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirming order")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation expired before confirmation")
	}
	order.Status = enums.OrderStatusConfirmed
	order.StatusHistory = history
	return nil
}

// settle moves the hold to the sellers, allocates the deliverables, and marks
// the order completed, all in one transaction.
func (s *Service) settle(ctx context.Context, order *models.Order, lines []pricedLine) error {
	buyer := ledger.Account{OwnerID: order.BuyerUserID, OwnerType: enums.OwnerTypeBuyer}
	orderID := order.ID

	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		for _, line := range lines {
			seller := ledger.Account{OwnerID: line.product.SellerUserID, OwnerType: enums.OwnerTypeSeller}
			if err := s.ledger.TransferFunds(ctx, tx, buyer, enums.BucketReserved, seller, enums.BucketEarnings, line.subtotalCents); err != nil {
				return err
			}
			sellerID := line.product.SellerUserID
			saleTx, err := s.txlog.Record(ctx, tx, txlog.CreateParams{
				UserID:         sellerID,
				CounterpartyID: &order.BuyerUserID,
				OrderID:        &orderID,
				Type:           enums.TransactionTypeTransfer,
				AmountCents:    line.subtotalCents,
				Description:    "sale of " + line.product.Title,
			})
			if err != nil {
				return err
			}
			if _, err := s.txlog.Transition(ctx, tx, saleTx.ID, enums.TransactionStatusCompleted, "earnings settled"); err != nil {
				return err
			}
		}

		purchaseTx, err := s.txlog.Record(ctx, tx, txlog.CreateParams{
			UserID:      order.BuyerUserID,
			OrderID:     &orderID,
			Type:        enums.TransactionTypePurchase,
			AmountCents: order.TotalCents,
			Description: "order " + order.Reference,
		})
		if err != nil {
			return err
		}
		if _, err := s.txlog.Transition(ctx, tx, purchaseTx.ID, enums.TransactionStatusCompleted, "purchase settled"); err != nil {
			return err
		}

		orderRepo := s.orders.WithTx(tx)
		for i, line := range lines {
			allocated, err := s.assets.Allocate(ctx, tx, line.product.ID, order.ID, line.quantity)
			if err != nil {
				return err
			}
			if err := orderRepo.UpdateItemAssets(ctx, order.Items[i].ID, allocated); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording allocated assets")
			}
			if err := s.stock.Resync(ctx, tx, line.product.ID); err != nil {
				return err
			}
		}

		now := time.Now()
		history := append(order.StatusHistory, types.StatusChange{
			Status:    string(enums.OrderStatusCompleted),
			ChangedAt: now,
		})
		affected, err := orderRepo.UpdateStatusIf(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusConfirmed},
			enums.OrderStatusCompleted,
			map[string]any{
				"payment_status":  enums.PaymentStatusPaid,
				"delivery_status": enums.DeliveryStatusDelivered,
				"completed_at":    now,
				"status_history":  history,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "completing order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order left confirmed state during settlement")
		}

		for _, line := range lines {
			sellerID := line.product.SellerUserID
			err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventNotificationRequested,
				AggregateType: enums.AggregateNotification,
				AggregateID:   order.ID,
				Data: payloads.NotificationRequestedEvent{
					UserID:  sellerID,
					Kind:    "sale",
					Title:   "You made a sale",
					Body:    line.product.Title + " sold on order " + order.Reference,
					OrderID: &orderID,
				},
				Version:    1,
				OccurredAt: now,
			})
			if err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCompletedEvent{
				OrderID:     order.ID,
				Reference:   order.Reference,
				BuyerUserID: order.BuyerUserID,
				TotalCents:  order.TotalCents,
				ItemCount:   len(order.Items),
				CompletedAt: now,
			},
			Version:    1,
			OccurredAt: now,
		})
	})
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	if err != nil {
		return err.Error()
	}
	return "settlement failed"
}
