package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
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
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
)

type testRunner struct {
	db *gorm.DB
}

func (r *testRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

var checkoutTables = []string{
	`CREATE TABLE IF NOT EXISTS account_balances (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  owner_type TEXT NOT NULL,
  bucket TEXT NOT NULL,
  amount_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (owner_id, owner_type, bucket)
);`,
	`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL,
  seller_user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  discount_percent INTEGER NOT NULL DEFAULT 0,
  stock_count INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS digital_assets (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  order_id TEXT,
  key TEXT NOT NULL,
  value TEXT NOT NULL,
  allocated_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL UNIQUE,
  buyer_user_id TEXT NOT NULL,
  seller_user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'reserved',
  delivery_status TEXT NOT NULL DEFAULT 'pending',
  total_cents INTEGER NOT NULL,
  cancel_reason TEXT,
  status_history TEXT,
  expires_at DATETIME NOT NULL,
  completed_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  seller_user_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  allocated_assets TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS ledger_transactions (
  id TEXT PRIMARY KEY,
  reference TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  counterparty_id TEXT,
  order_id TEXT,
  type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  amount_cents INTEGER NOT NULL,
  fee_platform_cents INTEGER NOT NULL DEFAULT 0,
  fee_payment_cents INTEGER NOT NULL DEFAULT 0,
  fee_tax_cents INTEGER NOT NULL DEFAULT 0,
  net_cents INTEGER NOT NULL,
  description TEXT,
  metadata TEXT,
  status_history TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
}

type sagaFixture struct {
	db          *gorm.DB
	svc         *Service
	compensator *Compensator
	ledger      *ledger.Service
	orders      orders.Repository
}

func newSagaFixture(t *testing.T) *sagaFixture {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, ddl := range checkoutTables {
		require.NoError(t, db.Exec(ddl).Error)
	}

	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	runner := &testRunner{db: db}
	orderRepo := orders.NewRepository(db)
	ledgerSvc := ledger.NewService(ledger.NewRepository(db), logg)
	txlogSvc := txlog.NewService(txlog.NewRepository(db), logg)
	stockSvc := stock.NewService(stock.NewRepository(db), logg)
	assetSvc := assets.NewService(assets.NewRepository(db), logg)
	outboxSvc := outbox.NewService(outbox.NewRepository(db), logg)
	sagaMetrics := metrics.NewSagaMetrics(nil)

	compensator := NewCompensator(runner, orderRepo, ledgerSvc, txlogSvc, stockSvc, assetSvc, outboxSvc, sagaMetrics, logg)
	svc := NewService(
		runner,
		orderRepo,
		products.NewRepository(db),
		ledgerSvc,
		txlogSvc,
		stockSvc,
		assetSvc,
		outboxSvc,
		compensator,
		config.CheckoutConfig{
			ReservationWindow: 2 * time.Minute,
			MaxItemsPerOrder:  25,
			MaxQtyPerItem:     100,
		},
		sagaMetrics,
		logg,
	)

	return &sagaFixture{
		db:          db,
		svc:         svc,
		compensator: compensator,
		ledger:      ledgerSvc,
		orders:      orderRepo,
	}
}

type productSeed struct {
	priceCents int64
	discount   int
	stock      int
	assetCount int
}

func (f *sagaFixture) seedProduct(t *testing.T, seed productSeed) *models.Product {
	t.Helper()
	row := &models.Product{
		ID:              uuid.New(),
		StoreID:         uuid.New(),
		SellerUserID:    uuid.New(),
		Title:           "Game Key",
		PriceCents:      seed.priceCents,
		DiscountPercent: seed.discount,
		StockCount:      seed.stock,
	}
	require.NoError(t, f.db.Create(row).Error)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < seed.assetCount; i++ {
		asset := &models.DigitalAsset{
			ID:        uuid.New(),
			ProductID: row.ID,
			Key:       "license",
			Value:     "KEY-" + uuid.NewString()[:8],
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, f.db.Create(asset).Error)
	}
	return row
}

func (f *sagaFixture) fundBuyer(t *testing.T, buyerID uuid.UUID, cents int64) {
	t.Helper()
	account := ledger.Account{OwnerID: buyerID, OwnerType: enums.OwnerTypeBuyer}
	require.NoError(t, f.ledger.AddFunds(context.Background(), nil, account, enums.BucketWallet, cents))
}

func (f *sagaFixture) balance(t *testing.T, ownerID uuid.UUID, ownerType enums.OwnerType, bucket enums.BalanceBucket) int64 {
	t.Helper()
	amount, err := f.ledger.Balance(context.Background(), ledger.Account{OwnerID: ownerID, OwnerType: ownerType}, bucket)
	require.NoError(t, err)
	return amount
}

func (f *sagaFixture) productStock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var row models.Product
	require.NoError(t, f.db.First(&row, "id = ?", productID).Error)
	return row.StockCount
}

func (f *sagaFixture) totalFunds(t *testing.T) int64 {
	t.Helper()
	var sum int64
	require.NoError(t, f.db.Model(&models.AccountBalance{}).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&sum).Error)
	return sum
}

func (f *sagaFixture) outboxEvents(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.Where("event_type = ?", eventType).Find(&rows).Error)
	return rows
}

func TestServicePlaceOrder_completesSaga(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()
	buyerID := uuid.New()
	f.fundBuyer(t, buyerID, 10000)
	product := f.seedProduct(t, productSeed{priceCents: 2500, stock: 5, assetCount: 3})

	order, err := f.svc.PlaceOrder(ctx, buyerID, []ItemInput{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusCompleted, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, enums.DeliveryStatusDelivered, order.DeliveryStatus)
	assert.Equal(t, int64(5000), order.TotalCents)
	assert.Equal(t, product.SellerUserID, order.SellerUserID)
	require.NotNil(t, order.CompletedAt)
	require.Len(t, order.Items, 1)
	require.Len(t, order.Items[0].AllocatedAssets, 2)

	// the audit trail survives every conditional status update
	require.Len(t, order.StatusHistory, 3)
	assert.Equal(t, string(enums.OrderStatusPending), order.StatusHistory[0].Status)
	assert.Equal(t, string(enums.OrderStatusConfirmed), order.StatusHistory[1].Status)
	assert.Equal(t, string(enums.OrderStatusCompleted), order.StatusHistory[2].Status)

	assert.Equal(t, int64(5000), f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketWallet))
	assert.Equal(t, int64(0), f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketReserved))
	assert.Equal(t, int64(5000), f.balance(t, product.SellerUserID, enums.OwnerTypeSeller, enums.BucketEarnings))

	// stock resynced to the remaining pool
	assert.Equal(t, 1, f.productStock(t, product.ID))

	completed := f.outboxEvents(t, enums.EventOrderCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, order.ID, completed[0].AggregateID)
	sellerNotes := f.outboxEvents(t, enums.EventNotificationRequested)
	require.Len(t, sellerNotes, 1)

	var txRows []models.LedgerTransaction
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&txRows).Error)
	require.Len(t, txRows, 2)
	for _, row := range txRows {
		assert.Equal(t, enums.TransactionStatusCompleted, row.Status)
	}
}

func TestServicePlaceOrder_appliesDiscount(t *testing.T) {
	f := newSagaFixture(t)
	buyerID := uuid.New()
	f.fundBuyer(t, buyerID, 10000)
	product := f.seedProduct(t, productSeed{priceCents: 1000, discount: 25, stock: 3, assetCount: 3})

	order, err := f.svc.PlaceOrder(context.Background(), buyerID, []ItemInput{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	assert.Equal(t, int64(1500), order.TotalCents)
	assert.Equal(t, int64(750), order.Items[0].UnitPriceCents)
}

func TestServicePlaceOrder_insufficientFundsLeavesNothingBehind(t *testing.T) {
	f := newSagaFixture(t)
	buyerID := uuid.New()
	f.fundBuyer(t, buyerID, 100)
	product := f.seedProduct(t, productSeed{priceCents: 2500, stock: 5, assetCount: 5})

	_, err := f.svc.PlaceOrder(context.Background(), buyerID, []ItemInput{{ProductID: product.ID, Quantity: 1}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientFunds, typed.Code())

	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)
	assert.Equal(t, int64(100), f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketWallet))
	assert.Equal(t, 5, f.productStock(t, product.ID))
}

func TestServicePlaceOrder_insufficientStockRollsBackReservation(t *testing.T) {
	f := newSagaFixture(t)
	buyerID := uuid.New()
	f.fundBuyer(t, buyerID, 10000)
	product := f.seedProduct(t, productSeed{priceCents: 2500, stock: 1, assetCount: 1})

	_, err := f.svc.PlaceOrder(context.Background(), buyerID, []ItemInput{{ProductID: product.ID, Quantity: 2}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	// reservation transaction rolled back, wallet hold included
	assert.Equal(t, int64(10000), f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketWallet))
	assert.Equal(t, int64(0), f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketReserved))

	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)
}

func TestServicePlaceOrder_assetExhaustionCompensates(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()
	buyerID := uuid.New()
	f.fundBuyer(t, buyerID, 10000)
	// stock claims two units but the pool only holds one deliverable
	product := f.seedProduct(t, productSeed{priceCents: 2500, stock: 2, assetCount: 1})

	_, err := f.svc.PlaceOrder(ctx, buyerID, []ItemInput{{ProductID: product.ID, Quantity: 2}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientAssets, typed.Code())

	var order models.Order
	require.NoError(t, f.db.First(&order).Error)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, order.PaymentStatus)
	require.NotNil(t, order.CancelReason)
	require.NotEmpty(t, order.StatusHistory)
	assert.Equal(t, string(enums.OrderStatusCancelled), order.StatusHistory[len(order.StatusHistory)-1].Status)

	assert.Equal(t, int64(10000), f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketWallet))
	assert.Equal(t, int64(0), f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketReserved))
	assert.Equal(t, 2, f.productStock(t, product.ID))

	cancelled := f.outboxEvents(t, enums.EventOrderCancelled)
	require.Len(t, cancelled, 1)

	var refund models.LedgerTransaction
	require.NoError(t, f.db.First(&refund, "type = ?", enums.TransactionTypeRefund).Error)
	assert.Equal(t, order.TotalCents, refund.AmountCents)
	assert.Equal(t, enums.TransactionStatusCompleted, refund.Status)
}

func TestServicePlaceOrder_rejectsOwnProduct(t *testing.T) {
	f := newSagaFixture(t)
	product := f.seedProduct(t, productSeed{priceCents: 1000, stock: 5, assetCount: 5})
	f.fundBuyer(t, product.SellerUserID, 10000)

	_, err := f.svc.PlaceOrder(context.Background(), product.SellerUserID, []ItemInput{{ProductID: product.ID, Quantity: 1}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestServicePlaceOrder_rejectsDuplicateLines(t *testing.T) {
	f := newSagaFixture(t)
	buyerID := uuid.New()
	product := f.seedProduct(t, productSeed{priceCents: 1000, stock: 5, assetCount: 5})

	_, err := f.svc.PlaceOrder(context.Background(), buyerID, []ItemInput{
		{ProductID: product.ID, Quantity: 1},
		{ProductID: product.ID, Quantity: 1},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestServicePlaceOrder_unknownProductIsNotFound(t *testing.T) {
	f := newSagaFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), uuid.New(), []ItemInput{{ProductID: uuid.New(), Quantity: 1}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestServicePlaceOrder_rejectsMultiSellerCart(t *testing.T) {
	f := newSagaFixture(t)
	buyerID := uuid.New()
	f.fundBuyer(t, buyerID, 10000)
	// seedProduct assigns a fresh seller per product
	first := f.seedProduct(t, productSeed{priceCents: 1000, stock: 5, assetCount: 5})
	second := f.seedProduct(t, productSeed{priceCents: 2000, stock: 5, assetCount: 5})

	_, err := f.svc.PlaceOrder(context.Background(), buyerID, []ItemInput{
		{ProductID: first.ID, Quantity: 1},
		{ProductID: second.ID, Quantity: 1},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	// rejected before any reservation landed
	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)
	assert.Equal(t, int64(10000), f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketWallet))
}

func TestServicePlaceOrder_lastUnitGoesToOneBuyer(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()
	product := f.seedProduct(t, productSeed{priceCents: 2500, stock: 1, assetCount: 1})

	winner := uuid.New()
	loser := uuid.New()
	f.fundBuyer(t, winner, 5000)
	f.fundBuyer(t, loser, 5000)

	order, err := f.svc.PlaceOrder(ctx, winner, []ItemInput{{ProductID: product.ID, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)

	_, err = f.svc.PlaceOrder(ctx, loser, []ItemInput{{ProductID: product.ID, Quantity: 1}})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	// the losing buyer's money never moved
	assert.Equal(t, int64(5000), f.balance(t, loser, enums.OwnerTypeBuyer, enums.BucketWallet))
	assert.Equal(t, int64(0), f.balance(t, loser, enums.OwnerTypeBuyer, enums.BucketReserved))
	assert.Equal(t, 0, f.productStock(t, product.ID))

	var orderCount int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)
}

func TestServicePlaceOrder_conservesFundsAcrossOrder(t *testing.T) {
	f := newSagaFixture(t)
	ctx := context.Background()
	buyerID := uuid.New()
	f.fundBuyer(t, buyerID, 10000)
	product := f.seedProduct(t, productSeed{priceCents: 2500, stock: 5, assetCount: 5})

	before := f.totalFunds(t)

	order, err := f.svc.PlaceOrder(ctx, buyerID, []ItemInput{{ProductID: product.ID, Quantity: 2}})
	require.NoError(t, err)

	// the order total moved from buyer wallet to seller earnings; nothing
	// was created or destroyed along the way
	assert.Equal(t, before, f.totalFunds(t))
	assert.Equal(t, before-order.TotalCents, f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketWallet))
	assert.Equal(t, int64(0), f.balance(t, buyerID, enums.OwnerTypeBuyer, enums.BucketReserved))
	assert.Equal(t, order.TotalCents, f.balance(t, product.SellerUserID, enums.OwnerTypeSeller, enums.BucketEarnings))
}
