package reaper

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
	"github.com/digimartlabs/digimart-backend/internal/checkout"
	"github.com/digimartlabs/digimart-backend/internal/ledger"
	"github.com/digimartlabs/digimart-backend/internal/orders"
	"github.com/digimartlabs/digimart-backend/internal/stock"
	"github.com/digimartlabs/digimart-backend/internal/txlog"
	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/metrics"
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

type testRunner struct {
	db *gorm.DB
}

func (r *testRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeLock struct {
	granted  bool
	err      error
	acquires int
	releases int
}

func (l *fakeLock) Acquire(ctx context.Context) (bool, error) {
	l.acquires++
	return l.granted, l.err
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.releases++
	return nil
}

var reaperTables = []string{
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

type reaperFixture struct {
	db     *gorm.DB
	svc    *Service
	lock   *fakeLock
	ledger *ledger.Service
}

func newReaperFixture(t *testing.T, lock *fakeLock) *reaperFixture {
	t.Helper()

	dsn := "file:reaper_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, ddl := range reaperTables {
		require.NoError(t, db.Exec(ddl).Error)
	}

	logg := logger.New(logger.Options{ServiceName: "reaper-test", Output: io.Discard})
	runner := &testRunner{db: db}
	orderRepo := orders.NewRepository(db)
	ledgerSvc := ledger.NewService(ledger.NewRepository(db), logg)
	compensator := checkout.NewCompensator(
		runner,
		orderRepo,
		ledgerSvc,
		txlog.NewService(txlog.NewRepository(db), logg),
		stock.NewService(stock.NewRepository(db), logg),
		assets.NewService(assets.NewRepository(db), logg),
		outbox.NewService(outbox.NewRepository(db), logg),
		metrics.NewSagaMetrics(nil),
		logg,
	)

	svc, err := NewService(ServiceParams{
		Logger:      logg,
		Orders:      orderRepo,
		Compensator: compensator,
		Lock:        lock,
		Metrics:     metrics.NewJobMetrics(nil),
		Config: config.ReaperConfig{
			Interval:      time.Minute,
			BatchSize:     50,
			RetryAttempts: 1,
			RetryBase:     time.Millisecond,
		},
	})
	require.NoError(t, err)

	return &reaperFixture{db: db, svc: svc, lock: lock, ledger: ledgerSvc}
}

// seedHeldOrder persists an order with its funds moved to the reserved bucket
// and its stock already taken.
func seedHeldOrder(t *testing.T, f *reaperFixture, status enums.OrderStatus, expiresAt time.Time) *models.Order {
	t.Helper()
	ctx := context.Background()
	buyerID := uuid.New()
	total := int64(3000)

	buyer := ledger.Account{OwnerID: buyerID, OwnerType: enums.OwnerTypeBuyer}
	require.NoError(t, f.ledger.AddFunds(ctx, nil, buyer, enums.BucketReserved, total))

	product := &models.Product{
		ID:           uuid.New(),
		StoreID:      uuid.New(),
		SellerUserID: uuid.New(),
		Title:        "Held Product",
		PriceCents:   total,
		StockCount:   0,
	}
	require.NoError(t, f.db.Create(product).Error)

	now := time.Now()
	order := &models.Order{
		ID:           uuid.New(),
		Reference:    "ORD-" + uuid.NewString()[:8],
		BuyerUserID:  buyerID,
		SellerUserID: product.SellerUserID,
		Status:       status,
		TotalCents:   total,
		ExpiresAt:    expiresAt,
		StatusHistory: types.StatusHistory{{
			Status:    string(enums.OrderStatusPending),
			ChangedAt: now,
		}},
		Items: []models.OrderItem{{
			ID:             uuid.New(),
			ProductID:      product.ID,
			SellerUserID:   product.SellerUserID,
			StoreID:        product.StoreID,
			Quantity:       1,
			UnitPriceCents: total,
			SubtotalCents:  total,
		}},
	}
	order.Items[0].OrderID = order.ID
	require.NoError(t, f.db.Create(order).Error)
	return order
}

func TestServiceManualProcessExpiredOrders_compensatesLapsedHolds(t *testing.T) {
	f := newReaperFixture(t, &fakeLock{granted: true})
	ctx := context.Background()
	now := time.Now()

	expired := seedHeldOrder(t, f, enums.OrderStatusPending, now.Add(-time.Minute))
	live := seedHeldOrder(t, f, enums.OrderStatusPending, now.Add(time.Hour))
	stranded := seedHeldOrder(t, f, enums.OrderStatusConfirmed, now.Add(-time.Minute))

	processed, err := f.svc.ManualProcessExpiredOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	// both lapsed holds were cancelled and refunded, the confirmed
	// stranded one included
	for _, lapsed := range []*models.Order{expired, stranded} {
		var row models.Order
		require.NoError(t, f.db.First(&row, "id = ?", lapsed.ID).Error)
		assert.Equal(t, enums.OrderStatusCancelled, row.Status)

		buyer := ledger.Account{OwnerID: lapsed.BuyerUserID, OwnerType: enums.OwnerTypeBuyer}
		wallet, err := f.ledger.Balance(ctx, buyer, enums.BucketWallet)
		require.NoError(t, err)
		assert.Equal(t, lapsed.TotalCents, wallet)
	}

	var events []models.OutboxEvent
	require.NoError(t, f.db.Where("event_type = ?", enums.EventOrderExpired).Find(&events).Error)
	require.Len(t, events, 2)

	var row models.Order
	require.NoError(t, f.db.First(&row, "id = ?", live.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, row.Status)
}

func TestServiceManualProcessExpiredOrders_emptySweep(t *testing.T) {
	f := newReaperFixture(t, &fakeLock{granted: true})
	ctx := context.Background()

	processed, err := f.svc.ManualProcessExpiredOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)

	status := f.svc.Status(ctx)
	require.NotNil(t, status.LastSweepAt)
	assert.Empty(t, status.LastError)
	assert.Zero(t, status.PendingOrders)
	assert.Zero(t, status.ExpiredOrders)
}

func TestServiceStatus_reportsBacklog(t *testing.T) {
	f := newReaperFixture(t, &fakeLock{granted: true})
	ctx := context.Background()
	now := time.Now()

	seedHeldOrder(t, f, enums.OrderStatusPending, now.Add(-time.Minute))
	seedHeldOrder(t, f, enums.OrderStatusPending, now.Add(time.Hour))
	seedHeldOrder(t, f, enums.OrderStatusConfirmed, now.Add(-time.Minute))

	status := f.svc.Status(ctx)
	assert.Equal(t, int64(2), status.PendingOrders)
	assert.Equal(t, int64(2), status.ExpiredOrders)
}

func TestServiceLockedSweep_skipsWhenLockDenied(t *testing.T) {
	lock := &fakeLock{granted: false}
	f := newReaperFixture(t, lock)
	seedHeldOrder(t, f, enums.OrderStatusPending, time.Now().Add(-time.Minute))

	processed, err := f.svc.lockedSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, lock.acquires)
	assert.Equal(t, 0, lock.releases)

	var row models.Order
	require.NoError(t, f.db.First(&row).Error)
	assert.Equal(t, enums.OrderStatusPending, row.Status)
}

func TestServiceLockedSweep_releasesAfterSweep(t *testing.T) {
	lock := &fakeLock{granted: true}
	f := newReaperFixture(t, lock)

	_, err := f.svc.lockedSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, lock.acquires)
	assert.Equal(t, 1, lock.releases)
}

func TestServiceStartStop_togglesRunning(t *testing.T) {
	f := newReaperFixture(t, &fakeLock{granted: true})
	ctx := context.Background()

	assert.False(t, f.svc.IsRunning())
	f.svc.Start(ctx)
	assert.True(t, f.svc.IsRunning())
	f.svc.Start(ctx) // second start is a no-op
	f.svc.Stop(ctx)
	assert.False(t, f.svc.IsRunning())
	f.svc.Stop(ctx) // second stop is a no-op
}
