package wallet

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/internal/ledger"
	"github.com/digimartlabs/digimart-backend/internal/txlog"
	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
	"github.com/digimartlabs/digimart-backend/pkg/square"
)

type testRunner struct {
	db *gorm.DB
}

func (r *testRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeGateway struct {
	payment       *sq.Payment
	createErr     error
	getErr        error
	createdParams []square.PaymentCreateParams
}

func (g *fakeGateway) CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	g.createdParams = append(g.createdParams, params)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.payment, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	if g.getErr != nil {
		return nil, g.getErr
	}
	return g.payment, nil
}

func ptr[T any](v T) *T { return &v }

var walletTables = []string{
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

func newWalletFixture(t *testing.T, gateway *fakeGateway) (*Service, *gorm.DB, *ledger.Service) {
	t.Helper()

	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, ddl := range walletTables {
		require.NoError(t, db.Exec(ddl).Error)
	}

	logg := logger.New(logger.Options{ServiceName: "wallet-test", Output: io.Discard})
	ledgerSvc := ledger.NewService(ledger.NewRepository(db), logg)
	svc := NewService(
		&testRunner{db: db},
		ledgerSvc,
		txlog.NewService(txlog.NewRepository(db), logg),
		outbox.NewService(outbox.NewRepository(db), logg),
		gateway,
		config.SquareConfig{Currency: "USD", LocationID: "LOC1"},
		logg,
	)
	return svc, db, ledgerSvc
}

func TestServiceDeposit_chargesAndCredits(t *testing.T) {
	gateway := &fakeGateway{payment: &sq.Payment{ID: ptr("pay_123"), Status: ptr("COMPLETED")}}
	svc, db, ledgerSvc := newWalletFixture(t, gateway)
	ctx := context.Background()
	userID := uuid.New()

	row, err := svc.Deposit(ctx, DepositParams{
		UserID:      userID,
		AmountCents: 5000,
		SourceID:    "cnon:card-nonce",
		Note:        "top up",
	})
	require.NoError(t, err)

	assert.Equal(t, enums.TransactionStatusCompleted, row.Status)
	assert.Equal(t, enums.TransactionTypeDeposit, row.Type)
	assert.Equal(t, int64(5000), row.AmountCents)
	require.NotNil(t, row.Metadata)
	assert.Equal(t, "pay_123", (*row.Metadata)["payment_id"])

	wallet, err := ledgerSvc.Balance(ctx, ledger.Account{OwnerID: userID, OwnerType: enums.OwnerTypeBuyer}, enums.BucketWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), wallet)

	require.Len(t, gateway.createdParams, 1)
	assert.Equal(t, int64(5000), gateway.createdParams[0].AmountCents)
	assert.Equal(t, "USD", gateway.createdParams[0].Currency)
	assert.Equal(t, userID.String(), gateway.createdParams[0].ReferenceID)

	var events []models.OutboxEvent
	require.NoError(t, db.Where("event_type = ?", enums.EventDepositCompleted).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, row.ID, events[0].AggregateID)
}

func TestServiceDeposit_gatewayFailureWritesNothing(t *testing.T) {
	gateway := &fakeGateway{createErr: errors.New("card declined")}
	svc, db, ledgerSvc := newWalletFixture(t, gateway)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Deposit(ctx, DepositParams{UserID: userID, AmountCents: 5000, SourceID: "cnon:card-nonce"})
	require.Error(t, err)

	wallet, err := ledgerSvc.Balance(ctx, ledger.Account{OwnerID: userID, OwnerType: enums.OwnerTypeBuyer}, enums.BucketWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet)

	var count int64
	require.NoError(t, db.Model(&models.LedgerTransaction{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestServiceDeposit_validatesInput(t *testing.T) {
	svc, _, _ := newWalletFixture(t, &fakeGateway{})

	_, err := svc.Deposit(context.Background(), DepositParams{UserID: uuid.New(), AmountCents: 0, SourceID: "src"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.Deposit(context.Background(), DepositParams{UserID: uuid.New(), AmountCents: 100})
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestServicePaymentStatus_readsGatewayState(t *testing.T) {
	gateway := &fakeGateway{payment: &sq.Payment{ID: ptr("pay_9"), Status: ptr("APPROVED")}}
	svc, _, _ := newWalletFixture(t, gateway)

	status, err := svc.PaymentStatus(context.Background(), "pay_9")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", status)

	_, err = svc.PaymentStatus(context.Background(), "")
	require.Error(t, err)
}
