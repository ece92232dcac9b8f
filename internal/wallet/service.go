package wallet

import (
	"context"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/internal/ledger"
	"github.com/digimartlabs/digimart-backend/internal/txlog"
	"github.com/digimartlabs/digimart-backend/pkg/config"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/outbox"
	"github.com/digimartlabs/digimart-backend/pkg/outbox/payloads"
	"github.com/digimartlabs/digimart-backend/pkg/square"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// paymentGateway is the slice of the Square client the wallet needs.
type paymentGateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// DepositParams captures a wallet top-up request.
type DepositParams struct {
	UserID      uuid.UUID
	AmountCents int64
	SourceID    string
	Note        string
}

// Service funds buyer wallets through the payment gateway. The charge runs
// first; the wallet credit and the transaction row land together only after
// the gateway reports the payment.
type Service struct {
	runner  txRunner
	ledger  *ledger.Service
	txlog   *txlog.Service
	outbox  *outbox.Service
	gateway paymentGateway
	cfg     config.SquareConfig
	logg    *logger.Logger
}

// NewService wires the wallet service.
func NewService(runner txRunner, ledgerSvc *ledger.Service, txlogSvc *txlog.Service, outboxSvc *outbox.Service, gateway paymentGateway, cfg config.SquareConfig, logg *logger.Logger) *Service {
	return &Service{
		runner:  runner,
		ledger:  ledgerSvc,
		txlog:   txlogSvc,
		outbox:  outboxSvc,
		gateway: gateway,
		cfg:     cfg,
		logg:    logg,
	}
}

// Deposit charges the source and credits the wallet.
func (s *Service) Deposit(ctx context.Context, params DepositParams) (*models.LedgerTransaction, error) {
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if params.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source is required")
	}

	payment, err := s.gateway.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents: params.AmountCents,
		Currency:    s.cfg.Currency,
		LocationID:  s.cfg.LocationID,
		SourceID:    params.SourceID,
		Note:        params.Note,
		ReferenceID: params.UserID.String(),
	})
	if err != nil {
		return nil, err
	}

	paymentID := ""
	if payment != nil && payment.GetID() != nil {
		paymentID = *payment.GetID()
	}

	var deposit *models.LedgerTransaction
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		metadata := types.JSONMap{"payment_id": paymentID}
		row, err := s.txlog.Record(ctx, tx, txlog.CreateParams{
			UserID:      params.UserID,
			Type:        enums.TransactionTypeDeposit,
			AmountCents: params.AmountCents,
			Description: "wallet deposit",
			Metadata:    &metadata,
		})
		if err != nil {
			return err
		}
		buyer := ledger.Account{OwnerID: params.UserID, OwnerType: enums.OwnerTypeBuyer}
		if err := s.ledger.AddFunds(ctx, tx, buyer, enums.BucketWallet, params.AmountCents); err != nil {
			return err
		}
		if _, err := s.txlog.Transition(ctx, tx, row.ID, enums.TransactionStatusCompleted, "payment settled"); err != nil {
			return err
		}
		deposit = row
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDepositCompleted,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   row.ID,
			Data: payloads.DepositCompletedEvent{
				TransactionID: row.ID,
				Reference:     row.Reference,
				UserID:        params.UserID,
				AmountCents:   params.AmountCents,
				PaymentID:     paymentID,
			},
			Version: 1,
		})
	})
	if err != nil {
		// The charge went through but the credit did not land. Surface the
		// payment id so support can reconcile.
		fields := map[string]any{
			"user_id":      params.UserID.String(),
			"payment_id":   paymentID,
			"amount_cents": params.AmountCents,
		}
		s.logg.Error(s.logg.WithFields(ctx, fields), "wallet credit failed after gateway charge", err)
		return nil, err
	}

	deposit.Status = enums.TransactionStatusCompleted
	return deposit, nil
}

// PaymentStatus looks up the gateway state of a payment.
func (s *Service) PaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if paymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if payment == nil || payment.GetStatus() == nil {
		return "", nil
	}
	return *payment.GetStatus(), nil
}

// Balances returns all buckets for the user.
func (s *Service) Balances(ctx context.Context, userID uuid.UUID, ownerType enums.OwnerType) ([]models.AccountBalance, error) {
	return s.ledger.Balances(ctx, ledger.Account{OwnerID: userID, OwnerType: ownerType})
}
