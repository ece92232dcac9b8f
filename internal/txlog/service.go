package txlog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/money"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// CreateParams captures the inputs for a new ledger transaction. The three
// fee components are kept separately; the net amount is derived, never stored
// by the caller.
type CreateParams struct {
	UserID           uuid.UUID
	CounterpartyID   *uuid.UUID
	OrderID          *uuid.UUID
	Type             enums.TransactionType
	AmountCents      int64
	PlatformFeeCents int64
	PaymentFeeCents  int64
	TaxFeeCents      int64
	Description      string
	Metadata         *types.JSONMap
}

// Service owns the append-mostly transaction log. Rows are created pending
// and only ever move forward through the monotonic status transitions.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the transaction log service.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

func (s *Service) boundRepo(tx *gorm.DB) Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx)
}

// NewReference returns a fresh TXN reference.
func NewReference() string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

// Record inserts a pending transaction with its opening history entry.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, params CreateParams) (*models.LedgerTransaction, error) {
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown transaction type")
	}
	if params.PlatformFeeCents < 0 || params.PaymentFeeCents < 0 || params.TaxFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fees cannot be negative")
	}
	net := money.NetAmount(params.AmountCents, params.PlatformFeeCents, params.PaymentFeeCents, params.TaxFeeCents)
	if net < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fees exceed amount")
	}

	now := time.Now()
	row := &models.LedgerTransaction{
		ID:               uuid.New(),
		Reference:        NewReference(),
		UserID:           params.UserID,
		CounterpartyID:   params.CounterpartyID,
		OrderID:          params.OrderID,
		Type:             params.Type,
		Status:           enums.TransactionStatusPending,
		AmountCents:      params.AmountCents,
		PlatformFeeCents: params.PlatformFeeCents,
		PaymentFeeCents:  params.PaymentFeeCents,
		TaxFeeCents:      params.TaxFeeCents,
		NetCents:         net,
		Metadata:         params.Metadata,
		StatusHistory: types.StatusHistory{{
			Status:    string(enums.TransactionStatusPending),
			ChangedAt: now,
		}},
	}
	if desc := strings.TrimSpace(params.Description); desc != "" {
		row.Description = &desc
	}

	if err := s.boundRepo(tx).Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording transaction")
	}
	return row, nil
}

// Transition moves the transaction to the next status, appending to the
// history. Transitions that would move backwards are rejected.
func (s *Service) Transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, next enums.TransactionStatus, note string) (*models.LedgerTransaction, error) {
	repo := s.boundRepo(tx)
	row, err := repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading transaction")
	}

	if !row.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transition not permitted").WithDetails(map[string]any{
			"from": row.Status,
			"to":   next,
		})
	}

	history := append(row.StatusHistory, types.StatusChange{
		Status:    string(next),
		Note:      note,
		ChangedAt: time.Now(),
	})
	updates := map[string]any{
		"status":         next,
		"status_history": history,
		"updated_at":     time.Now(),
	}
	if err := repo.UpdateStatus(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating transaction status")
	}

	row.Status = next
	row.StatusHistory = history
	return row, nil
}

// Get returns a transaction by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading transaction")
	}
	return row, nil
}

// GetByReference returns a transaction by its TXN reference.
func (s *Service) GetByReference(ctx context.Context, reference string) (*models.LedgerTransaction, error) {
	row, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading transaction")
	}
	return row, nil
}

// Page is one slice of a user's transaction history.
type Page struct {
	Items      []models.LedgerTransaction
	NextCursor string
}

// ListByUser returns the user's transactions newest first with cursor paging.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transactions")
	}

	page := &Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}
