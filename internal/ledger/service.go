package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
)

// Account identifies one balance owner.
type Account struct {
	OwnerID   uuid.UUID
	OwnerType enums.OwnerType
}

// Service applies balance movements. All debits are conditional on the
// current balance so a bucket can never go negative, and transfers re-credit
// the source bucket when the destination write fails.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the ledger service.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

func (s *Service) boundRepo(tx *gorm.DB) Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx)
}

// Balance returns a single bucket for the owner. A missing row reads as zero.
func (s *Service) Balance(ctx context.Context, account Account, bucket enums.BalanceBucket) (int64, error) {
	row, err := s.repo.Get(ctx, account.OwnerID, account.OwnerType, bucket)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading balance")
	}
	return row.AmountCents, nil
}

// Balances returns every bucket held by the owner.
func (s *Service) Balances(ctx context.Context, account Account) ([]models.AccountBalance, error) {
	rows, err := s.repo.ListByOwner(ctx, account.OwnerID, account.OwnerType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing balances")
	}
	return rows, nil
}

// AddFunds credits the bucket, creating it on first use.
func (s *Service) AddFunds(ctx context.Context, tx *gorm.DB, account Account, bucket enums.BalanceBucket, amount int64) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if err := s.boundRepo(tx).AddCents(ctx, account.OwnerID, account.OwnerType, bucket, amount); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "crediting balance")
	}
	return nil
}

// SubtractFunds debits the bucket only when the balance covers the amount.
func (s *Service) SubtractFunds(ctx context.Context, tx *gorm.DB, account Account, bucket enums.BalanceBucket, amount int64) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	affected, err := s.boundRepo(tx).SubtractCentsIf(ctx, account.OwnerID, account.OwnerType, bucket, amount)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "debiting balance")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance does not cover amount").WithDetails(map[string]any{
			"bucket":       bucket,
			"amount_cents": amount,
		})
	}
	return nil
}

// TransferFunds moves the amount between buckets, possibly across owners.
// The source debit runs first; when the destination credit fails the source
// is re-credited so money is never destroyed mid-transfer.
func (s *Service) TransferFunds(ctx context.Context, tx *gorm.DB, from Account, fromBucket enums.BalanceBucket, to Account, toBucket enums.BalanceBucket, amount int64) error {
	if err := s.SubtractFunds(ctx, tx, from, fromBucket, amount); err != nil {
		return err
	}
	if err := s.AddFunds(ctx, tx, to, toBucket, amount); err != nil {
		if recreditErr := s.boundRepo(tx).AddCents(ctx, from.OwnerID, from.OwnerType, fromBucket, amount); recreditErr != nil {
			if s.logg != nil {
				fields := map[string]any{
					"owner_id":     from.OwnerID.String(),
					"bucket":       fromBucket,
					"amount_cents": amount,
				}
				s.logg.Error(s.logg.WithFields(ctx, fields), "re-credit after failed transfer leg failed", recreditErr)
			}
			return pkgerrors.Wrap(pkgerrors.CodeRollbackFailed, recreditErr, "transfer re-credit failed")
		}
		return err
	}
	return nil
}
