package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
)

// Line names one product quantity in a reservation.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Service guards product stock counters. Reservations decrement each line
// conditionally; when one line fails, lines already taken are released so the
// reservation is all-or-nothing.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the stock service.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

func (s *Service) boundRepo(tx *gorm.DB) Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx)
}

// Reserve takes stock for every line or none of them.
func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	repo := s.boundRepo(tx)
	taken := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			s.release(ctx, repo, taken)
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		affected, err := repo.DecrementIf(ctx, line.ProductID, line.Quantity)
		if err != nil {
			s.release(ctx, repo, taken)
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserving stock")
		}
		if affected == 0 {
			s.release(ctx, repo, taken)
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "product out of stock").WithDetails(map[string]any{
				"product_id": line.ProductID.String(),
				"quantity":   line.Quantity,
			})
		}
		taken = append(taken, line)
	}
	return nil
}

// Release returns previously reserved stock.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, lines []Line) error {
	repo := s.boundRepo(tx)
	var firstErr error
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if err := repo.Increment(ctx, line.ProductID, line.Quantity); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, firstErr, "releasing stock")
	}
	return nil
}

// Resync aligns the counter with the unallocated asset pool.
func (s *Service) Resync(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	if err := s.boundRepo(tx).SetFromPool(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resyncing stock")
	}
	return nil
}

func (s *Service) release(ctx context.Context, repo Repository, taken []Line) {
	for _, line := range taken {
		if err := repo.Increment(ctx, line.ProductID, line.Quantity); err != nil && s.logg != nil {
			fields := map[string]any{
				"product_id": line.ProductID.String(),
				"quantity":   line.Quantity,
			}
			s.logg.Error(s.logg.WithFields(ctx, fields), "stock release after partial reserve failed", err)
		}
	}
}
