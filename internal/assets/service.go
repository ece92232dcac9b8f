package assets

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// ProvisionItem is one deliverable to add to a product's pool.
type ProvisionItem struct {
	Key   string
	Value string
}

// Service allocates deliverables from the pool to orders. Claims are FIFO by
// creation time and an order either gets the full quantity or nothing.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the asset allocator.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

func (s *Service) boundRepo(tx *gorm.DB) Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx)
}

// Provision adds new deliverables to the product's pool.
func (s *Service) Provision(ctx context.Context, tx *gorm.DB, productID uuid.UUID, items []ProvisionItem) (int, error) {
	rows := make([]models.DigitalAsset, 0, len(items))
	for _, item := range items {
		key := strings.TrimSpace(item.Key)
		value := strings.TrimSpace(item.Value)
		if key == "" || value == "" {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "asset key and value are required")
		}
		rows = append(rows, models.DigitalAsset{
			ID:        uuid.New(),
			ProductID: productID,
			Key:       key,
			Value:     value,
		})
	}
	if len(rows) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "no assets provided")
	}
	if err := s.boundRepo(tx).Insert(ctx, rows); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "provisioning assets")
	}
	return len(rows), nil
}

// Allocate claims qty assets for the order and returns their immutable
// snapshots. A short claim is undone before reporting exhaustion.
func (s *Service) Allocate(ctx context.Context, tx *gorm.DB, productID, orderID uuid.UUID, qty int) (types.AllocatedAssets, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.boundRepo(tx)

	claimed, err := repo.ClaimFIFO(ctx, productID, orderID, qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claiming assets")
	}
	if claimed < int64(qty) {
		if claimed > 0 {
			if _, releaseErr := repo.ReleaseByOrder(ctx, orderID); releaseErr != nil && s.logg != nil {
				fields := map[string]any{
					"product_id": productID.String(),
					"order_id":   orderID.String(),
				}
				s.logg.Error(s.logg.WithFields(ctx, fields), "undoing short asset claim failed", releaseErr)
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientAssets, "not enough assets in pool").WithDetails(map[string]any{
			"product_id": productID.String(),
			"requested":  qty,
			"available":  claimed,
		})
	}

	rows, err := repo.ListByOrderAndProduct(ctx, orderID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading allocated assets")
	}

	snapshots := make(types.AllocatedAssets, 0, len(rows))
	for _, row := range rows {
		snapshot := types.AllocatedAsset{
			AssetID: row.ID.String(),
			Key:     row.Key,
			Value:   row.Value,
		}
		if row.AllocatedAt != nil {
			snapshot.AllocatedAt = *row.AllocatedAt
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// Release returns all assets held by the order to the pool.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	released, err := s.boundRepo(tx).ReleaseByOrder(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing assets")
	}
	return released, nil
}

// CountAvailable reports the unallocated pool size for a product.
func (s *Service) CountAvailable(ctx context.Context, productID uuid.UUID) (int64, error) {
	count, err := s.repo.CountAvailable(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting assets")
	}
	return count, nil
}
