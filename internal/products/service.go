package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/internal/assets"
	"github.com/digimartlabs/digimart-backend/internal/stock"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateParams captures the inputs for a new listing.
type CreateParams struct {
	StoreID         uuid.UUID
	SellerUserID    uuid.UUID
	Title           string
	Description     string
	PriceCents      int64
	DiscountPercent int
}

// Service manages listings and keeps stock_count aligned with the asset pool
// when sellers provision new deliverables.
type Service struct {
	runner txRunner
	repo   Repository
	assets *assets.Service
	stock  *stock.Service
	logg   *logger.Logger
}

// NewService wires the product service.
func NewService(runner txRunner, repo Repository, assetSvc *assets.Service, stockSvc *stock.Service, logg *logger.Logger) *Service {
	return &Service{runner: runner, repo: repo, assets: assetSvc, stock: stockSvc, logg: logg}
}

// Create inserts a new listing with an empty pool.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Product, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if params.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if params.DiscountPercent < 0 || params.DiscountPercent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100")
	}

	row := &models.Product{
		ID:              uuid.New(),
		StoreID:         params.StoreID,
		SellerUserID:    params.SellerUserID,
		Title:           title,
		PriceCents:      params.PriceCents,
		DiscountPercent: params.DiscountPercent,
		Status:          enums.ProductStatusActive,
	}
	if desc := strings.TrimSpace(params.Description); desc != "" {
		row.Description = &desc
	}

	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating product")
	}
	return row, nil
}

// Get returns a listing by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	return row, nil
}

// Provision adds deliverables to the pool and resyncs the stock counter in
// the same transaction so the counter never overstates the pool.
func (s *Service) Provision(ctx context.Context, sellerID, productID uuid.UUID, items []assets.ProvisionItem) (*models.Product, error) {
	row, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if row.SellerUserID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another seller")
	}

	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.assets.Provision(ctx, tx, productID, items); err != nil {
			return err
		}
		return s.stock.Resync(ctx, tx, productID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, productID)
}

// SetStatus archives or reactivates a listing.
func (s *Service) SetStatus(ctx context.Context, sellerID, productID uuid.UUID, status enums.ProductStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown product status")
	}
	row, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}
	if row.SellerUserID != sellerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another seller")
	}
	if err := s.repo.Update(ctx, productID, map[string]any{"status": status}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating product status")
	}
	return nil
}

// Page is one slice of a store's catalog.
type Page struct {
	Items      []models.Product
	NextCursor string
}

// ListByStore returns a store's listings newest first with cursor paging.
func (s *Service) ListByStore(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListByStore(ctx, storeID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}

	page := &Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}
