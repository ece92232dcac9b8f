package reviews

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/internal/orders"
	dbpkg "github.com/digimartlabs/digimart-backend/pkg/db"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
)

// SubmitParams are the inputs for a new review.
type SubmitParams struct {
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	BuyerUserID uuid.UUID
	Rating      int
	Comment     string
}

// Service accepts reviews from buyers who completed an order containing the
// product. One review per buyer per product.
type Service struct {
	repo   Repository
	orders orders.Repository
	logg   *logger.Logger
}

// NewService wires the review service.
func NewService(repo Repository, ordersRepo orders.Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, orders: ordersRepo, logg: logg}
}

// CreatePendingReviews seeds one placeholder per order item after a
// completed purchase. The write is best-effort: failures are logged and
// swallowed so a review hiccup never surfaces on the order path. Items whose
// buyer/product pair already has a review are skipped.
func (s *Service) CreatePendingReviews(ctx context.Context, order *models.Order) {
	if order == nil || order.Status != enums.OrderStatusCompleted {
		return
	}
	rows := make([]models.Review, 0, len(order.Items))
	seen := map[uuid.UUID]bool{}
	for _, item := range order.Items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		rows = append(rows, models.Review{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			BuyerUserID: order.BuyerUserID,
			Status:      enums.ReviewStatusPending,
		})
	}
	if err := s.repo.CreatePending(ctx, rows); err != nil {
		fields := map[string]any{"order_id": order.ID.String()}
		s.logg.Error(s.logg.WithFields(ctx, fields), "seeding pending reviews failed", err)
	}
}

// Submit validates eligibility and records the review. When a pending
// placeholder exists it is published in place; otherwise a published row is
// created directly.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*models.Review, error) {
	if params.Rating < 1 || params.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	order, err := s.orders.GetByID(ctx, params.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order.BuyerUserID != params.BuyerUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another buyer")
	}
	if order.Status != enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed orders can be reviewed")
	}

	found := false
	for _, item := range order.Items {
		if item.ProductID == params.ProductID {
			found = true
			break
		}
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not part of the order")
	}

	var comment *string
	if trimmed := strings.TrimSpace(params.Comment); trimmed != "" {
		comment = &trimmed
	}

	published, err := s.repo.PublishPending(ctx, params.BuyerUserID, params.ProductID, params.Rating, comment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "publishing review")
	}
	if published > 0 {
		row, err := s.repo.GetByBuyerAndProduct(ctx, params.BuyerUserID, params.ProductID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading review")
		}
		return row, nil
	}

	row := &models.Review{
		ID:          uuid.New(),
		OrderID:     params.OrderID,
		ProductID:   params.ProductID,
		BuyerUserID: params.BuyerUserID,
		Status:      enums.ReviewStatusPublished,
		Rating:      params.Rating,
		Comment:     comment,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_review_buyer_product") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating review")
	}
	return row, nil
}

// Page is one slice of a product's reviews.
type Page struct {
	Items      []models.Review
	NextCursor string
}

// ListByProduct returns a product's reviews newest first with cursor paging.
func (s *Service) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListByProduct(ctx, productID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing reviews")
	}

	page := &Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// Summary aggregates the product's rating.
type Summary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// ProductSummary returns the average rating and review count.
func (s *Service) ProductSummary(ctx context.Context, productID uuid.UUID) (*Summary, error) {
	avg, count, err := s.repo.AverageRating(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregating reviews")
	}
	return &Summary{Average: avg, Count: count}, nil
}
