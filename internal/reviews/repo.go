package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/digimartlabs/digimart-backend/internal/repo"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
)

// Repository persists buyer reviews. Read paths only surface published rows;
// pending placeholders exist solely to invite a review after a purchase.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.Review) error
	CreatePending(ctx context.Context, rows []models.Review) error
	PublishPending(ctx context.Context, buyerID, productID uuid.UUID, rating int, comment *string) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	GetByBuyerAndProduct(ctx context.Context, buyerID, productID uuid.UUID) (*models.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error)
	AverageRating(ctx context.Context, productID uuid.UUID) (float64, int64, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository builds the gorm-backed review repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(tx)}
}

func (r *gormRepository) Create(ctx context.Context, row *models.Review) error {
	return r.DB(ctx).Create(row).Error
}

// CreatePending inserts placeholder rows, skipping any buyer/product pair
// that already has a review.
func (r *gormRepository) CreatePending(ctx context.Context, rows []models.Review) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "buyer_user_id"}, {Name: "product_id"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// PublishPending upgrades the buyer's placeholder in place. Zero rows means
// there was no pending placeholder to claim.
func (r *gormRepository) PublishPending(ctx context.Context, buyerID, productID uuid.UUID, rating int, comment *string) (int64, error) {
	res := r.DB(ctx).Model(&models.Review{}).
		Where("buyer_user_id = ? AND product_id = ? AND status = ?", buyerID, productID, enums.ReviewStatusPending).
		Updates(map[string]any{
			"status":     enums.ReviewStatusPublished,
			"rating":     rating,
			"comment":    comment,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var row models.Review
	if err := r.DB(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *gormRepository) GetByBuyerAndProduct(ctx context.Context, buyerID, productID uuid.UUID) (*models.Review, error) {
	var row models.Review
	if err := r.DB(ctx).First(&row, "buyer_user_id = ? AND product_id = ?", buyerID, productID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *gormRepository) ListByProduct(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	query := r.DB(ctx).Where("product_id = ? AND status = ?", productID, enums.ReviewStatusPublished)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Review
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *gormRepository) AverageRating(ctx context.Context, productID uuid.UUID) (float64, int64, error) {
	var result struct {
		Avg   float64
		Count int64
	}
	err := r.DB(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Where("product_id = ? AND status = ?", productID, enums.ReviewStatusPublished).
		Scan(&result).Error
	return result.Avg, result.Count, err
}
