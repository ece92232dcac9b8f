package stores

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/internal/repo"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
)

// Repository persists seller storefronts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.Store) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	GetBySlug(ctx context.Context, slug string) (*models.Store, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type gormRepository struct {
	repo.Base
}

// NewRepository builds the gorm-backed store repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(tx)}
}

func (r *gormRepository) Create(ctx context.Context, row *models.Store) error {
	return r.DB(ctx).Create(row).Error
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var row models.Store
	if err := r.DB(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *gormRepository) GetBySlug(ctx context.Context, slug string) (*models.Store, error) {
	var row models.Store
	if err := r.DB(ctx).First(&row, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *gormRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error) {
	var rows []models.Store
	err := r.DB(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *gormRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now()
	return r.DB(ctx).Model(&models.Store{}).Where("id = ?", id).Updates(updates).Error
}
