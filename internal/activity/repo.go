package activity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/internal/repo"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
)

// Repository persists audit trail entries. The table is append-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.ActivityRecord) error
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ActivityRecord, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository builds the gorm-backed activity repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(tx)}
}

func (r *gormRepository) Create(ctx context.Context, row *models.ActivityRecord) error {
	return r.DB(ctx).Create(row).Error
}

func (r *gormRepository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ActivityRecord, error) {
	query := r.DB(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.ActivityRecord
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
