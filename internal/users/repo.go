package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/internal/repo"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
)

// Repository persists marketplace accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type gormRepository struct {
	repo.Base
}

// NewRepository builds the gorm-backed user repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(tx)}
}

func (r *gormRepository) Create(ctx context.Context, row *models.User) error {
	return r.DB(ctx).Create(row).Error
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var row models.User
	if err := r.DB(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *gormRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var row models.User
	if err := r.DB(ctx).First(&row, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *gormRepository) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_seen_at": at, "updated_at": time.Now()}).Error
}

func (r *gormRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.DB(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": active, "updated_at": time.Now()}).Error
}
