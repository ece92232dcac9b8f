package txlog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
)

// Repository manages persistence for ledger transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.LedgerTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error)
	GetByReference(ctx context.Context, reference string) (*models.LedgerTransaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.LedgerTransaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, row *models.LedgerTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error) {
	var row models.LedgerTransaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*models.LedgerTransaction, error) {
	var row models.LedgerTransaction
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.LedgerTransaction, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.LedgerTransaction
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.LedgerTransaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}
