package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// Repository manages persistence for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByReference(ctx context.Context, reference string) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	CountByStatus(ctx context.Context, status enums.OrderStatus) (int64, error)
	CountExpired(ctx context.Context, cutoff time.Time) (int64, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, updates map[string]any) (int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateItemAssets(ctx context.Context, itemID uuid.UUID, assets types.AllocatedAssets) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var row models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*models.Order, error) {
	var row models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Where("reference = ?", reference).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items").Where("buyer_user_id = ?", buyerID)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Order
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// reapableStatuses are the non-terminal statuses still holding buyer funds.
// An order stranded in confirmed (crash between confirm and settle) must be
// compensated just like a lapsed pending one.
var reapableStatuses = []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed}

// ListExpired returns non-terminal orders whose reservation window has
// lapsed, oldest first.
func (r *repository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("status IN ? AND expires_at <= ?", reapableStatuses, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountByStatus(ctx context.Context, status enums.OrderStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// CountExpired reports how many non-terminal orders are past their window.
func (r *repository) CountExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("status IN ? AND expires_at <= ?", reapableStatuses, cutoff).
		Count(&count).Error
	return count, err
}

// UpdateStatusIf moves the order to the target status only when its current
// status is one of from. The row count tells the caller whether it won the
// transition; zero means another actor already moved the order.
func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, updates map[string]any) (int64, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateItemAssets(ctx context.Context, itemID uuid.UUID, assets types.AllocatedAssets) error {
	return r.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"allocated_assets": assets,
			"updated_at":       time.Now(),
		}).Error
}
