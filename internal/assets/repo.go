package assets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
)

// Repository manages the digital asset pool.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, rows []models.DigitalAsset) error
	ClaimFIFO(ctx context.Context, productID, orderID uuid.UUID, qty int) (int64, error)
	ListByOrderAndProduct(ctx context.Context, orderID, productID uuid.UUID) ([]models.DigitalAsset, error)
	ReleaseByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	CountAvailable(ctx context.Context, productID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an asset repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, rows []models.DigitalAsset) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ClaimFIFO stamps up to qty of the oldest unallocated assets with the order.
// The outer WHERE repeats the order_id IS NULL qual: a concurrent claim that
// wins the same subquery rows re-evaluates it after the lock and skips them,
// so an already-claimed asset is never reassigned. The short claim surfaces
// in the row count and the caller treats it as exhaustion.
func (r *repository) ClaimFIFO(ctx context.Context, productID, orderID uuid.UUID, qty int) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.DigitalAsset{}).
		Where("id IN (?) AND order_id IS NULL", r.db.WithContext(ctx).Model(&models.DigitalAsset{}).
			Select("id").
			Where("product_id = ? AND order_id IS NULL", productID).
			Order("created_at ASC").
			Order("id ASC").
			Limit(qty)).
		Updates(map[string]any{
			"order_id":     orderID,
			"allocated_at": now,
			"updated_at":   now,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ListByOrderAndProduct(ctx context.Context, orderID, productID uuid.UUID) ([]models.DigitalAsset, error) {
	var rows []models.DigitalAsset
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Order("allocated_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ReleaseByOrder returns every asset held by the order to the pool.
func (r *repository) ReleaseByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.DigitalAsset{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"order_id":     nil,
			"allocated_at": nil,
			"updated_at":   time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CountAvailable(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DigitalAsset{}).
		Where("product_id = ? AND order_id IS NULL", productID).
		Count(&count).Error
	return count, err
}
