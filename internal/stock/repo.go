package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
)

// Repository manages the stock counter on products.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	DecrementIf(ctx context.Context, productID uuid.UUID, qty int) (int64, error)
	Increment(ctx context.Context, productID uuid.UUID, qty int) error
	SetFromPool(ctx context.Context, productID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// DecrementIf takes qty units only when the counter covers them. Zero rows
// affected means the product is missing or under-stocked.
func (r *repository) DecrementIf(ctx context.Context, productID uuid.UUID, qty int) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock_count >= ?", productID, qty).
		Updates(map[string]any{
			"stock_count": gorm.Expr("stock_count - ?", qty),
			"updated_at":  time.Now(),
		})
	return res.RowsAffected, res.Error
}

// Increment returns qty units to the counter.
func (r *repository) Increment(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock_count": gorm.Expr("stock_count + ?", qty),
			"updated_at":  time.Now(),
		}).Error
}

// SetFromPool resyncs the counter with the number of unallocated assets.
func (r *repository) SetFromPool(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock_count": gorm.Expr("(SELECT COUNT(*) FROM digital_assets WHERE digital_assets.product_id = ? AND digital_assets.order_id IS NULL)", productID),
			"updated_at":  time.Now(),
		}).Error
}
