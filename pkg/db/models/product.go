package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/enums"
)

// Product is a digital-goods listing. StockCount mirrors the number of
// unallocated assets in the pool and is decremented atomically during
// reservation; it is resynced from the pool after allocation.
type Product struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID         uuid.UUID           `gorm:"column:store_id;type:uuid;not null;index"`
	SellerUserID    uuid.UUID           `gorm:"column:seller_user_id;type:uuid;not null;index"`
	Title           string              `gorm:"column:title;not null"`
	Description     *string             `gorm:"column:description"`
	PriceCents      int64               `gorm:"column:price_cents;not null"`
	DiscountPercent int                 `gorm:"column:discount_percent;not null;default:0"`
	StockCount      int                 `gorm:"column:stock_count;not null;default:0"`
	Status          enums.ProductStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
