package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// OrderItem is one product line on an order. UnitPriceCents is the
// discounted per-unit price captured at reservation time.
type OrderItem struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID             `gorm:"column:product_id;type:uuid;not null;index"`
	SellerUserID    uuid.UUID             `gorm:"column:seller_user_id;type:uuid;not null;index"`
	StoreID         uuid.UUID             `gorm:"column:store_id;type:uuid;not null"`
	Quantity        int                   `gorm:"column:quantity;not null"`
	UnitPriceCents  int64                 `gorm:"column:unit_price_cents;not null"`
	SubtotalCents   int64                 `gorm:"column:subtotal_cents;not null"`
	AllocatedAssets types.AllocatedAssets `gorm:"column:allocated_assets;type:jsonb;serializer:json"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
