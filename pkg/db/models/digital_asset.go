package models

import (
	"time"

	"github.com/google/uuid"
)

// DigitalAsset is one deliverable unit in a product's pool. A nil OrderID
// means the asset is still available; allocation claims rows FIFO by
// created_at and stamps the claiming order.
type DigitalAsset struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID   uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	OrderID     *uuid.UUID `gorm:"column:order_id;type:uuid;index"`
	Key         string     `gorm:"column:key;not null"`
	Value       string     `gorm:"column:value;not null"`
	AllocatedAt *time.Time `gorm:"column:allocated_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
