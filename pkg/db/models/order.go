package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/enums"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// Order is the saga aggregate. Status transitions are driven exclusively by
// conditional updates so concurrent actors (saga vs reaper) cannot both win.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference      string              `gorm:"column:reference;not null;uniqueIndex"`
	BuyerUserID    uuid.UUID           `gorm:"column:buyer_user_id;type:uuid;not null;index"`
	SellerUserID   uuid.UUID           `gorm:"column:seller_user_id;type:uuid;not null;index"`
	Status         enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending';index"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'reserved'"`
	DeliveryStatus enums.DeliveryStatus `gorm:"column:delivery_status;type:text;not null;default:'pending'"`
	TotalCents     int64               `gorm:"column:total_cents;not null"`
	CancelReason   *string             `gorm:"column:cancel_reason"`
	StatusHistory  types.StatusHistory `gorm:"column:status_history;type:jsonb;serializer:json"`
	ExpiresAt      time.Time           `gorm:"column:expires_at;not null;index"`
	Items          []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CompletedAt    *time.Time          `gorm:"column:completed_at"`
	CancelledAt    *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
