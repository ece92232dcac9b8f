package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/enums"
)

// Review is buyer feedback on a completed order item. A row starts life as a
// pending placeholder seeded at order completion and becomes published when
// the buyer submits a rating; placeholders carry rating 0.
type Review struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_review_buyer_product"`
	BuyerUserID uuid.UUID          `gorm:"column:buyer_user_id;type:uuid;not null;uniqueIndex:idx_review_buyer_product"`
	Status      enums.ReviewStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Rating      int                `gorm:"column:rating;not null;default:0"`
	Comment     *string            `gorm:"column:comment"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
