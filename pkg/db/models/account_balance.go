package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/enums"
)

// AccountBalance holds one bucket of funds for one owner. AmountCents is
// never allowed below zero; all debits are conditional updates guarded by
// the current balance.
type AccountBalance struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID     uuid.UUID          `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:idx_balance_owner_bucket"`
	OwnerType   enums.OwnerType    `gorm:"column:owner_type;type:text;not null;uniqueIndex:idx_balance_owner_bucket"`
	Bucket      enums.BalanceBucket `gorm:"column:bucket;type:text;not null;uniqueIndex:idx_balance_owner_bucket"`
	AmountCents int64              `gorm:"column:amount_cents;not null;default:0"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
