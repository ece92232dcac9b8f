package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/enums"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// LedgerTransaction records one money movement. Rows are append-mostly:
// after creation only Status and StatusHistory change, and only along the
// monotonic transitions enforced by enums.TransactionStatus.
type LedgerTransaction struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference        string                  `gorm:"column:reference;not null;uniqueIndex"`
	UserID           uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	CounterpartyID   *uuid.UUID              `gorm:"column:counterparty_id;type:uuid"`
	OrderID          *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	Type             enums.TransactionType   `gorm:"column:type;type:text;not null"`
	Status           enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AmountCents      int64                   `gorm:"column:amount_cents;not null"`
	PlatformFeeCents int64                   `gorm:"column:fee_platform_cents;not null;default:0"`
	PaymentFeeCents  int64                   `gorm:"column:fee_payment_cents;not null;default:0"`
	TaxFeeCents      int64                   `gorm:"column:fee_tax_cents;not null;default:0"`
	NetCents         int64                   `gorm:"column:net_cents;not null"`
	Description      *string                 `gorm:"column:description"`
	Metadata         *types.JSONMap          `gorm:"column:metadata;type:jsonb;serializer:json"`
	StatusHistory    types.StatusHistory     `gorm:"column:status_history;type:jsonb;serializer:json"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
