package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderCompletedEvent signals the saga finished and assets were delivered.
type OrderCompletedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Reference   string    `json:"reference"`
	BuyerUserID uuid.UUID `json:"buyer_user_id"`
	TotalCents  int64     `json:"total_cents"`
	ItemCount   int       `json:"item_count"`
	CompletedAt time.Time `json:"completed_at"`
}

// OrderCancelledEvent is emitted after compensation releases holds.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Reference   string    `json:"reference"`
	BuyerUserID uuid.UUID `json:"buyer_user_id"`
	TotalCents  int64     `json:"total_cents"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// OrderExpiredEvent reports that the reaper reclaimed an abandoned reservation.
type OrderExpiredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Reference   string    `json:"reference"`
	BuyerUserID uuid.UUID `json:"buyer_user_id"`
	TotalCents  int64     `json:"total_cents"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// DepositCompletedEvent is emitted when a wallet top-up settles.
type DepositCompletedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Reference     string    `json:"reference"`
	UserID        uuid.UUID `json:"user_id"`
	AmountCents   int64     `json:"amount_cents"`
	PaymentID     string    `json:"payment_id,omitempty"`
}

// NotificationRequestedEvent tells downstream systems to alert a user.
type NotificationRequestedEvent struct {
	UserID  uuid.UUID  `json:"user_id"`
	Kind    string     `json:"kind"`
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
}
