package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a marketplace account able to buy and, when attached to a store, sell.
type User struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string     `gorm:"column:email;not null;uniqueIndex"`
	DisplayName string     `gorm:"column:display_name;not null"`
	Active      bool       `gorm:"column:active;not null;default:true"`
	LastSeenAt  *time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
