package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// Notification is an in-app message delivered to a user.
type Notification struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	Kind      string         `gorm:"column:kind;not null"`
	Title     string         `gorm:"column:title;not null"`
	Body      string         `gorm:"column:body;not null"`
	Metadata  *types.JSONMap `gorm:"column:metadata;type:jsonb;serializer:json"`
	ReadAt    *time.Time     `gorm:"column:read_at"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
