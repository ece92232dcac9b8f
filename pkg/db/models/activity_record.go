package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// ActivityRecord is an append-only audit trail entry.
type ActivityRecord struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	Action    string         `gorm:"column:action;not null"`
	Subject   string         `gorm:"column:subject;not null"`
	SubjectID *uuid.UUID     `gorm:"column:subject_id;type:uuid"`
	Metadata  *types.JSONMap `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
