package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the shared gorm handle embedded by the domain repositories.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB binds the request context to the handle so cancellation propagates
// into queries.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
