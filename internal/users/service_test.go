package users

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
)

func newUsersService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  last_seen_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)

	logg := logger.New(logger.Options{ServiceName: "users-test", Output: io.Discard})
	return NewService(NewRepository(db), logg), db
}

func TestServiceRegister_normalizesEmail(t *testing.T) {
	svc, _ := newUsersService(t)

	row, err := svc.Register(context.Background(), RegisterParams{
		Email:       "  Ada@Example.COM ",
		DisplayName: " Ada ",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", row.Email)
	assert.Equal(t, "Ada", row.DisplayName)
	assert.True(t, row.Active)

	found, err := svc.GetByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, row.ID, found.ID)
}

func TestServiceRegister_rejectsBadInput(t *testing.T) {
	svc, _ := newUsersService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterParams{Email: "not-an-email", DisplayName: "x"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.Register(ctx, RegisterParams{Email: "a@b.c", DisplayName: "  "})
	require.Error(t, err)
}

func TestServiceRegister_duplicateEmailFails(t *testing.T) {
	svc, _ := newUsersService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterParams{Email: "dup@example.com", DisplayName: "One"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterParams{Email: "DUP@example.com", DisplayName: "Two"})
	require.Error(t, err)

	still, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "One", still.DisplayName)
}

func TestServiceGet_unknownUser(t *testing.T) {
	svc, _ := newUsersService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestServiceTouchLastSeen_stampsActivity(t *testing.T) {
	svc, _ := newUsersService(t)
	ctx := context.Background()

	row, err := svc.Register(ctx, RegisterParams{Email: "seen@example.com", DisplayName: "Seen"})
	require.NoError(t, err)
	require.Nil(t, row.LastSeenAt)

	svc.TouchLastSeen(ctx, row.ID)

	reloaded, err := svc.Get(ctx, row.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastSeenAt)
}

func TestServiceDeactivate_disablesAccount(t *testing.T) {
	svc, _ := newUsersService(t)
	ctx := context.Background()

	row, err := svc.Register(ctx, RegisterParams{Email: "off@example.com", DisplayName: "Off"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, row.ID))

	reloaded, err := svc.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Active)

	err = svc.Deactivate(ctx, uuid.New())
	require.Error(t, err)
}
