package stores

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

func newStoresService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := "file:stores_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS stores (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  description TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)

	logg := logger.New(logger.Options{ServiceName: "stores-test", Output: io.Discard})
	return NewService(NewRepository(db), logg), db
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Pixel Vault":          "pixel-vault",
		"  Ada's Keys!  ":      "ada-s-keys",
		"--- Already-Slugged ": "already-slugged",
		"!!!":                  "",
	}
	for input, want := range cases {
		assert.Equal(t, want, Slugify(input), "input %q", input)
	}
}

func TestServiceCreate_derivesSlug(t *testing.T) {
	svc, _ := newStoresService(t)
	ownerID := uuid.New()

	row, err := svc.Create(context.Background(), CreateParams{
		OwnerUserID: ownerID,
		Name:        "  Pixel Vault  ",
		Description: " rare game keys ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Pixel Vault", row.Name)
	assert.Equal(t, "pixel-vault", row.Slug)
	require.NotNil(t, row.Description)
	assert.Equal(t, "rare game keys", *row.Description)
	assert.True(t, row.Active)

	found, err := svc.GetBySlug(context.Background(), " PIXEL-VAULT ")
	require.NoError(t, err)
	assert.Equal(t, row.ID, found.ID)
}

func TestServiceCreate_rejectsUnusableName(t *testing.T) {
	svc, _ := newStoresService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{OwnerUserID: uuid.New(), Name: "   "})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.Create(ctx, CreateParams{OwnerUserID: uuid.New(), Name: "!!!"})
	require.Error(t, err)
}

func TestServiceCreate_duplicateSlugFails(t *testing.T) {
	svc, _ := newStoresService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateParams{OwnerUserID: uuid.New(), Name: "Same Name"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateParams{OwnerUserID: uuid.New(), Name: "Same  Name"})
	require.Error(t, err)
}

func TestServiceListByOwner_returnsOwnStores(t *testing.T) {
	svc, _ := newStoresService(t)
	ctx := context.Background()
	ownerID := uuid.New()

	_, err := svc.Create(ctx, CreateParams{OwnerUserID: ownerID, Name: "Store One"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateParams{OwnerUserID: ownerID, Name: "Store Two"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateParams{OwnerUserID: uuid.New(), Name: "Other Store"})
	require.NoError(t, err)

	rows, err := svc.ListByOwner(ctx, ownerID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestServiceSetActive_onlyOwnerMayToggle(t *testing.T) {
	svc, _ := newStoresService(t)
	ctx := context.Background()
	ownerID := uuid.New()

	row, err := svc.Create(ctx, CreateParams{OwnerUserID: ownerID, Name: "Toggle Me"})
	require.NoError(t, err)

	err = svc.SetActive(ctx, uuid.New(), row.ID, false)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	require.NoError(t, svc.SetActive(ctx, ownerID, row.ID, false))
	reloaded, err := svc.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Active)
}
