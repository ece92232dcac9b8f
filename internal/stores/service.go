package stores

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/digimartlabs/digimart-backend/pkg/db"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// CreateParams are the inputs for a new storefront.
type CreateParams struct {
	OwnerUserID uuid.UUID
	Name        string
	Description string
}

// Service manages seller storefronts.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the store service.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Slugify lowercases the name and collapses runs of non-alphanumerics.
func Slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(slug, "-")
}

// Create opens a storefront for the owner. Slugs are derived from the name
// and must be unique.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Store, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name is required")
	}
	slug := Slugify(name)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name must contain letters or digits")
	}

	row := &models.Store{
		ID:          uuid.New(),
		OwnerUserID: params.OwnerUserID,
		Name:        name,
		Slug:        slug,
		Active:      true,
	}
	if desc := strings.TrimSpace(params.Description); desc != "" {
		row.Description = &desc
	}

	if err := s.repo.Create(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_stores_slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "store slug already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating store")
	}
	return row, nil
}

// Get returns a storefront by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading store")
	}
	return row, nil
}

// GetBySlug returns a storefront by its slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Store, error) {
	row, err := s.repo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading store")
	}
	return row, nil
}

// ListByOwner returns every storefront the user owns.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error) {
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing stores")
	}
	return rows, nil
}

// SetActive toggles the storefront. Only the owner may change it.
func (s *Service) SetActive(ctx context.Context, ownerID, storeID uuid.UUID, active bool) error {
	row, err := s.Get(ctx, storeID)
	if err != nil {
		return err
	}
	if row.OwnerUserID != ownerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "store belongs to another user")
	}
	if err := s.repo.Update(ctx, storeID, map[string]any{"active": active}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating store")
	}
	return nil
}
