package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/digimartlabs/digimart-backend/pkg/db"
	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
)

// RegisterParams are the inputs for a new account.
type RegisterParams struct {
	Email       string
	DisplayName string
}

// Service manages marketplace accounts.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the user service.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Register creates an account. Emails are unique case-insensitively.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	name := strings.TrimSpace(params.DisplayName)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name is required")
	}

	row := &models.User{
		ID:          uuid.New(),
		Email:       email,
		DisplayName: name,
		Active:      true,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_users_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating user")
	}
	return row, nil
}

// Get returns an account by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	return row, nil
}

// GetByEmail returns an account by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	return row, nil
}

// TouchLastSeen stamps activity on the account. Failures are logged, not
// surfaced.
func (s *Service) TouchLastSeen(ctx context.Context, id uuid.UUID) {
	if err := s.repo.TouchLastSeen(ctx, id, time.Now()); err != nil {
		s.logg.Warn(ctx, "failed to stamp last_seen_at: "+err.Error())
	}
}

// Deactivate disables an account.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivating user")
	}
	return nil
}
