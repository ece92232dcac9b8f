package activity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// RecordParams describe one audit entry.
type RecordParams struct {
	UserID    uuid.UUID
	Action    string
	Subject   string
	SubjectID *uuid.UUID
	Metadata  *types.JSONMap
}

// Service writes the append-only audit trail. Records are advisory; a failed
// write never fails the business operation, so RecordAsync only logs.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the activity service.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Record appends one audit entry.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, params RecordParams) error {
	action := strings.TrimSpace(params.Action)
	subject := strings.TrimSpace(params.Subject)
	if action == "" || subject == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "action and subject are required")
	}

	row := &models.ActivityRecord{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Action:    action,
		Subject:   subject,
		SubjectID: params.SubjectID,
		Metadata:  params.Metadata,
	}
	bound := s.repo
	if tx != nil {
		bound = s.repo.WithTx(tx)
	}
	if err := bound.Create(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording activity")
	}
	return nil
}

// RecordAsync appends an entry outside any transaction and swallows errors.
func (s *Service) RecordAsync(ctx context.Context, params RecordParams) {
	if err := s.Record(ctx, nil, params); err != nil {
		s.logg.Warn(ctx, "activity record dropped: "+err.Error())
	}
}

// Page is one slice of a user's audit trail.
type Page struct {
	Items      []models.ActivityRecord
	NextCursor string
}

// ListByUser returns the user's activity newest first with cursor paging.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing activity")
	}

	page := &Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}
