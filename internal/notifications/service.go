package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/digimartlabs/digimart-backend/pkg/db/models"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
	"github.com/digimartlabs/digimart-backend/pkg/types"
)

// DeliverParams describe one in-app notification.
type DeliverParams struct {
	UserID   uuid.UUID
	Kind     string
	Title    string
	Body     string
	Metadata *types.JSONMap
}

// Service delivers and lists in-app notifications.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the notification service.
func NewService(repo Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Deliver writes one notification.
func (s *Service) Deliver(ctx context.Context, params DeliverParams) (*models.Notification, error) {
	kind := strings.TrimSpace(params.Kind)
	title := strings.TrimSpace(params.Title)
	if kind == "" || title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "kind and title are required")
	}

	row := &models.Notification{
		ID:       uuid.New(),
		UserID:   params.UserID,
		Kind:     kind,
		Title:    title,
		Body:     strings.TrimSpace(params.Body),
		Metadata: params.Metadata,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating notification")
	}
	return row, nil
}

// Page is one slice of a user's notifications.
type Page struct {
	Items      []models.Notification
	NextCursor string
}

// ListByUser returns notifications newest first with cursor paging.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListByUser(ctx, userID, unreadOnly, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing notifications")
	}

	page := &Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// MarkRead stamps the notification as read. Only the owner may mark it.
func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading notification")
	}
	if row.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "notification belongs to another user")
	}
	if err := s.repo.MarkRead(ctx, id, time.Now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking notification read")
	}
	return nil
}

// CountUnread returns the unread badge count.
func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting notifications")
	}
	return count, nil
}
