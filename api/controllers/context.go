package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/api/middleware"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
)

// currentUser reads the authenticated user id placed in context by the auth
// middleware.
func currentUser(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed user identity")
	}
	return id, nil
}
