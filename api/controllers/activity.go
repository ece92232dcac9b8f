package controllers

import (
	"net/http"
	"strings"

	"github.com/digimartlabs/digimart-backend/api/responses"
	"github.com/digimartlabs/digimart-backend/api/validators"
	"github.com/digimartlabs/digimart-backend/internal/activity"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
)

// MyActivity lists the caller's audit trail.
func MyActivity(svc *activity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		page, err := svc.ListByUser(r.Context(), userID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
