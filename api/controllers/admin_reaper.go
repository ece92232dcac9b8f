package controllers

import (
	"context"
	"net/http"

	"github.com/digimartlabs/digimart-backend/api/responses"
	"github.com/digimartlabs/digimart-backend/internal/reaper"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
)

// ReaperStatus reports the expiration loop's control state.
func ReaperStatus(svc *reaper.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Status(r.Context()))
	}
}

// ReaperStart resumes the expiration loop. The loop outlives the request, so
// it runs off a background context.
func ReaperStart(svc *reaper.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.Start(context.Background())
		responses.WriteSuccess(w, svc.Status(r.Context()))
	}
}

// ReaperStop pauses the expiration loop.
func ReaperStop(svc *reaper.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.Stop(r.Context())
		responses.WriteSuccess(w, svc.Status(r.Context()))
	}
}

// ReaperRun triggers one sweep immediately.
func ReaperRun(svc *reaper.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processed, err := svc.ManualProcessExpiredOrders(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"processed": processed})
	}
}
