package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/api/responses"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
)

const userIDHeader = "X-User-Id"

// RequireUser extracts the caller identity set upstream by the gateway. The
// header must carry a UUID; requests without one are rejected.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(userIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required"))
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed user identity"))
				return
			}

			ctx := WithUserID(r.Context(), userID.String())
			if logg != nil {
				ctx = logg.WithBuyerID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
