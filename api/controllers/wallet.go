package controllers

import (
	"net/http"

	"github.com/digimartlabs/digimart-backend/api/responses"
	"github.com/digimartlabs/digimart-backend/api/validators"
	"github.com/digimartlabs/digimart-backend/internal/activity"
	"github.com/digimartlabs/digimart-backend/internal/wallet"
	"github.com/digimartlabs/digimart-backend/pkg/enums"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
)

type depositRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,min=1"`
	SourceID    string `json:"source_id" validate:"required,min=1,max=200"`
	Note        string `json:"note" validate:"max=500"`
}

// Deposit tops up the caller's wallet through the payment gateway.
func Deposit(svc *wallet.Service, audit *activity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req depositRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Deposit(r.Context(), wallet.DepositParams{
			UserID:      userID,
			AmountCents: req.AmountCents,
			SourceID:    req.SourceID,
			Note:        req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		audit.RecordAsync(r.Context(), activity.RecordParams{
			UserID:    userID,
			Action:    "wallet.deposited",
			Subject:   "transaction",
			SubjectID: &row.ID,
		})
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

// Balances returns the caller's balance buckets for the requested role.
func Balances(svc *wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ownerType := enums.OwnerTypeBuyer
		if raw := r.URL.Query().Get("role"); raw != "" {
			parsed, err := enums.ParseOwnerType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown role"))
				return
			}
			ownerType = parsed
		}

		rows, err := svc.Balances(r.Context(), userID, ownerType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
