package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/api/responses"
	"github.com/digimartlabs/digimart-backend/api/validators"
	"github.com/digimartlabs/digimart-backend/internal/activity"
	"github.com/digimartlabs/digimart-backend/internal/checkout"
	"github.com/digimartlabs/digimart-backend/internal/orders"
	"github.com/digimartlabs/digimart-backend/internal/reviews"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
)

type placeOrderRequest struct {
	Items []placeOrderItem `json:"items" validate:"required,min=1,max=25,dive"`
}

type placeOrderItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// PlaceOrder runs the checkout saga end to end and returns the completed
// order, or the failure that cancelled it. The audit record and the pending
// review placeholders are fire-and-forget side effects.
func PlaceOrder(svc *checkout.Service, audit *activity.Service, reviewSvc *reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkout.ItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
				return
			}
			items = append(items, checkout.ItemInput{ProductID: productID, Quantity: item.Quantity})
		}

		order, err := svc.PlaceOrder(r.Context(), userID, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		audit.RecordAsync(r.Context(), activity.RecordParams{
			UserID:    userID,
			Action:    "order.placed",
			Subject:   "order",
			SubjectID: &order.ID,
		})
		reviewSvc.CreatePendingReviews(r.Context(), order)
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderDetail returns one of the caller's orders.
func OrderDetail(svc *orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Get(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// OrderByReference looks up one of the caller's orders by its ORD reference.
func OrderByReference(svc *orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required"))
			return
		}
		row, err := svc.GetByReference(r.Context(), userID, reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// MyOrders lists the caller's orders.
func MyOrders(svc *orders.Service, logg *logger.Logger) http.HandlerFunc {
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

		page, err := svc.ListByBuyer(r.Context(), userID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
