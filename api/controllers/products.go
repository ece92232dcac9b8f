package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/api/responses"
	"github.com/digimartlabs/digimart-backend/api/validators"
	"github.com/digimartlabs/digimart-backend/internal/assets"
	"github.com/digimartlabs/digimart-backend/internal/products"
	"github.com/digimartlabs/digimart-backend/internal/stores"
	pkgerrors "github.com/digimartlabs/digimart-backend/pkg/errors"
	"github.com/digimartlabs/digimart-backend/pkg/logger"
	"github.com/digimartlabs/digimart-backend/pkg/pagination"
)

type createProductRequest struct {
	StoreID         string `json:"store_id" validate:"required,uuid"`
	Title           string `json:"title" validate:"required,min=1,max=200"`
	Description     string `json:"description" validate:"max=5000"`
	PriceCents      int64  `json:"price_cents" validate:"min=0"`
	DiscountPercent int    `json:"discount_percent" validate:"min=0,max=100"`
}

type provisionAssetsRequest struct {
	Items []provisionAssetItem `json:"items" validate:"required,min=1,max=500,dive"`
}

type provisionAssetItem struct {
	Key   string `json:"key" validate:"required,min=1,max=200"`
	Value string `json:"value" validate:"required,min=1"`
}

// CreateProduct adds a listing to one of the caller's stores.
func CreateProduct(svc *products.Service, storeSvc *stores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createProductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := uuid.Parse(req.StoreID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid store id"))
			return
		}

		store, err := storeSvc.Get(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if store.OwnerUserID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store belongs to another user"))
			return
		}

		row, err := svc.Create(r.Context(), products.CreateParams{
			StoreID:         storeID,
			SellerUserID:    userID,
			Title:           req.Title,
			Description:     req.Description,
			PriceCents:      req.PriceCents,
			DiscountPercent: req.DiscountPercent,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

// ProductDetail returns one listing.
func ProductDetail(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// ProvisionAssets loads deliverables into a listing's pool.
func ProvisionAssets(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req provisionAssetsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]assets.ProvisionItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, assets.ProvisionItem{Key: item.Key, Value: item.Value})
		}

		row, err := svc.Provision(r.Context(), userID, productID, items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// StoreProducts lists a store's catalog.
func StoreProducts(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := validators.ParsePathUUID(chi.URLParam(r, "storeId"), "storeId")
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

		page, err := svc.ListByStore(r.Context(), storeID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
