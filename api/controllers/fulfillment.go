package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-nord/storefront-backend/api/responses"
	"github.com/atelier-nord/storefront-backend/api/validators"
	"github.com/atelier-nord/storefront-backend/internal/fulfillment"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
)

type shippingQuotesRequest struct {
	// Weight is an optional operator override in kilograms.
	Weight string `json:"weight,omitempty"`
}

type purchaseLabelRequest struct {
	MethodID int64  `json:"method_id,omitempty"`
	Weight   string `json:"weight,omitempty"`
}

// AdminShippingQuotes returns ranked carrier rates for a paid order.
func AdminShippingQuotes(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment unavailable"))
			return
		}

		var payload shippingQuotesRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		set, err := svc.Quotes(r.Context(), fulfillment.QuotesInput{
			PublicID:       chi.URLParam(r, "publicId"),
			WeightOverride: payload.Weight,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, set)
	}
}

// AdminPurchaseLabel buys the shipping label for a paid order.
func AdminPurchaseLabel(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment unavailable"))
			return
		}

		var payload purchaseLabelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.PurchaseLabel(r.Context(), fulfillment.PurchaseInput{
			PublicID:       chi.URLParam(r, "publicId"),
			MethodID:       payload.MethodID,
			WeightOverride: payload.Weight,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}
