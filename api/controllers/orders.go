package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/api/responses"
	"github.com/atelier-nord/storefront-backend/api/validators"
	"github.com/atelier-nord/storefront-backend/internal/orders"
	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
	"github.com/atelier-nord/storefront-backend/pkg/types"
)

type orderResponse struct {
	PublicID         string              `json:"public_id"`
	Status           string              `json:"status"`
	PaymentRail      string              `json:"payment_rail"`
	PaymentReference string              `json:"payment_reference"`
	Currency         string              `json:"currency"`
	SubtotalCents    int64               `json:"subtotal_cents"`
	ShippingCents    int64               `json:"shipping_cents"`
	DiscountCents    int64               `json:"discount_cents"`
	TotalCents       int64               `json:"total_cents"`
	DiscountCode     *string             `json:"discount_code,omitempty"`
	ShippingLine     *types.ShippingLine `json:"shipping_line,omitempty"`
	ServicePoint     *types.ServicePoint `json:"service_point,omitempty"`
	TrackingNumber   *string             `json:"tracking_number,omitempty"`
	TrackingURL      *string             `json:"tracking_url,omitempty"`
	LabelURL         *string             `json:"label_url,omitempty"`
	Items            []orderItemResponse `json:"items,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	FulfilledAt      *time.Time          `json:"fulfilled_at,omitempty"`
}

type orderItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	WeightGrams    int64     `json:"weight_grams"`
	Qty            int64     `json:"qty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		PublicID:         order.PublicID,
		Status:           string(order.Status),
		PaymentRail:      string(order.PaymentRail),
		PaymentReference: order.PaymentReference,
		Currency:         order.Currency,
		SubtotalCents:    order.SubtotalCents,
		ShippingCents:    order.ShippingCents,
		DiscountCents:    order.DiscountCents,
		TotalCents:       order.TotalCents,
		DiscountCode:     order.DiscountCode,
		ShippingLine:     order.ShippingLine,
		ServicePoint:     order.ServicePoint,
		TrackingNumber:   order.TrackingNumber,
		TrackingURL:      order.TrackingURL,
		LabelURL:         order.LabelURL,
		CreatedAt:        order.CreatedAt,
		PaidAt:           order.PaidAt,
		FulfilledAt:      order.FulfilledAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:      item.ProductID,
			Title:          item.Title,
			UnitPriceCents: item.UnitPriceCents,
			WeightGrams:    item.WeightGrams,
			Qty:            item.Qty,
		})
	}
	return resp
}

// OrderDetail returns the order summary the confirmation page shows.
func OrderDetail(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		publicID := chi.URLParam(r, "publicId")
		order, err := repo.FindByPublicID(r.Context(), publicID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminOrderList lists orders for the back office, newest first.
func AdminOrderList(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := orders.ListFilter{Limit: limit, Offset: offset}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order status"))
				return
			}
			filter.Status = &status
		}

		list, err := repo.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(list))
		for i := range list {
			out = append(out, newOrderResponse(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
