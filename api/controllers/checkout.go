package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v84"

	"github.com/atelier-nord/storefront-backend/api/responses"
	"github.com/atelier-nord/storefront-backend/api/validators"
	"github.com/atelier-nord/storefront-backend/internal/catalog"
	"github.com/atelier-nord/storefront-backend/internal/settlement"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
	"github.com/atelier-nord/storefront-backend/pkg/types"
)

// IntentCreator is the Stripe surface the card checkout endpoints need.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error)
}

// WalletOrders is the PayPal surface the wallet checkout endpoints need.
type WalletOrders interface {
	CreateOrder(ctx context.Context, amountCents int64, currency string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureOrderResponse, error)
}

type quoteRequest struct {
	Lines            []catalog.CartLine  `json:"lines" validate:"required,min=1,dive"`
	ShippingOptionID *uuid.UUID          `json:"shipping_option_id,omitempty"`
	DiscountCode     *string             `json:"discount_code,omitempty"`
	Country          string              `json:"country" validate:"omitempty,len=2"`
	ServicePoint     *types.ServicePoint `json:"service_point,omitempty"`
}

func (q quoteRequest) toInput() settlement.QuoteInput {
	return settlement.QuoteInput{
		Lines:            q.Lines,
		ShippingOptionID: q.ShippingOptionID,
		DiscountCode:     q.DiscountCode,
		Country:          q.Country,
		ServicePoint:     q.ServicePoint,
	}
}

type settleRequest struct {
	quoteRequest
	PaymentReference string                   `json:"payment_reference"`
	Customer         settlement.CustomerInput `json:"customer" validate:"required"`
	ShippingAddress  *types.Address           `json:"shipping_address,omitempty"`
}

func (s settleRequest) toInput(rail enums.PaymentRail) settlement.SettleInput {
	customer := s.Customer
	customer.Email = validators.SanitizeString(customer.Email, 254)
	customer.FirstName = validators.SanitizeString(customer.FirstName, 100)
	customer.LastName = validators.SanitizeString(customer.LastName, 100)

	return settlement.SettleInput{
		QuoteInput:       s.quoteRequest.toInput(),
		Rail:             rail,
		PaymentReference: validators.SanitizeString(s.PaymentReference, 255),
		Customer:         customer,
		ShippingAddress:  s.ShippingAddress,
	}
}

type quoteResponse struct {
	SubtotalCents int64               `json:"subtotal_cents"`
	ShippingCents int64               `json:"shipping_cents"`
	DiscountCents int64               `json:"discount_cents"`
	TotalCents    int64               `json:"total_cents"`
	Currency      string              `json:"currency"`
	DiscountCode  *string             `json:"discount_code,omitempty"`
	ShippingLine  *types.ShippingLine `json:"shipping_line,omitempty"`
	WeightGrams   int64               `json:"weight_grams"`
}

func newQuoteResponse(quote *settlement.Quote) quoteResponse {
	return quoteResponse{
		SubtotalCents: quote.Breakdown.SubtotalCents,
		ShippingCents: quote.Breakdown.ShippingCents,
		DiscountCents: quote.Breakdown.DiscountCents,
		TotalCents:    quote.Breakdown.TotalCents,
		Currency:      quote.Currency,
		DiscountCode:  quote.DiscountCode,
		ShippingLine:  quote.ShippingLine,
		WeightGrams:   quote.WeightGrams,
	}
}

// CheckoutQuote prices a cart without touching any payment provider.
func CheckoutQuote(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}

type paymentInitResponse struct {
	PaymentReference string        `json:"payment_reference"`
	ClientSecret     string        `json:"client_secret,omitempty"`
	ApproveURL       string        `json:"approve_url,omitempty"`
	Quote            quoteResponse `json:"quote"`
}

// StripeIntent prices the cart and registers a matching payment intent so
// the client can collect the card. The intent id comes back on confirm as
// the payment reference.
func StripeIntent(svc settlement.Service, intents IntentCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || intents == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "card payments unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := intents.CreatePaymentIntent(r.Context(), quote.Breakdown.TotalCents, quote.Currency, map[string]string{
			"source": "storefront-checkout",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating payment intent"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentInitResponse{
			PaymentReference: intent.ID,
			ClientSecret:     intent.ClientSecret,
			Quote:            newQuoteResponse(quote),
		})
	}
}

// StripeConfirm settles a card payment after the client confirmed the
// intent.
func StripeConfirm(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return settleHandler(svc, enums.PaymentRailCard, logg)
}

// PayPalOrder prices the cart and registers a wallet order for approval.
func PayPalOrder(svc settlement.Service, wallets WalletOrders, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || wallets == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet payments unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := wallets.CreateOrder(r.Context(), quote.Breakdown.TotalCents, quote.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating wallet order"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentInitResponse{
			PaymentReference: order.ID,
			ApproveURL:       approveLink(order),
			Quote:            newQuoteResponse(quote),
		})
	}
}

// PayPalCapture captures an approved wallet order and settles it. A capture
// that already happened is not an error; settlement verifies the
// authoritative provider state either way.
func PayPalCapture(svc settlement.Service, wallets WalletOrders, logg *logger.Logger) http.HandlerFunc {
	settle := settleHandler(svc, enums.PaymentRailWallet, logg)
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || wallets == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet payments unavailable"))
			return
		}

		reference := peekPaymentReference(r)
		if reference != "" {
			if _, err := wallets.CaptureOrder(r.Context(), reference); err != nil && logg != nil {
				logg.Warn(r.Context(), fmt.Sprintf("wallet capture call failed: %v", err))
			}
		}
		settle(w, r)
	}
}

// CheckoutManual settles an invoice order with no provider involved. The
// generated invoice reference comes back in the response.
func CheckoutManual(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return settleHandler(svc, enums.PaymentRailManual, logg)
}

func settleHandler(svc settlement.Service, rail enums.PaymentRail, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		var payload settleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Settle(r.Context(), payload.toInput(rail))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, newOrderResponse(result.Order))
	}
}

// peekPaymentReference reads the reference ahead of the settle handler's
// own decode, leaving the body replayable.
func peekPaymentReference(r *http.Request) string {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var probe struct {
		PaymentReference string `json:"payment_reference"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.PaymentReference
}

func approveLink(order *paypal.Order) string {
	for _, link := range order.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}
