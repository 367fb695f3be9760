// Package fulfillment turns a paid order into a shipped parcel: it resolves
// sender and recipient addresses, aggregates parcel weight, fetches carrier
// rate quotes, and purchases the shipping label. A carrier failure leaves
// the order untouched; tracking and label fields are written only after the
// purchase succeeded.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/internal/orders"
	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
	"github.com/atelier-nord/storefront-backend/pkg/metrics"
	"github.com/atelier-nord/storefront-backend/pkg/redis"
	"github.com/atelier-nord/storefront-backend/pkg/sendcloud"
	"github.com/atelier-nord/storefront-backend/pkg/units"
)

type carrier interface {
	SenderAddresses(ctx context.Context) ([]sendcloud.SenderAddress, error)
	ShippingMethods(ctx context.Context, toCountry, weightKilograms string) ([]sendcloud.ShippingMethod, error)
	CreateParcel(ctx context.Context, req sendcloud.ParcelRequest) (*sendcloud.Parcel, error)
}

// RateQuote is one eligible carrier rate for an order's parcel.
type RateQuote struct {
	MethodID   int64  `json:"method_id"`
	Name       string `json:"name"`
	Carrier    string `json:"carrier"`
	PriceCents int64  `json:"price_cents"`
	// Default marks the cheapest eligible quote, chosen when the
	// operator does not pick a method explicitly.
	Default bool `json:"default"`
}

// QuotesInput requests rate quotes for an order's parcel.
type QuotesInput struct {
	PublicID string
	// WeightOverride replaces the aggregated snapshot weight. Free-form
	// operator input in kilograms, comma or period decimals.
	WeightOverride string
}

// QuoteSet is the ranked rate quotes plus the weight they were priced for.
type QuoteSet struct {
	Quotes      []RateQuote `json:"quotes"`
	WeightGrams int64       `json:"weight_grams"`
}

// PurchaseInput requests a label purchase for an order.
type PurchaseInput struct {
	PublicID string
	// MethodID selects a specific quote. Zero means the cheapest
	// eligible method.
	MethodID       int64
	WeightOverride string
}

// Service orchestrates carrier quotes and label purchases for paid orders.
type Service interface {
	Quotes(ctx context.Context, in QuotesInput) (*QuoteSet, error)
	PurchaseLabel(ctx context.Context, in PurchaseInput) (*models.Order, error)
}

type service struct {
	carrier    carrier
	ordersRepo orders.Repository
	cache      redis.QuoteCache
	cacheTTL   time.Duration
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
}

// NewService builds the fulfillment service. The quote cache is optional;
// without it every quote request goes to the carrier.
func NewService(
	carrierClient carrier,
	ordersRepo orders.Repository,
	cache redis.QuoteCache,
	cacheTTL time.Duration,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if carrierClient == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		carrier:    carrierClient,
		ordersRepo: ordersRepo,
		cache:      cache,
		cacheTTL:   cacheTTL,
		metrics:    checkoutMetrics,
		logg:       logg,
	}, nil
}

// Quotes returns the eligible carrier rates for the order's parcel, ranked
// by price ascending. Quotes are cached briefly by destination and weight
// because the carrier's rate endpoint is slow; a purchase never reads the
// cache.
func (s *service) Quotes(ctx context.Context, in QuotesInput) (*QuoteSet, error) {
	order, err := s.loadPaidOrder(ctx, in.PublicID)
	if err != nil {
		return nil, err
	}
	recipient, err := requireRecipient(order)
	if err != nil {
		return nil, err
	}
	weightGrams, err := resolveWeight(order, in.WeightOverride)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cachedQuotes(ctx, recipient.Country, recipient.PostalCode, weightGrams); ok {
		return &QuoteSet{Quotes: cached, WeightGrams: weightGrams}, nil
	}

	quotes, err := s.fetchQuotes(ctx, order, recipient.Country, weightGrams)
	if err != nil {
		return nil, err
	}
	s.storeQuotes(ctx, recipient.Country, recipient.PostalCode, weightGrams, quotes)
	return &QuoteSet{Quotes: quotes, WeightGrams: weightGrams}, nil
}

// PurchaseLabel buys a shipping label for a paid order and writes the
// shipment result back. All preconditions are checked before the carrier is
// asked to create anything; a failed carrier call mutates no order field.
func (s *service) PurchaseLabel(ctx context.Context, in PurchaseInput) (*models.Order, error) {
	ctx = s.logg.WithOrderID(ctx, in.PublicID)

	order, err := s.loadPaidOrder(ctx, in.PublicID)
	if err != nil {
		return nil, err
	}

	sender, err := s.resolveSender(ctx)
	if err != nil {
		s.metrics.IncLabelFailure()
		return nil, err
	}
	recipient, err := requireRecipient(order)
	if err != nil {
		return nil, err
	}
	if order.DeliveryType() == enums.DeliveryTypeServicePoint && !order.ServicePoint.Present() {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "order has no service point captured").
			WithDetails(map[string]any{"field": "service_point"})
	}
	weightGrams, err := resolveWeight(order, in.WeightOverride)
	if err != nil {
		return nil, err
	}

	quotes, err := s.fetchQuotes(ctx, order, recipient.Country, weightGrams)
	if err != nil {
		s.metrics.IncLabelFailure()
		return nil, err
	}
	selected, err := selectQuote(quotes, in.MethodID)
	if err != nil {
		return nil, err
	}

	parcel, err := s.carrier.CreateParcel(ctx, s.parcelRequest(order, sender, recipient, selected, weightGrams))
	if err != nil {
		s.metrics.IncLabelFailure()
		s.logg.Warn(ctx, fmt.Sprintf("label purchase failed: %v", err))
		return nil, err
	}

	update := orders.FulfillmentUpdate{
		ShipmentID:     parcel.ID,
		TrackingNumber: parcel.TrackingNumber,
		TrackingURL:    parcel.TrackingURL,
		LabelURL:       parcel.LabelURL(),
		DeliveryStatus: normalizeDeliveryStatus(parcel.Status.Message),
		FulfilledAt:    time.Now().UTC(),
	}
	if err := s.ordersRepo.MarkFulfilled(ctx, order.ID, update); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording purchased label")
	}
	s.metrics.IncLabelSuccess()
	s.logg.Info(ctx, fmt.Sprintf("label purchased: shipment %d, %s", parcel.ID, update.TrackingNumber))

	return s.ordersRepo.FindByPublicID(ctx, in.PublicID)
}

func (s *service) loadPaidOrder(ctx context.Context, publicID string) (*models.Order, error) {
	if strings.TrimSpace(publicID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order public id required")
	}
	order, err := s.ordersRepo.FindByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	switch order.Status {
	case enums.OrderStatusPaid:
		return order, nil
	case enums.OrderStatusFulfilled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already fulfilled")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid")
	}
}

func (s *service) resolveSender(ctx context.Context) (*sendcloud.SenderAddress, error) {
	addresses, err := s.carrier.SenderAddresses(ctx)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "no sender address configured with the carrier")
	}
	sender := addresses[0]
	if !sender.Complete() {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "carrier sender address is incomplete").
			WithDetails(map[string]any{"sender_address_id": sender.ID})
	}
	return &sender, nil
}

func (s *service) fetchQuotes(ctx context.Context, order *models.Order, country string, weightGrams int64) ([]RateQuote, error) {
	methods, err := s.carrier.ShippingMethods(ctx, country, units.GramsToKilogramString(weightGrams))
	if err != nil {
		return nil, err
	}

	wantServicePoint := order.DeliveryType() == enums.DeliveryTypeServicePoint
	quotes := make([]RateQuote, 0, len(methods))
	for _, method := range methods {
		if method.RequiresServicePoint() != wantServicePoint {
			continue
		}
		quotes = append(quotes, RateQuote{
			MethodID:   method.ID,
			Name:       method.Name,
			Carrier:    method.Carrier,
			PriceCents: priceCents(method.Price),
		})
	}
	if len(quotes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "no eligible shipping method for destination").
			WithDetails(map[string]any{"country": country, "weight_grams": weightGrams})
	}
	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].PriceCents < quotes[j].PriceCents })
	quotes[0].Default = true
	return quotes, nil
}

func (s *service) parcelRequest(order *models.Order, sender *sendcloud.SenderAddress, recipient *recipientAddress, selected RateQuote, weightGrams int64) sendcloud.ParcelRequest {
	req := sendcloud.ParcelRequest{
		Name:             recipient.Name,
		Email:            recipient.Email,
		Phone:            recipient.Phone,
		Street:           recipient.Line1,
		City:             recipient.City,
		PostalCode:       recipient.PostalCode,
		Country:          recipient.Country,
		WeightKilograms:  units.GramsToKilogramString(weightGrams),
		OrderNumber:      order.PublicID,
		ShippingMethodID: selected.MethodID,
		SenderAddressID:  sender.ID,
		RequestLabel:     true,
	}
	if order.DeliveryType() == enums.DeliveryTypeServicePoint {
		req.ToServicePointID = order.ServicePoint.ID
	}
	return req
}

func (s *service) cachedQuotes(ctx context.Context, country, postalCode string, weightGrams int64) ([]RateQuote, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.QuoteKey(country, postalCode, weightGrams))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logg.Warn(ctx, fmt.Sprintf("quote cache read failed: %v", err))
		}
		return nil, false
	}
	var quotes []RateQuote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil {
		return nil, false
	}
	return quotes, true
}

func (s *service) storeQuotes(ctx context.Context, country, postalCode string, weightGrams int64, quotes []RateQuote) {
	if s.cache == nil {
		return
	}
	encoded, err := json.Marshal(quotes)
	if err != nil {
		return
	}
	key := s.cache.QuoteKey(country, postalCode, weightGrams)
	if err := s.cache.Set(ctx, key, encoded, s.cacheTTL); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("quote cache write failed: %v", err))
	}
}

type recipientAddress struct {
	Name       string
	Email      string
	Phone      string
	Line1      string
	City       string
	PostalCode string
	Country    string
}

func requireRecipient(order *models.Order) (*recipientAddress, error) {
	if order.ShippingAddress == nil {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "order has no shipping address").
			WithDetails(map[string]any{"missing": []string{"line1", "postal_code", "city", "country"}})
	}
	if missing := order.ShippingAddress.MissingFields(); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "shipping address is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}

	recipient := &recipientAddress{
		Line1:      order.ShippingAddress.Line1,
		City:       order.ShippingAddress.City,
		PostalCode: order.ShippingAddress.PostalCode,
		Country:    strings.ToUpper(order.ShippingAddress.Country),
	}
	if order.Customer != nil {
		recipient.Name = strings.TrimSpace(order.Customer.FirstName + " " + order.Customer.LastName)
		recipient.Email = order.Customer.Email
		if order.Customer.Phone != nil {
			recipient.Phone = *order.Customer.Phone
		}
	}
	return recipient, nil
}

// resolveWeight aggregates the parcel weight from the line snapshots, or
// takes an operator-supplied override. A zero weight is terminal before any
// carrier call.
func resolveWeight(order *models.Order, override string) (int64, error) {
	if strings.TrimSpace(override) != "" {
		grams, err := units.ParseGrams(override)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "weight override invalid")
		}
		if grams <= 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "weight override must be positive")
		}
		return grams, nil
	}

	var total int64
	for _, item := range order.Items {
		total += item.WeightGrams * item.Qty
	}
	if total <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodePrecondition, "parcel weight unknown").
			WithDetails(map[string]any{"field": "weight"})
	}
	return total, nil
}

func selectQuote(quotes []RateQuote, methodID int64) (RateQuote, error) {
	if methodID == 0 {
		return quotes[0], nil
	}
	for _, quote := range quotes {
		if quote.MethodID == methodID {
			return quote, nil
		}
	}
	return RateQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping method is not among the quoted rates").
		WithDetails(map[string]any{"method_id": methodID})
}

// priceCents converts the carrier's decimal price to integer cents exactly.
func priceCents(price float64) int64 {
	return decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
}

func normalizeDeliveryStatus(message string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	return strings.ReplaceAll(normalized, " ", "_")
}
