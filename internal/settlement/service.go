// Package settlement reconciles an external payment against the locally
// computed price and persists the order atomically. The provider's settled
// amount is the source of truth for "was this paid"; the recomputed price
// is the source of truth for "how much should it be"; they must agree
// exactly before any financial record is written.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/internal/catalog"
	"github.com/atelier-nord/storefront-backend/internal/customers"
	"github.com/atelier-nord/storefront-backend/internal/discounts"
	"github.com/atelier-nord/storefront-backend/internal/orders"
	"github.com/atelier-nord/storefront-backend/internal/payments"
	"github.com/atelier-nord/storefront-backend/internal/pricing"
	"github.com/atelier-nord/storefront-backend/internal/shippingrates"
	"github.com/atelier-nord/storefront-backend/pkg/db"
	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/logger"
	"github.com/atelier-nord/storefront-backend/pkg/metrics"
	"github.com/atelier-nord/storefront-backend/pkg/types"
)

const paymentReferenceConstraint = "uidx_orders_payment_reference"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type mailer interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) (bool, error)
}

// CustomerInput identifies the buyer. Only the email is mandatory; the rest
// refreshes the stored customer without ever blanking existing values.
type CustomerInput struct {
	Email     string         `json:"email" validate:"required,email"`
	FirstName string         `json:"first_name" validate:"max=100"`
	LastName  string         `json:"last_name" validate:"max=100"`
	Phone     *string        `json:"phone,omitempty"`
	Address   *types.Address `json:"address,omitempty"`
}

// QuoteInput is everything pricing depends on.
type QuoteInput struct {
	Lines            []catalog.CartLine  `json:"lines" validate:"required,min=1,dive"`
	ShippingOptionID *uuid.UUID          `json:"shipping_option_id,omitempty"`
	DiscountCode     *string             `json:"discount_code,omitempty"`
	Country          string              `json:"country" validate:"omitempty,len=2"`
	ServicePoint     *types.ServicePoint `json:"service_point,omitempty"`
}

// Quote is the price preview, produced by the same path settlement uses.
type Quote struct {
	Breakdown    pricing.Breakdown
	Lines        []pricing.Line
	ShippingLine *types.ShippingLine
	DiscountCode *string
	WeightGrams  int64
	Currency     string
}

// SettleInput is a full settlement request for one payment reference.
type SettleInput struct {
	QuoteInput
	Rail             enums.PaymentRail `json:"rail" validate:"required"`
	PaymentReference string            `json:"payment_reference"`
	Customer         CustomerInput     `json:"customer" validate:"required"`
	ShippingAddress  *types.Address    `json:"shipping_address,omitempty"`
}

// Result is the settled order. Replayed marks an idempotent repeat of an
// already-settled reference.
type Result struct {
	Order    *models.Order
	Replayed bool
}

// Service prices carts and settles payments into orders.
type Service interface {
	Quote(ctx context.Context, in QuoteInput) (*Quote, error)
	Settle(ctx context.Context, in SettleInput) (*Result, error)
}

type service struct {
	tx            txRunner
	cartResolver  catalog.Resolver
	discounts     discounts.Resolver
	shipping      shippingrates.Resolver
	rails         map[enums.PaymentRail]payments.Rail
	customersRepo customers.Repository
	ordersRepo    orders.Repository
	mail          mailer
	metrics       *metrics.CheckoutMetrics
	logg          *logger.Logger
	currency      string
}

// NewService builds the settlement service.
func NewService(
	tx txRunner,
	cartResolver catalog.Resolver,
	discountResolver discounts.Resolver,
	shippingResolver shippingrates.Resolver,
	rails []payments.Rail,
	customersRepo customers.Repository,
	ordersRepo orders.Repository,
	mail mailer,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
	currency string,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartResolver == nil {
		return nil, fmt.Errorf("cart resolver required")
	}
	if discountResolver == nil {
		return nil, fmt.Errorf("discount resolver required")
	}
	if shippingResolver == nil {
		return nil, fmt.Errorf("shipping resolver required")
	}
	if len(rails) == 0 {
		return nil, fmt.Errorf("at least one payment rail required")
	}
	if customersRepo == nil {
		return nil, fmt.Errorf("customers repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("currency must be a 3-letter ISO code")
	}

	byName := make(map[enums.PaymentRail]payments.Rail, len(rails))
	for _, rail := range rails {
		byName[rail.Name()] = rail
	}
	return &service{
		tx:            tx,
		cartResolver:  cartResolver,
		discounts:     discountResolver,
		shipping:      shippingResolver,
		rails:         byName,
		customersRepo: customersRepo,
		ordersRepo:    ordersRepo,
		mail:          mail,
		metrics:       checkoutMetrics,
		logg:          logg,
		currency:      currency,
	}, nil
}

// Quote recomputes the price breakdown from scratch. Settlement runs the
// exact same path, so a preview can never drift from what gets charged.
func (s *service) Quote(ctx context.Context, in QuoteInput) (*Quote, error) {
	lines, err := s.cartResolver.ResolveCart(ctx, in.Lines)
	if err != nil {
		return nil, err
	}
	subtotal := pricing.Subtotal(lines)

	servicePointID := ""
	if in.ServicePoint != nil {
		servicePointID = in.ServicePoint.ID
	}
	shipping, err := s.shipping.Resolve(ctx, shippingrates.ResolveInput{
		SubtotalCents:    subtotal,
		ExplicitOptionID: in.ShippingOptionID,
		Country:          in.Country,
		ServicePointID:   servicePointID,
	})
	if err != nil {
		return nil, err
	}

	var discountCents int64
	var appliedCode *string
	if in.DiscountCode != nil && strings.TrimSpace(*in.DiscountCode) != "" {
		// The discount base includes shipping even though bracket matching
		// above used the subtotal alone.
		applied, err := s.discounts.Resolve(ctx, *in.DiscountCode, subtotal+shipping.ShippingCents)
		if err != nil {
			return nil, err
		}
		discountCents = applied.AmountCents
		appliedCode = &applied.Code
	}

	return &Quote{
		Breakdown:    pricing.Compute(lines, shipping.ShippingCents, discountCents),
		Lines:        lines,
		ShippingLine: shipping.Line,
		DiscountCode: appliedCode,
		WeightGrams:  pricing.TotalWeightGrams(lines),
		Currency:     s.currency,
	}, nil
}

func (s *service) Settle(ctx context.Context, in SettleInput) (*Result, error) {
	started := time.Now()
	rail, ok := s.rails[in.Rail]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment rail")
	}

	result, err := s.settle(ctx, rail, in)
	s.metrics.ObserveSettlement(rail.Name().String(), time.Since(started))
	switch {
	case err != nil:
		s.metrics.IncSettlementFailure(rail.Name().String(), failureReason(err))
	case result.Replayed:
		s.metrics.IncSettlementReplay(rail.Name().String())
	default:
		s.metrics.IncSettlementSuccess(rail.Name().String())
	}
	return result, err
}

func (s *service) settle(ctx context.Context, rail payments.Rail, in SettleInput) (*Result, error) {
	if err := validateSettleInput(rail, in); err != nil {
		return nil, err
	}

	reference := strings.TrimSpace(in.PaymentReference)
	if reference == "" && rail.Name() == enums.PaymentRailManual {
		reference = payments.NewInvoiceReference()
	}
	ctx = s.logg.WithPaymentReference(ctx, reference)

	quote, err := s.Quote(ctx, in.QuoteInput)
	if err != nil {
		return nil, err
	}

	facts, err := rail.Verify(ctx, reference, payments.Expectation{
		AmountCents: quote.Breakdown.TotalCents,
		Currency:    s.currency,
	})
	if err != nil {
		return nil, err
	}
	if err := s.reconcile(ctx, quote, facts); err != nil {
		return nil, err
	}

	result, err := s.commit(ctx, rail, in, quote, facts, reference)
	if err != nil {
		return nil, err
	}
	if !result.Replayed {
		s.sendConfirmation(ctx, result.Order)
	}
	return result, nil
}

// reconcile enforces the exact-agreement invariant between the provider's
// settled state and the recomputed breakdown.
func (s *service) reconcile(ctx context.Context, quote *Quote, facts *payments.SettlementFacts) error {
	if !facts.Succeeded {
		return pkgerrors.New(pkgerrors.CodeSettlementMismatch, "payment is not settled with the provider")
	}
	if facts.AmountCents != quote.Breakdown.TotalCents || !strings.EqualFold(facts.Currency, quote.Currency) {
		s.logg.Warn(ctx, fmt.Sprintf(
			"settlement mismatch: computed %d %s, provider settled %d %s",
			quote.Breakdown.TotalCents, quote.Currency, facts.AmountCents, facts.Currency,
		))
		return pkgerrors.New(pkgerrors.CodeSettlementMismatch, "settled amount disagrees with the computed total").
			WithDetails(map[string]any{
				"computed_cents":    quote.Breakdown.TotalCents,
				"computed_currency": quote.Currency,
				"settled_cents":     facts.AmountCents,
				"settled_currency":  facts.Currency,
			})
	}
	return nil
}

func (s *service) commit(ctx context.Context, rail payments.Rail, in SettleInput, quote *Quote, facts *payments.SettlementFacts, reference string) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		customersRepo := s.customersRepo.WithTx(tx)

		existing, err := ordersRepo.FindByPaymentReference(ctx, reference)
		if err == nil {
			result = &Result{Order: existing, Replayed: true}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		customer, err := customersRepo.UpsertByEmail(ctx, customers.UpsertInput{
			Email:     in.Customer.Email,
			FirstName: in.Customer.FirstName,
			LastName:  in.Customer.LastName,
			Phone:     in.Customer.Phone,
			Address:   in.Customer.Address,
		})
		if err != nil {
			return err
		}

		order := s.buildOrder(rail, in, quote, facts, reference, customer.ID)
		created, err := ordersRepo.Create(ctx, order)
		if err != nil {
			return err
		}

		items := make([]models.OrderLineItem, 0, len(quote.Lines))
		for _, line := range quote.Lines {
			items = append(items, models.OrderLineItem{
				OrderID:        created.ID,
				ProductID:      line.ProductID,
				Title:          line.Title,
				UnitPriceCents: line.UnitPriceCents,
				WeightGrams:    line.WeightGrams,
				Qty:            line.Qty,
			})
		}
		if err := ordersRepo.CreateLineItems(ctx, items); err != nil {
			return err
		}
		created.Items = items
		created.Customer = customer
		result = &Result{Order: created}
		return nil
	})
	if err != nil {
		// A concurrent retry of the same confirmation lost the insert race.
		// The unique index guarantees exactly one order exists; return it.
		if db.IsUniqueViolation(err, paymentReferenceConstraint) {
			existing, lookupErr := s.ordersRepo.FindByPaymentReference(ctx, reference)
			if lookupErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lookupErr, "looking up replayed order")
			}
			return &Result{Order: existing, Replayed: true}, nil
		}
		return nil, err
	}
	return result, nil
}

func (s *service) buildOrder(rail payments.Rail, in SettleInput, quote *Quote, facts *payments.SettlementFacts, reference string, customerID uuid.UUID) *models.Order {
	order := &models.Order{
		PublicID:         NewPublicID(),
		Status:           rail.InitialStatus(),
		CustomerID:       customerID,
		PaymentRail:      rail.Name(),
		PaymentReference: reference,
		Currency:         s.currency,
		SubtotalCents:    quote.Breakdown.SubtotalCents,
		ShippingCents:    quote.Breakdown.ShippingCents,
		DiscountCents:    quote.Breakdown.DiscountCents,
		TotalCents:       quote.Breakdown.TotalCents,
		DiscountCode:     quote.DiscountCode,
		ShippingLine:     quote.ShippingLine,
		ServicePoint:     in.ServicePoint,
		ShippingAddress:  in.ShippingAddress,
	}
	if facts.ChargeID != "" {
		chargeID := facts.ChargeID
		order.ChargeID = &chargeID
	}
	if facts.Risk != nil {
		order.RiskScore = facts.Risk.Score
		order.RiskOutcome = facts.Risk.Outcome
		order.NetworkStatus = facts.Risk.NetworkStatus
	}
	if order.Status == enums.OrderStatusPaid {
		now := time.Now().UTC()
		order.PaidAt = &now
	}
	return order
}

// sendConfirmation is best-effort: a mail failure is logged and flagged,
// never surfaced to the settlement caller.
func (s *service) sendConfirmation(ctx context.Context, order *models.Order) {
	if s.mail == nil {
		return
	}
	ctx = s.logg.WithOrderID(ctx, order.PublicID)
	skipped, err := s.mail.SendOrderConfirmation(ctx, order)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("order confirmation email failed: %v", err))
		return
	}
	if skipped {
		return
	}
	if err := s.ordersRepo.MarkConfirmationSent(ctx, order.ID); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("marking confirmation sent failed: %v", err))
		return
	}
	order.ConfirmationSent = true
}

func validateSettleInput(rail payments.Rail, in SettleInput) error {
	if strings.TrimSpace(in.Customer.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	if rail.Name() != enums.PaymentRailManual && strings.TrimSpace(in.PaymentReference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	return nil
}

func failureReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeSettlementMismatch:
			return "mismatch"
		case pkgerrors.CodeValidation:
			return "validation"
		case pkgerrors.CodeDependency:
			return "provider"
		}
	}
	return "internal"
}

// NewPublicID derives the short customer-facing order id.
func NewPublicID() string {
	compact := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + compact[:8]
}
