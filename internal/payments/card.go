package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
)

type intentRetriever interface {
	RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// CardRail verifies card payments against Stripe PaymentIntents.
type CardRail struct {
	client intentRetriever
}

// NewCardRail builds the card rail over the Stripe client.
func NewCardRail(client intentRetriever) (*CardRail, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &CardRail{client: client}, nil
}

func (r *CardRail) Name() enums.PaymentRail {
	return enums.PaymentRailCard
}

func (r *CardRail) InitialStatus() enums.OrderStatus {
	return enums.OrderStatusPaid
}

func (r *CardRail) Verify(ctx context.Context, reference string, _ Expectation) (*SettlementFacts, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	intent, err := r.client.RetrievePaymentIntent(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieving payment intent")
	}
	return FactsFromIntent(intent), nil
}

// FactsFromIntent maps a retrieved PaymentIntent to settlement facts.
// Succeeded requires the intent itself to report status succeeded;
// amount_received is the captured amount, not the requested one.
func FactsFromIntent(intent *stripe.PaymentIntent) *SettlementFacts {
	if intent == nil {
		return &SettlementFacts{}
	}
	facts := &SettlementFacts{
		Succeeded:   intent.Status == stripe.PaymentIntentStatusSucceeded,
		AmountCents: intent.AmountReceived,
		Currency:    strings.ToUpper(string(intent.Currency)),
	}
	if charge := intent.LatestCharge; charge != nil {
		facts.ChargeID = charge.ID
		facts.Risk = riskFromCharge(charge)
	}
	return facts
}

func riskFromCharge(charge *stripe.Charge) *RiskSignals {
	if charge.Outcome == nil {
		return nil
	}
	outcome := charge.Outcome
	signals := &RiskSignals{}
	if outcome.RiskScore > 0 {
		score := outcome.RiskScore
		signals.Score = &score
	}
	if outcome.Type != "" {
		kind := string(outcome.Type)
		signals.Outcome = &kind
	}
	if outcome.NetworkStatus != "" {
		status := string(outcome.NetworkStatus)
		signals.NetworkStatus = &status
	}
	if outcome.SellerMessage != "" {
		message := outcome.SellerMessage
		signals.SellerMessage = &message
	}
	return signals
}
