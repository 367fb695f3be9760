// Package payments verifies settlement state with external payment
// providers. Each rail answers the same question: did the provider capture
// funds for this reference, and for exactly how much. The caller compares
// the answer against the locally computed price and refuses to create an
// order on any disagreement.
package payments

import (
	"context"

	"github.com/atelier-nord/storefront-backend/pkg/enums"
)

// RiskSignals are informational fraud indicators captured for audit
// display. They never gate settlement.
type RiskSignals struct {
	Score         *int64
	Outcome       *string
	NetworkStatus *string
	SellerMessage *string
}

// SettlementFacts is the provider's authoritative view of one payment.
type SettlementFacts struct {
	Succeeded   bool
	AmountCents int64
	Currency    string
	ChargeID    string
	Risk        *RiskSignals
}

// Expectation is the locally computed amount a rail may need. Provider
// rails ignore it; the invoice rail, having no provider, echoes it.
type Expectation struct {
	AmountCents int64
	Currency    string
}

// Rail is one settlement path. Implementations must be safe for concurrent
// use; every Verify call talks to the provider, never a cache.
type Rail interface {
	Name() enums.PaymentRail
	// InitialStatus is the order status a freshly settled payment lands in.
	InitialStatus() enums.OrderStatus
	Verify(ctx context.Context, reference string, expected Expectation) (*SettlementFacts, error)
}
