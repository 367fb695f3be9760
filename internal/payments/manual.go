package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
)

// InvoiceReferencePrefix marks references settled without a provider.
const InvoiceReferencePrefix = "INV-"

// NewInvoiceReference generates a unique reference for a manual invoice
// payment. It plays the role a provider id plays on the other rails,
// including backing the idempotency guard.
func NewInvoiceReference() string {
	compact := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return InvoiceReferencePrefix + compact[:12]
}

// ManualRail settles invoice orders. There is no provider to ask, so the
// facts echo the locally computed amount and the order starts as
// pending_payment until an operator marks the invoice paid.
type ManualRail struct{}

// NewManualRail builds the invoice rail.
func NewManualRail() *ManualRail {
	return &ManualRail{}
}

func (r *ManualRail) Name() enums.PaymentRail {
	return enums.PaymentRailManual
}

func (r *ManualRail) InitialStatus() enums.OrderStatus {
	return enums.OrderStatusPendingPayment
}

func (r *ManualRail) Verify(_ context.Context, reference string, expected Expectation) (*SettlementFacts, error) {
	if !strings.HasPrefix(reference, InvoiceReferencePrefix) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice reference malformed")
	}
	return &SettlementFacts{
		Succeeded:   true,
		AmountCents: expected.AmountCents,
		Currency:    strings.ToUpper(expected.Currency),
	}, nil
}
