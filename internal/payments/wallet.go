package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/plutov/paypal/v4"

	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/units"
)

const paypalStatusCompleted = "COMPLETED"

type orderGetter interface {
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
}

// WalletRail verifies wallet payments against PayPal orders. The reference
// is the PayPal order id created before customer approval and captured
// afterwards.
type WalletRail struct {
	client orderGetter
}

// NewWalletRail builds the wallet rail over the PayPal client.
func NewWalletRail(client orderGetter) (*WalletRail, error) {
	if client == nil {
		return nil, fmt.Errorf("paypal client required")
	}
	return &WalletRail{client: client}, nil
}

func (r *WalletRail) Name() enums.PaymentRail {
	return enums.PaymentRailWallet
}

func (r *WalletRail) InitialStatus() enums.OrderStatus {
	return enums.OrderStatusPaid
}

func (r *WalletRail) Verify(ctx context.Context, reference string, _ Expectation) (*SettlementFacts, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	order, err := r.client.GetOrder(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieving wallet order")
	}
	return FactsFromWalletOrder(order)
}

// FactsFromWalletOrder maps a fetched PayPal order to settlement facts.
// Anything other than a COMPLETED order with a COMPLETED capture reports
// Succeeded=false; the capture's amount is authoritative.
func FactsFromWalletOrder(order *paypal.Order) (*SettlementFacts, error) {
	if order == nil {
		return &SettlementFacts{}, nil
	}
	capture := completedCapture(order)
	if order.Status != paypalStatusCompleted || capture == nil {
		return &SettlementFacts{Succeeded: false}, nil
	}
	if capture.Amount == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet capture carries no amount")
	}
	amountCents, err := units.DecimalStringToCents(capture.Amount.Value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parsing wallet capture amount")
	}
	return &SettlementFacts{
		Succeeded:   true,
		AmountCents: amountCents,
		Currency:    strings.ToUpper(capture.Amount.Currency),
		ChargeID:    capture.ID,
	}, nil
}

func completedCapture(order *paypal.Order) *paypal.CaptureAmount {
	for _, unit := range order.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for i := range unit.Payments.Captures {
			capture := &unit.Payments.Captures[i]
			if capture.Status == paypalStatusCompleted {
				return capture
			}
		}
	}
	return nil
}
