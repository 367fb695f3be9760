package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
)

type stubIntentRetriever struct {
	intent *stripe.PaymentIntent
	err    error
}

func (s *stubIntentRetriever) RetrievePaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.intent, nil
}

func TestFactsFromIntentSucceeded(t *testing.T) {
	t.Parallel()

	intent := &stripe.PaymentIntent{
		ID:             "pi_123",
		Status:         stripe.PaymentIntentStatusSucceeded,
		AmountReceived: 5088,
		Currency:       stripe.CurrencyEUR,
		LatestCharge: &stripe.Charge{
			ID: "ch_456",
			Outcome: &stripe.ChargeOutcome{
				RiskScore:     17,
				Type:          "authorized",
				NetworkStatus: "approved_by_network",
				SellerMessage: "Payment complete.",
			},
		},
	}

	facts := FactsFromIntent(intent)
	assert.True(t, facts.Succeeded)
	assert.Equal(t, int64(5088), facts.AmountCents)
	assert.Equal(t, "EUR", facts.Currency)
	assert.Equal(t, "ch_456", facts.ChargeID)
	require.NotNil(t, facts.Risk)
	assert.Equal(t, int64(17), *facts.Risk.Score)
	assert.Equal(t, "authorized", *facts.Risk.Outcome)
	assert.Equal(t, "approved_by_network", *facts.Risk.NetworkStatus)
}

func TestFactsFromIntentNotSucceeded(t *testing.T) {
	t.Parallel()

	intent := &stripe.PaymentIntent{
		Status:         stripe.PaymentIntentStatusRequiresPaymentMethod,
		AmountReceived: 0,
		Currency:       stripe.CurrencyEUR,
	}

	facts := FactsFromIntent(intent)
	assert.False(t, facts.Succeeded)
	assert.Equal(t, int64(0), facts.AmountCents)
	assert.Nil(t, facts.Risk)
}

func TestCardRailVerify(t *testing.T) {
	t.Parallel()

	rail, err := NewCardRail(&stubIntentRetriever{intent: &stripe.PaymentIntent{
		Status:         stripe.PaymentIntentStatusSucceeded,
		AmountReceived: 1799,
		Currency:       stripe.CurrencyEUR,
	}})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentRailCard, rail.Name())
	assert.Equal(t, enums.OrderStatusPaid, rail.InitialStatus())

	facts, err := rail.Verify(context.Background(), "pi_123", Expectation{})
	require.NoError(t, err)
	assert.True(t, facts.Succeeded)
	assert.Equal(t, int64(1799), facts.AmountCents)
}

func TestCardRailVerifyErrors(t *testing.T) {
	t.Parallel()

	rail, err := NewCardRail(&stubIntentRetriever{err: errors.New("stripe down")})
	require.NoError(t, err)

	_, err = rail.Verify(context.Background(), "", Expectation{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = rail.Verify(context.Background(), "pi_123", Expectation{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}
