package shippingrates

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
)

type stubRepo struct {
	options []models.ShippingOption
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubRepo) FindActiveOptions(ctx context.Context) ([]models.ShippingOption, error) {
	active := make([]models.ShippingOption, 0, len(s.options))
	for _, option := range s.options {
		if option.Active {
			active = append(active, option)
		}
	}
	return active, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ShippingOption, error) {
	for _, option := range s.options {
		if option.ID == id {
			found := option
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func option(priceCents int64, minCents, maxCents *int64, position int) models.ShippingOption {
	return models.ShippingOption{
		ID:                 uuid.New(),
		Carrier:            "postnl",
		ShippingType:       enums.DeliveryTypeDoor,
		Title:              "Standard",
		PriceCents:         priceCents,
		MinOrderTotalCents: minCents,
		MaxOrderTotalCents: maxCents,
		Position:           position,
		Active:             true,
	}
}

func cents(v int64) *int64 {
	return &v
}

func newTestResolver(t *testing.T, defaultCents int64, options ...models.ShippingOption) Resolver {
	t.Helper()

	resolver, err := NewResolver(&stubRepo{options: options}, defaultCents)
	require.NoError(t, err)
	return resolver
}

func TestResolveBracketSelection(t *testing.T) {
	t.Parallel()

	paid := option(500, cents(0), cents(2999), 0)
	free := option(0, cents(3000), nil, 1)
	resolver := newTestResolver(t, 590, paid, free)

	// Subtotal just under the free-shipping threshold pays the bracket rate.
	got, err := resolver.Resolve(context.Background(), ResolveInput{SubtotalCents: 2999})
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.ShippingCents)
	require.NotNil(t, got.Line)
	assert.Equal(t, paid.ID, *got.Line.OptionID)

	// At the threshold the free bracket wins.
	got, err = resolver.Resolve(context.Background(), ResolveInput{SubtotalCents: 3000})
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ShippingCents)
	require.NotNil(t, got.Line)
	assert.Equal(t, free.ID, *got.Line.OptionID)
}

func TestResolveBracketTieBrokenByPosition(t *testing.T) {
	t.Parallel()

	second := option(700, cents(0), nil, 2)
	first := option(400, cents(0), nil, 1)
	// The repo returns options ordered by position.
	resolver := newTestResolver(t, 590, first, second)

	got, err := resolver.Resolve(context.Background(), ResolveInput{SubtotalCents: 1000})
	require.NoError(t, err)
	assert.Equal(t, first.ID, *got.Line.OptionID)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	t.Parallel()

	narrow := option(500, cents(5000), cents(9999), 0)
	resolver := newTestResolver(t, 590, narrow)

	got, err := resolver.Resolve(context.Background(), ResolveInput{SubtotalCents: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(590), got.ShippingCents)
	assert.Nil(t, got.Line)
}

func TestResolveExplicitOption(t *testing.T) {
	t.Parallel()

	chosen := option(650, cents(0), cents(4999), 0)
	resolver := newTestResolver(t, 590, chosen)

	got, err := resolver.Resolve(context.Background(), ResolveInput{
		SubtotalCents:    2000,
		ExplicitOptionID: &chosen.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(650), got.ShippingCents)
	assert.Equal(t, "Standard", got.Line.Title)
}

func TestResolveExplicitOptionRejections(t *testing.T) {
	t.Parallel()

	inactive := option(650, cents(0), nil, 0)
	inactive.Active = false
	bracketed := option(500, cents(0), cents(2999), 1)
	resolver := newTestResolver(t, 590, inactive, bracketed)

	unknown := uuid.New()
	cases := []struct {
		name     string
		id       *uuid.UUID
		subtotal int64
	}{
		{"unknown option", &unknown, 1000},
		{"inactive option", &inactive.ID, 1000},
		// Bracket matching uses the subtotal alone, so 3000 falls outside
		// [0,2999] even though shipping would push the base past it.
		{"outside bracket", &bracketed.ID, 3000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), ResolveInput{
				SubtotalCents:    tc.subtotal,
				ExplicitOptionID: tc.id,
			})
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestResolveServicePointRequired(t *testing.T) {
	t.Parallel()

	relay := option(450, cents(0), nil, 0)
	relay.ShippingType = enums.DeliveryTypeServicePoint
	resolver := newTestResolver(t, 590, relay)

	_, err := resolver.Resolve(context.Background(), ResolveInput{
		SubtotalCents:    1000,
		ExplicitOptionID: &relay.ID,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	got, err := resolver.Resolve(context.Background(), ResolveInput{
		SubtotalCents:    1000,
		ExplicitOptionID: &relay.ID,
		ServicePointID:   "10875349",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryTypeServicePoint, got.Line.ShippingType)
}
