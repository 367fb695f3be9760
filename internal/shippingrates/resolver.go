package shippingrates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/types"
)

// ResolveInput carries what shipping selection depends on. Bracket matching
// uses the subtotal alone, not subtotal plus shipping; the discount base
// elsewhere includes shipping. That asymmetry is long-standing observable
// behavior and is kept as is.
type ResolveInput struct {
	SubtotalCents    int64
	ExplicitOptionID *uuid.UUID
	Country          string
	ServicePointID   string
}

// Resolved is the chosen shipping cost plus the option snapshot frozen onto
// the order. Line is nil when the configured default rate applied.
type Resolved struct {
	ShippingCents int64
	Line          *types.ShippingLine
}

// Resolver selects the applicable shipping option for a cart.
type Resolver interface {
	Resolve(ctx context.Context, in ResolveInput) (*Resolved, error)
	ActiveOptions(ctx context.Context) ([]models.ShippingOption, error)
}

type resolver struct {
	repo                 Repository
	defaultShippingCents int64
}

// NewResolver builds a shipping rate resolver. defaultShippingCents is the
// flat rate applied when no configured option matches.
func NewResolver(repo Repository, defaultShippingCents int64) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipping options repository required")
	}
	if defaultShippingCents < 0 {
		return nil, fmt.Errorf("default shipping cost must not be negative")
	}
	return &resolver{repo: repo, defaultShippingCents: defaultShippingCents}, nil
}

func (r *resolver) ActiveOptions(ctx context.Context) ([]models.ShippingOption, error) {
	options, err := r.repo.FindActiveOptions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shipping options")
	}
	return options, nil
}

func (r *resolver) Resolve(ctx context.Context, in ResolveInput) (*Resolved, error) {
	if in.ExplicitOptionID != nil {
		return r.resolveExplicit(ctx, in)
	}
	return r.resolveByBracket(ctx, in)
}

// resolveExplicit validates a customer-chosen option. An invalid choice
// fails the settlement; it is never silently substituted.
func (r *resolver) resolveExplicit(ctx context.Context, in ResolveInput) (*Resolved, error) {
	option, err := r.repo.FindByID(ctx, *in.ExplicitOptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping option invalid")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shipping option")
	}
	if !option.Active || !option.MatchesSubtotal(in.SubtotalCents) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping option invalid")
	}
	if err := requireServicePoint(*option, in); err != nil {
		return nil, err
	}
	return resolvedFrom(*option), nil
}

// resolveByBracket picks the first active option (by position) whose
// bracket contains the subtotal, falling back to the configured flat rate.
func (r *resolver) resolveByBracket(ctx context.Context, in ResolveInput) (*Resolved, error) {
	options, err := r.repo.FindActiveOptions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shipping options")
	}
	for _, option := range options {
		if !option.MatchesSubtotal(in.SubtotalCents) {
			continue
		}
		if err := requireServicePoint(option, in); err != nil {
			return nil, err
		}
		return resolvedFrom(option), nil
	}
	return &Resolved{ShippingCents: r.defaultShippingCents}, nil
}

func requireServicePoint(option models.ShippingOption, in ResolveInput) error {
	if option.ShippingType.RequiresServicePoint() && strings.TrimSpace(in.ServicePointID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping option requires a service point").
			WithDetails(map[string]any{"field": "service_point_id"})
	}
	return nil
}

func resolvedFrom(option models.ShippingOption) *Resolved {
	id := option.ID
	return &Resolved{
		ShippingCents: option.PriceCents,
		Line: &types.ShippingLine{
			OptionID:     &id,
			Carrier:      option.Carrier,
			ShippingType: option.ShippingType,
			Title:        option.Title,
			PriceCents:   option.PriceCents,
		},
	}
}
