package discounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	"github.com/atelier-nord/storefront-backend/pkg/enums"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
	"github.com/atelier-nord/storefront-backend/pkg/units"
)

// Applied is a validated discount, already clamped against its base.
type Applied struct {
	Code        string
	Kind        enums.DiscountKind
	AmountCents int64
}

// Resolver validates a promotional code against a base amount and yields
// the applied discount. The base is subtotal plus shipping.
type Resolver interface {
	Resolve(ctx context.Context, code string, baseCents int64) (*Applied, error)
}

type resolver struct {
	repo Repository
}

// NewResolver builds a discount resolver over the code repository.
func NewResolver(repo Repository) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("discounts repository required")
	}
	return &resolver{repo: repo}, nil
}

func (r *resolver) Resolve(ctx context.Context, code string, baseCents int64) (*Applied, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code required")
	}
	if baseCents < 0 {
		baseCents = 0
	}

	record, err := r.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading discount code")
	}
	if !record.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is no longer active")
	}

	amount, err := AmountFor(record, baseCents)
	if err != nil {
		return nil, err
	}
	return &Applied{
		Code:        normalized,
		Kind:        record.Kind,
		AmountCents: amount,
	}, nil
}

// AmountFor computes the applied discount for a rule, clamped to [0, base].
// Percent rules must be in (0,100]; fixed rules must be positive.
func AmountFor(rule *models.DiscountCode, baseCents int64) (int64, error) {
	switch rule.Kind {
	case enums.DiscountKindPercent:
		if rule.PercentOff <= 0 || rule.PercentOff > 100 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "discount percent out of range")
		}
		return clamp(units.PercentOf(baseCents, rule.PercentOff), baseCents), nil
	case enums.DiscountKindFixed:
		if rule.AmountCents <= 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "discount amount must be positive")
		}
		return clamp(rule.AmountCents, baseCents), nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown discount kind")
	}
}

func clamp(amount, baseCents int64) int64 {
	if amount < 0 {
		return 0
	}
	if amount > baseCents {
		return baseCents
	}
	return amount
}
