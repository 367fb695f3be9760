package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/atelier-nord/storefront-backend/internal/pricing"
	"github.com/atelier-nord/storefront-backend/pkg/db/models"
	pkgerrors "github.com/atelier-nord/storefront-backend/pkg/errors"
)

// CartLine is the client-supplied cart entry. Only the product id and
// quantity are trusted; price and title come from the catalog row.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int64     `json:"qty" validate:"required,gt=0"`
}

// Resolver turns client cart lines into priced lines backed by active
// product records.
type Resolver interface {
	ResolveCart(ctx context.Context, lines []CartLine) ([]pricing.Line, error)
}

type resolver struct {
	repo Repository
}

// NewResolver builds a cart resolver over the catalog repository.
func NewResolver(repo Repository) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &resolver{repo: repo}, nil
}

// ResolveCart merges duplicate product ids, loads the active product rows,
// and fails the whole cart when any id is missing or inactive. It never
// silently drops a line.
func (r *resolver) ResolveCart(ctx context.Context, lines []CartLine) ([]pricing.Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	var invalid error
	merged := make(map[uuid.UUID]int64, len(lines))
	ordered := make([]uuid.UUID, 0, len(lines))
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			invalid = multierr.Append(invalid, fmt.Errorf("line %d: product id required", i))
			continue
		}
		if line.Qty <= 0 {
			invalid = multierr.Append(invalid, fmt.Errorf("line %d: quantity must be positive", i))
			continue
		}
		if _, seen := merged[line.ProductID]; !seen {
			ordered = append(ordered, line.ProductID)
		}
		merged[line.ProductID] += line.Qty
	}
	if invalid != nil {
		details := make([]string, 0)
		for _, err := range multierr.Errors(invalid) {
			details = append(details, err.Error())
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, invalid, "invalid cart").
			WithDetails(map[string]any{"lines": details})
	}

	products, err := r.repo.FindActiveByIDs(ctx, ordered)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	missing := make([]string, 0)
	resolved := make([]pricing.Line, 0, len(ordered))
	for _, id := range ordered {
		product, ok := byID[id]
		if !ok {
			missing = append(missing, id.String())
			continue
		}
		resolved = append(resolved, pricing.Line{
			ProductID:      product.ID,
			Title:          product.Title,
			UnitPriceCents: product.PriceCents,
			WeightGrams:    product.WeightGrams,
			Qty:            merged[id],
		})
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart references unknown or inactive products").
			WithDetails(map[string]any{"product_ids": missing})
	}
	return resolved, nil
}
